package schema

import (
	"errors"
	"fmt"
)

// Kind classifies a ParseError.
type Kind string

const (
	KindSyntax              Kind = "syntax"
	KindUnknownReference    Kind = "unknown-reference"
	KindDuplicateDefinition Kind = "duplicate-definition"
	KindCyclicParent        Kind = "cyclic-parent"
)

// ErrParse is the sentinel all ParseErrors unwrap to.
var ErrParse = errors.New("model parse error")

// ParseError reports a structurally invalid model, identifying the source
// file and line at fault. Any ParseError aborts the run before a task
// executes.
type ParseError struct {
	Kind    Kind
	File    string
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrParse
}

func newParseError(kind Kind, file string, line int, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:    kind,
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}
}
