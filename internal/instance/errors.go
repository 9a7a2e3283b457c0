package instance

import (
	"errors"
	"fmt"
)

// Kind classifies an InstantiationError.
type Kind string

const (
	KindUndefinedClass          Kind = "undefined-class"
	KindUndefinedParent         Kind = "undefined-parent"
	KindMissingRequiredProperty Kind = "missing-required-property"
	KindDuplicateInstance       Kind = "duplicate-instance"
	KindSyntax                  Kind = "syntax"
)

// ErrInstantiation is the sentinel all InstantiationErrors unwrap to.
var ErrInstantiation = errors.New("instantiation error")

// InstantiationError reports an invalid instantiation source. It is fatal
// at build time.
type InstantiationError struct {
	Kind     Kind
	Source   string // file path
	Line     int    // zero when the format has no line association
	Instance string
	Message  string
}

func (e *InstantiationError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Source, e.Line)
	}
	if loc != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *InstantiationError) Unwrap() error { return ErrInstantiation }

func newError(kind Kind, source string, line int, format string, args ...any) *InstantiationError {
	return &InstantiationError{
		Kind:    kind,
		Source:  source,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}
}
