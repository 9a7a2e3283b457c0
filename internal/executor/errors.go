package executor

import (
	"errors"
	"fmt"
)

// Kind classifies a TaskError.
type Kind string

const (
	KindNonzeroExit           Kind = "nonzero-exit"
	KindMissingRequiredOutput Kind = "missing-required-output"
	KindMissingRequiredInput  Kind = "missing-required-input"
)

// ErrTask is the sentinel all TaskErrors unwrap to.
var ErrTask = errors.New("task error")

// TaskError reports a failed task. Unlike build-time errors it is scoped:
// the task's transitive dependents are blocked, every other branch keeps
// running.
type TaskError struct {
	Kind    Kind
	Task    string
	Command string // resolved command line, when one was rendered
	Output  string // captured process output
	Message string
	Err     error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %s: %s", e.Task, e.Kind, e.Message)
}

func (e *TaskError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTask
}
