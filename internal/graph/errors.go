package graph

import (
	"errors"
	"fmt"
)

// Kind classifies a GraphError.
type Kind string

const (
	KindCycle          Kind = "cycle"
	KindOutputConflict Kind = "output-conflict"
)

// ErrGraph is the sentinel all GraphErrors unwrap to.
var ErrGraph = errors.New("graph error")

// GraphError reports a structurally invalid task graph, detected at build
// time before any task executes.
type GraphError struct {
	Kind    Kind
	Task    string
	Message string
}

func (e *GraphError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("task %s: %s: %s", e.Task, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GraphError) Unwrap() error { return ErrGraph }
