package testutil

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/fsutil"
)

// FakeRunner is an executor.Runner that never spawns a process. It records
// every invocation and fabricates the declared outputs, so scheduling and
// staleness behavior can be tested without real commands.
type FakeRunner struct {
	mu          sync.Mutex
	invocations []executor.Invocation

	// FailTasks maps task IDs to a nonzero exit.
	FailTasks map[string]bool

	// SuppressOutputs maps task IDs whose declared outputs are NOT
	// created, to provoke missing-output failures.
	SuppressOutputs map[string]bool

	// OutputContent is written to each fabricated output; defaults to a
	// single line so outputs count as non-empty.
	OutputContent string
}

// Run records the invocation and writes the declared outputs.
func (r *FakeRunner) Run(_ context.Context, inv executor.Invocation) (executor.Result, error) {
	r.mu.Lock()
	r.invocations = append(r.invocations, inv)
	r.mu.Unlock()

	if r.FailTasks[inv.TaskID] {
		return executor.Result{ExitCode: 1, Output: "fake failure\n", Elapsed: time.Millisecond}, nil
	}

	if !r.SuppressOutputs[inv.TaskID] {
		content := r.OutputContent
		if content == "" {
			content = "fabricated\n"
		}
		for _, out := range inv.Outputs {
			if err := fsutil.EnsureParentDir(out); err != nil {
				return executor.Result{}, err
			}
			if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
				return executor.Result{}, err
			}
		}
	}
	return executor.Result{Elapsed: time.Millisecond}, nil
}

// Invocations returns a copy of everything run so far.
func (r *FakeRunner) Invocations() []executor.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]executor.Invocation, len(r.invocations))
	copy(out, r.invocations)
	return out
}

// Ran reports whether the given task was dispatched.
func (r *FakeRunner) Ran(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invocations {
		if inv.TaskID == taskID {
			return true
		}
	}
	return false
}

// Count returns the number of dispatched invocations.
func (r *FakeRunner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invocations)
}

// Reset clears the invocation record between runs.
func (r *FakeRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = nil
}
