// Package graph builds and owns the per-run task graph: one task per
// (instance, command) pair whose run_if holds, wired together through the
// file paths they produce and consume. The graph is built once per run and
// is read-only during scheduling except for task status transitions.
package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/pipewright/internal/resolve"
)

// Status is the lifecycle state of a task. A task settles into exactly one
// terminal state per run.
type Status int32

const (
	Pending Status = iota
	Ready
	Running
	Succeeded // executed this run, exit zero, outputs present
	UpToDate  // staleness check negative; satisfied without executing
	Failed
	Skipped // run_if false, or required input from a skipped producer
	Blocked // an upstream task failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case UpToDate:
		return "up-to-date"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a settled state.
func (s Status) Terminal() bool {
	switch s {
	case Succeeded, UpToDate, Failed, Skipped, Blocked:
		return true
	}
	return false
}

// Task is one scheduled execution of a command definition for one instance.
type Task struct {
	ID  string
	Cmd *resolve.Command

	Deps       map[string]*Task
	Dependents map[string]*Task

	status   atomic.Int32
	depCount atomic.Int32

	// finishOnce guarantees the single terminal transition and the single
	// matching WaitGroup release, however many paths race to settle a task.
	finishOnce sync.Once

	// rebuilt is set when the task executed this run or anything upstream
	// did; dependents consult it in their staleness check.
	rebuilt atomic.Bool

	// Execution record, written once by the worker that settles the task.
	Err     error
	Argv    string // rendered command line, when one was rendered
	Output  string // captured process output
	Reason  string // why the task ran, or why it did not
	Elapsed time.Duration
}

// Status returns the task's current state.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// setStatus applies a non-terminal transition (Ready, Running).
func (t *Task) setStatus(s Status) { t.status.Store(int32(s)) }

// SetRunning marks the task as dispatched to a worker.
func (t *Task) SetRunning() { t.setStatus(Running) }

// MarkReady moves a pending task into the scheduler queue state. Tasks
// already settled at build time (a false run_if) keep their state.
func (t *Task) MarkReady() { t.status.CompareAndSwap(int32(Pending), int32(Ready)) }

// Finish settles the task into a terminal state exactly once and runs
// release inside the transition. It reports whether this call performed
// the transition; later calls are no-ops and return false.
func (t *Task) Finish(s Status, err error, release func()) bool {
	settled := false
	t.finishOnce.Do(func() {
		settled = true
		t.status.Store(int32(s))
		if err != nil {
			t.Err = err
		}
		if s == Succeeded {
			t.rebuilt.Store(true)
		}
		if release != nil {
			release()
		}
	})
	return settled
}

// MarkRebuilt flags that this task or an upstream one executed this run.
func (t *Task) MarkRebuilt() { t.rebuilt.Store(true) }

// Rebuilt reports whether this task or anything upstream executed this run.
func (t *Task) Rebuilt() bool { return t.rebuilt.Load() }

// DecrementDepCount releases one dependency and returns the remainder.
func (t *Task) DecrementDepCount() int32 { return t.depCount.Add(-1) }

// DepCount returns the number of unsettled dependencies.
func (t *Task) DepCount() int32 { return t.depCount.Load() }

// File is a resolved filesystem path shared by the tasks that produce or
// consume it. At most one task may produce a given path.
type File struct {
	Path      string
	Producer  *Task
	Consumers []*Task
}

// Graph owns the task and file nodes for one pipeline run.
type Graph struct {
	Tasks map[string]*Task
	Files map[string]*File

	// Order lists task IDs in creation order for deterministic reports.
	Order []string
}

// File returns the file node for path, if any task references it.
func (g *Graph) File(path string) (*File, bool) {
	f, ok := g.Files[path]
	return f, ok
}

// TasksInOrder returns all tasks in creation order.
func (g *Graph) TasksInOrder() []*Task {
	out := make([]*Task, 0, len(g.Order))
	for _, id := range g.Order {
		out = append(out, g.Tasks[id])
	}
	return out
}

// Producer returns the task producing path, if any.
func (g *Graph) Producer(path string) (*Task, bool) {
	f, ok := g.Files[path]
	if !ok || f.Producer == nil {
		return nil, false
	}
	return f.Producer, true
}
