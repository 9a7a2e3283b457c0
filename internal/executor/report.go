package executor

import (
	"fmt"
	"time"

	"github.com/vk/pipewright/internal/graph"
)

// TaskResult is the per-task record of one run, in graph creation order.
type TaskResult struct {
	ID      string
	Status  graph.Status
	Reason  string
	Command string
	Output  string
	Elapsed time.Duration
	Err     error
}

// Report aggregates the outcome of one run.
type Report struct {
	Results []TaskResult

	Executed int // tasks that actually ran and succeeded
	UpToDate int
	Skipped  int
	Failed   int
	Blocked  int
}

func buildReport(g *graph.Graph) *Report {
	rep := &Report{Results: make([]TaskResult, 0, len(g.Order))}
	for _, task := range g.TasksInOrder() {
		status := task.Status()
		rep.Results = append(rep.Results, TaskResult{
			ID:      task.ID,
			Status:  status,
			Reason:  task.Reason,
			Command: task.Argv,
			Output:  task.Output,
			Elapsed: task.Elapsed,
			Err:     task.Err,
		})
		switch status {
		case graph.Succeeded:
			rep.Executed++
		case graph.UpToDate:
			rep.UpToDate++
		case graph.Skipped:
			rep.Skipped++
		case graph.Failed:
			rep.Failed++
		case graph.Blocked:
			rep.Blocked++
		}
	}
	return rep
}

// Err returns nil for a clean run, or an error summarizing the failed and
// blocked tasks.
func (r *Report) Err() error {
	if r.Failed == 0 && r.Blocked == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d task(s) failed, %d blocked", ErrTask, r.Failed, r.Blocked)
}

// Result returns the record for one task ID, if present.
func (r *Report) Result(id string) (TaskResult, bool) {
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return TaskResult{}, false
}
