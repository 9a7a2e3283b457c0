package executor

import (
	"fmt"

	"github.com/vk/pipewright/internal/fsutil"
	"github.com/vk/pipewright/internal/graph"
)

// PlanAction is the predicted outcome of a task in a dry run.
type PlanAction int

const (
	PlanRun PlanAction = iota
	PlanUpToDate
	PlanSkip
	PlanFail // a required input is missing and nothing would produce it
)

func (a PlanAction) String() string {
	switch a {
	case PlanRun:
		return "run"
	case PlanUpToDate:
		return "up-to-date"
	case PlanSkip:
		return "skip"
	case PlanFail:
		return "fail"
	default:
		return "unknown"
	}
}

// PlanStep is one task's predicted action, in topological order.
type PlanStep struct {
	ID     string
	Action PlanAction
	Reason string
}

// Plan predicts, without executing anything, what a run over the graph
// would do right now. Predicted executions count as producing their
// outputs, so a missing intermediate file does not fail the plan when an
// upstream task would create it.
func Plan(g *graph.Graph) ([]PlanStep, error) {
	steps := make([]PlanStep, 0, len(g.Tasks))
	action := make(map[string]PlanAction, len(g.Tasks))

	for _, task := range g.TopoOrder() {
		step, err := planTask(task, action)
		if err != nil {
			return nil, err
		}
		action[task.ID] = step.Action
		steps = append(steps, step)
	}
	return steps, nil
}

func planTask(task *graph.Task, planned map[string]PlanAction) (PlanStep, error) {
	step := PlanStep{ID: task.ID}

	if task.Status() == graph.Skipped {
		step.Action = PlanSkip
		step.Reason = "run_if evaluated false"
		return step, nil
	}

	// Upstream predictions stand in for the filesystem effects a real run
	// would have had by the time this task is admitted.
	upstreamRuns := false
	for _, dep := range task.Deps {
		if planned[dep.ID] == PlanRun {
			upstreamRuns = true
		}
	}

	for i := range task.Cmd.Inputs {
		in := &task.Cmd.Inputs[i]
		st, err := fsutil.Stat(in.Path)
		if err != nil {
			return step, err
		}
		if st.Exists && (st.Size > 0 || in.AllowEmpty) {
			continue
		}
		if in.Optional {
			continue
		}
		producer, ok := producerOf(task, in.Path)
		if !ok {
			step.Action = PlanFail
			step.Reason = fmt.Sprintf("required input %s is missing", in.Path)
			return step, nil
		}
		switch planned[producer.ID] {
		case PlanRun:
			// The producer would create it before this task runs.
		case PlanSkip:
			step.Action = PlanSkip
			step.Reason = fmt.Sprintf("required input %s absent; producer %s would be skipped", in.Path, producer.ID)
			return step, nil
		default:
			step.Action = PlanFail
			step.Reason = fmt.Sprintf("required input %s is missing", in.Path)
			return step, nil
		}
	}

	if upstreamRuns {
		step.Action = PlanRun
		step.Reason = "an upstream task would rebuild"
		return step, nil
	}

	present := make(map[string]bool, len(task.Cmd.Inputs))
	for i := range task.Cmd.Inputs {
		in := &task.Cmd.Inputs[i]
		st, err := fsutil.Stat(in.Path)
		if err != nil {
			return step, err
		}
		present[in.Path] = st.Exists && (st.Size > 0 || in.AllowEmpty)
	}
	stale, reason, err := isStale(task, present, func(*graph.Task) bool { return false })
	if err != nil {
		return step, err
	}
	step.Reason = reason
	if stale {
		step.Action = PlanRun
	} else {
		step.Action = PlanUpToDate
	}
	return step, nil
}
