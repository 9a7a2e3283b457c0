package executor

import (
	"fmt"

	"github.com/vk/pipewright/internal/fsutil"
	"github.com/vk/pipewright/internal/graph"
)

// verdict is the scheduling decision for one admitted task.
type verdict int

const (
	verdictRun      verdict = iota // stale, dispatch to the runner
	verdictUpToDate                // outputs are current, settle without executing
	verdictSkip                    // a required input is absent because its producer was skipped
	verdictFail                    // a required input is absent and nothing in the graph produces it
)

// evaluation is the outcome of the pre-run check: what to do with the task,
// why, and which inputs were present on disk when the decision was made.
type evaluation struct {
	verdict verdict
	reason  string
	err     *TaskError
	present map[string]bool // input path -> present
}

// evaluate decides whether a task must execute, given the live state of its
// inputs and outputs and the rebuilt predicate over its dependencies. It is
// called only after every dependency has settled, so the states it observes
// are final for this run.
//
// An input counts as present when it exists and is non-empty; pipelines
// routinely leave zero-byte placeholders behind for filtered-out branches,
// and those must not satisfy a consumer. Inputs declared allow_empty accept
// the zero-byte file as real data.
func evaluate(task *graph.Task, rebuilt func(*graph.Task) bool) (evaluation, error) {
	ev := evaluation{present: make(map[string]bool, len(task.Cmd.Inputs))}

	skipReason := ""
	for i := range task.Cmd.Inputs {
		in := &task.Cmd.Inputs[i]
		st, err := fsutil.Stat(in.Path)
		if err != nil {
			return ev, err
		}
		present := st.Exists && (st.Size > 0 || in.AllowEmpty)
		ev.present[in.Path] = present
		if present || in.Optional {
			continue
		}

		// A required input is missing. Whether that skips or fails the
		// task depends on why: a skipped upstream producer propagates the
		// skip, anything else is unrecoverable within this run.
		if producer, ok := producerOf(task, in.Path); ok {
			if producer.Status() == graph.Skipped {
				skipReason = fmt.Sprintf("required input %s absent; producer %s was skipped", in.Path, producer.ID)
				continue
			}
			// The producer settled as succeeded or up to date but the
			// file is not usable; treat it like a missing source.
		}
		ev.verdict = verdictFail
		ev.reason = fmt.Sprintf("required input %s is missing", in.Path)
		ev.err = &TaskError{
			Kind:    KindMissingRequiredInput,
			Task:    task.ID,
			Message: ev.reason,
		}
		return ev, nil
	}
	if skipReason != "" {
		ev.verdict = verdictSkip
		ev.reason = skipReason
		return ev, nil
	}

	stale, reason, err := isStale(task, ev.present, rebuilt)
	if err != nil {
		return ev, err
	}
	ev.reason = reason
	if stale {
		ev.verdict = verdictRun
	} else {
		ev.verdict = verdictUpToDate
	}
	return ev, nil
}

// isStale applies the rebuild rule: a task runs when any declared output is
// missing, when any present input is newer than the oldest output, or when
// anything upstream executed this run. A task with no declared outputs has
// nothing to compare against and always runs.
func isStale(task *graph.Task, present map[string]bool, rebuilt func(*graph.Task) bool) (bool, string, error) {
	if len(task.Cmd.Outputs) == 0 {
		return true, "no declared outputs", nil
	}

	for _, dep := range task.Deps {
		if rebuilt(dep) {
			return true, fmt.Sprintf("upstream %s rebuilt this run", dep.ID), nil
		}
	}

	var outs []fsutil.FileState
	for _, out := range task.Cmd.Outputs {
		st, err := fsutil.Stat(out.Path)
		if err != nil {
			return false, "", err
		}
		if !st.Exists {
			return true, fmt.Sprintf("output %s is missing", out.Path), nil
		}
		outs = append(outs, st)
	}

	oldest := outs[0]
	for _, st := range outs[1:] {
		if st.ModTime.Before(oldest.ModTime) {
			oldest = st
		}
	}
	for i := range task.Cmd.Inputs {
		in := &task.Cmd.Inputs[i]
		if !present[in.Path] {
			continue
		}
		st, err := fsutil.Stat(in.Path)
		if err != nil {
			return false, "", err
		}
		if st.ModTime.After(oldest.ModTime) {
			return true, fmt.Sprintf("input %s is newer than output %s", in.Path, oldest.Path), nil
		}
	}
	return false, "outputs are current", nil
}

// producerOf finds the direct dependency producing path, if any.
func producerOf(task *graph.Task, path string) (*graph.Task, bool) {
	for _, dep := range task.Deps {
		for _, out := range dep.Cmd.Outputs {
			if out.Path == path {
				return dep, true
			}
		}
	}
	return nil, false
}

// missingOutput reports the first declared output a just-finished task
// failed to produce, if any. Zero-byte outputs are accepted here; emptiness
// is judged by consumers against their own allow_empty flags.
func missingOutput(task *graph.Task) (string, bool) {
	for _, out := range task.Cmd.Outputs {
		if !fsutil.Exists(out.Path) {
			return out.Path, true
		}
	}
	return "", false
}
