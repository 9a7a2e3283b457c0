package app

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/graph"
)

// painter maps a task status to a colorizing sprint function, respecting
// the -no-color flag.
func (a *App) painter() func(graph.Status) func(format string, args ...interface{}) string {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	plain := color.New()
	if a.config.NoColor {
		green.DisableColor()
		red.DisableColor()
		yellow.DisableColor()
		plain.DisableColor()
	}
	return func(s graph.Status) func(format string, args ...interface{}) string {
		switch s {
		case graph.Succeeded:
			return green.Sprintf
		case graph.Failed:
			return red.Sprintf
		case graph.Skipped, graph.Blocked:
			return yellow.Sprintf
		default:
			return plain.Sprintf
		}
	}
}

// printReport writes the per-task outcome lines and the run totals.
func (a *App) printReport(runID string, report *executor.Report) {
	paint := a.painter()
	fmt.Fprintf(a.outW, "run %s\n", runID)
	for _, res := range report.Results {
		line := paint(res.Status)("%-12s %s", res.Status, res.ID)
		if res.Status == graph.Succeeded {
			line += fmt.Sprintf(" (%s)", res.Elapsed.Round(time.Millisecond))
		}
		if res.Reason != "" && res.Status != graph.Succeeded && res.Status != graph.UpToDate {
			line += fmt.Sprintf("  %s", res.Reason)
		}
		fmt.Fprintln(a.outW, line)
	}
	fmt.Fprintf(a.outW, "%d executed, %d up-to-date, %d skipped, %d failed, %d blocked\n",
		report.Executed, report.UpToDate, report.Skipped, report.Failed, report.Blocked)
}

// printPlan writes the dry-run plan, one predicted action per task in
// dependency order.
func (a *App) printPlan(steps []executor.PlanStep) {
	paint := a.painter()
	for _, step := range steps {
		status := planStatus(step.Action)
		fmt.Fprintln(a.outW, paint(status)("%-12s %s  %s", step.Action, step.ID, step.Reason))
	}
}

// planStatus borrows the run-report palette for plan actions.
func planStatus(action executor.PlanAction) graph.Status {
	switch action {
	case executor.PlanRun:
		return graph.Succeeded
	case executor.PlanFail:
		return graph.Failed
	case executor.PlanSkip:
		return graph.Skipped
	default:
		return graph.UpToDate
	}
}
