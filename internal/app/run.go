package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/graph"
)

// Run executes the main application logic: build the task graph, then
// either print the dry-run plan or hand the graph to the executor and
// report the outcome.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("App.Run method started.")

	logger.Debug("Building task graph from instance forest...")
	g, err := graph.Build(ctx, a.schema, a.forest, a.Resolver())
	if err != nil {
		return fmt.Errorf("failed to build task graph: %w", err)
	}
	logger.Debug("Task graph built.", "tasks", len(g.Tasks), "files", len(g.Files))

	if a.config.DryRun {
		steps, err := executor.Plan(g)
		if err != nil {
			return fmt.Errorf("failed to plan run: %w", err)
		}
		a.printPlan(steps)
		return nil
	}

	if len(g.Tasks) == 0 {
		logger.Warn("No tasks in graph, execution not required.")
		return nil
	}

	logger.Info("Starting concurrent execution.", "workers", a.config.WorkerCount)
	exec := executor.New(g, a.runner, a.config.WorkerCount)
	report := exec.Run(ctx)
	logger.Info("Execution finished.",
		"executed", report.Executed,
		"up_to_date", report.UpToDate,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"blocked", report.Blocked)

	a.printReport(runID, report)
	return report.Err()
}
