// Package executor schedules and runs the task graph: it admits tasks whose
// dependencies have settled, decides staleness against the live filesystem,
// and dispatches stale tasks to a bounded worker pool. A failed task blocks
// only its transitive dependents; independent branches keep running.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/graph"
)

// Executor drives one pipeline run over a built graph.
type Executor struct {
	graph   *graph.Graph
	runner  Runner
	workers int
	wg      sync.WaitGroup
	ready   chan *graph.Task
}

// New creates an executor with the given concurrency bound.
func New(g *graph.Graph, runner Runner, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{graph: g, runner: runner, workers: workers}
}

// Run executes the graph and returns the per-task report. The returned
// error is nil unless the run itself could not be carried out; task
// failures are reported via Report.Err.
func (e *Executor) Run(ctx context.Context) *Report {
	logger := ctxlog.FromContext(ctx)

	e.ready = make(chan *graph.Task, len(e.graph.Tasks))
	rootCount := 0
	for _, task := range e.graph.TasksInOrder() {
		if task.DepCount() == 0 {
			task.MarkReady()
			e.ready <- task
			rootCount++
		}
	}
	logger.Debug("Executor initialized.", "tasks", len(e.graph.Tasks), "roots", rootCount, "workers", e.workers)

	e.wg.Add(len(e.graph.Tasks))
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, i)
	}

	e.wg.Wait()
	close(e.ready)
	logger.Debug("All tasks settled.")

	return buildReport(e.graph)
}

// worker is the processing loop for one concurrent worker.
func (e *Executor) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for task := range e.ready {
		taskLogger := logger.With("workerID", workerID, "task", task.ID)

		if task.Status() == graph.Skipped {
			// Gated off by run_if at build time. Satisfied for dependency
			// purposes without producing outputs. Settled before the
			// cancellation check: a gated-off task is not cancellation
			// fallout.
			taskLogger.Info("Task skipped by run_if.", "run_if", task.Cmd.Def.RunIfSrc)
			e.settle(ctx, task, graph.Skipped, nil, "run_if evaluated false")
			continue
		}

		if ctx.Err() != nil {
			// Cancellation stops admission; already-settled tasks keep
			// their state so a later run resumes from it. Downstream
			// tasks are blocked so the run drains.
			if task.Finish(graph.Blocked, ctx.Err(), e.wg.Done) {
				task.Reason = "run canceled"
			}
			e.blockDependents(ctx, task)
			continue
		}

		ev, err := evaluate(task, liveRebuilt)
		if err != nil {
			taskLogger.Error("Task evaluation failed.", "error", err)
			e.fail(ctx, task, err)
			continue
		}

		switch ev.verdict {
		case verdictSkip:
			taskLogger.Warn("Task skipped transitively.", "reason", ev.reason)
			e.settle(ctx, task, graph.Skipped, nil, ev.reason)

		case verdictFail:
			taskLogger.Error("Task cannot run.", "reason", ev.reason)
			e.fail(ctx, task, ev.err)

		case verdictUpToDate:
			taskLogger.Debug("Task is up to date.", "reason", ev.reason)
			e.settle(ctx, task, graph.UpToDate, nil, ev.reason)

		case verdictRun:
			task.Reason = ev.reason
			e.execute(ctx, taskLogger, task, ev)
		}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// execute runs one stale task through the runner and settles it from what
// the process left behind.
func (e *Executor) execute(ctx context.Context, taskLogger *slog.Logger, task *graph.Task, ev evaluation) {
	task.Argv = task.Cmd.RenderArgs(func(path string) bool { return ev.present[path] })

	outputs := make([]string, len(task.Cmd.Outputs))
	for i, out := range task.Cmd.Outputs {
		outputs[i] = out.Path
	}

	taskLogger.Info("Task starting.", "reason", ev.reason, "command", task.Argv)
	task.SetRunning()

	res, err := e.runner.Run(ctx, Invocation{
		TaskID:  task.ID,
		Argv:    task.Argv,
		Kind:    task.Cmd.Def.Kind,
		Outputs: outputs,
	})
	task.Output = res.Output
	task.Elapsed = res.Elapsed

	if err != nil {
		taskLogger.Error("Task invocation failed.", "error", err)
		e.fail(ctx, task, &TaskError{
			Kind:    KindNonzeroExit,
			Task:    task.ID,
			Command: task.Argv,
			Output:  res.Output,
			Message: err.Error(),
			Err:     err,
		})
		return
	}
	if res.ExitCode != 0 {
		taskLogger.Error("Task exited nonzero.", "exit_code", res.ExitCode)
		e.fail(ctx, task, &TaskError{
			Kind:    KindNonzeroExit,
			Task:    task.ID,
			Command: task.Argv,
			Output:  res.Output,
			Message: fmt.Sprintf("exit status %d", res.ExitCode),
		})
		return
	}
	if missing, ok := missingOutput(task); ok {
		taskLogger.Error("Task succeeded but output is missing.", "output", missing)
		e.fail(ctx, task, &TaskError{
			Kind:    KindMissingRequiredOutput,
			Task:    task.ID,
			Command: task.Argv,
			Output:  res.Output,
			Message: fmt.Sprintf("declared output %s was not produced", missing),
		})
		return
	}

	taskLogger.Info("Task succeeded.", "elapsed", res.Elapsed)
	e.settle(ctx, task, graph.Succeeded, nil, ev.reason)
}

// settle finalizes a task and releases its dependents into the ready
// channel. Rebuild propagation happens before the transition so dependents
// always observe it.
func (e *Executor) settle(ctx context.Context, task *graph.Task, status graph.Status, err error, reason string) {
	propagateRebuilt(task)
	if task.Finish(status, err, e.wg.Done) {
		task.Reason = reason
	}
	e.releaseDependents(ctx, task)
}

// fail finalizes a failed task and blocks everything downstream of it.
func (e *Executor) fail(ctx context.Context, task *graph.Task, err error) {
	propagateRebuilt(task)
	task.Finish(graph.Failed, err, e.wg.Done)
	e.blockDependents(ctx, task)
}

// releaseDependents hands dependents whose last dependency just settled to
// the scheduler.
func (e *Executor) releaseDependents(ctx context.Context, task *graph.Task) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range task.Dependents {
		if dep.DecrementDepCount() == 0 {
			logger.Debug("Unlocking dependent task.", "task", dep.ID)
			dep.MarkReady()
			e.ready <- dep
		}
	}
}

// blockDependents recursively settles all downstream tasks as Blocked.
// They are reported, never silently dropped.
func (e *Executor) blockDependents(ctx context.Context, task *graph.Task) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range task.Dependents {
		blockErr := fmt.Errorf("blocked by upstream failure of %s", task.ID)
		if dep.Finish(graph.Blocked, blockErr, e.wg.Done) {
			dep.Reason = blockErr.Error()
			logger.Warn("Blocking dependent task.", "task", dep.ID, "upstream", task.ID)
			e.blockDependents(ctx, dep)
		}
	}
}

// propagateRebuilt folds the rebuilt flags of a task's dependencies into
// the task itself; every dependency has settled by the time this runs.
func propagateRebuilt(task *graph.Task) {
	for _, dep := range task.Deps {
		if dep.Rebuilt() {
			task.MarkRebuilt()
			return
		}
	}
}

// liveRebuilt is the upstream-executed predicate for a real run.
func liveRebuilt(dep *graph.Task) bool { return dep.Rebuilt() }
