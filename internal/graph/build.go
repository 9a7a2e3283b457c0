package graph

import (
	"context"
	"fmt"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/instance"
	"github.com/vk/pipewright/internal/resolve"
	"github.com/vk/pipewright/internal/schema"
)

// Build constructs the complete, validated task graph for one run.
//
// For every instance and every command declared on the instance's class,
// the run_if predicate decides between a runnable task and a Skipped one.
// A Skipped task still enters the graph with its resolved output paths so
// that dependents can be skipped transitively, but its inputs and argument
// string are never resolved: run_if often guards exactly the properties
// those would need.
func Build(ctx context.Context, sch *schema.Schema, forest *instance.Forest, res *resolve.Resolver) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := &Graph{
		Tasks: make(map[string]*Task),
		Files: make(map[string]*File),
	}

	for _, inst := range forest.All() {
		for _, def := range sch.CommandsFor(inst.Class.Name) {
			id := fmt.Sprintf("%s.%s", inst.Name, def.Name)

			if def.RunIf != nil && !def.RunIf.Eval(inst) {
				logger.Debug("Command gated off by run_if.", "task", id, "run_if", def.RunIfSrc)
				task, err := newSkippedTask(id, inst, def, res)
				if err != nil {
					return nil, err
				}
				g.addTask(task)
				continue
			}

			cmd, err := res.ResolveCommand(inst, def)
			if err != nil {
				return nil, err
			}
			g.addTask(&Task{
				ID:         id,
				Cmd:        cmd,
				Deps:       make(map[string]*Task),
				Dependents: make(map[string]*Task),
			})
		}
	}
	logger.Debug("Task nodes created.", "count", len(g.Tasks))

	if err := g.wireFiles(); err != nil {
		return nil, err
	}
	logger.Debug("File wiring complete.", "files", len(g.Files))

	for _, task := range g.Tasks {
		task.depCount.Store(int32(len(task.Deps)))
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Cycle detection passed.")
	return g, nil
}

func newSkippedTask(id string, inst *instance.Instance, def *schema.CommandDef, res *resolve.Resolver) (*Task, error) {
	cmd := &resolve.Command{Instance: inst, Def: def}
	for _, out := range def.Outputs {
		path, err := res.FilePath(inst, out.File)
		if err != nil {
			return nil, err
		}
		cmd.Outputs = append(cmd.Outputs, resolve.Output{Name: out.File, Path: path})
	}
	task := &Task{
		ID:         id,
		Cmd:        cmd,
		Deps:       make(map[string]*Task),
		Dependents: make(map[string]*Task),
	}
	task.status.Store(int32(Skipped))
	return task, nil
}

func (g *Graph) addTask(t *Task) {
	g.Tasks[t.ID] = t
	g.Order = append(g.Order, t.ID)
}

// wireFiles interns a file node per resolved path and links producers to
// consumers: task A depends on task B when one of A's input paths is one of
// B's output paths.
func (g *Graph) wireFiles() error {
	intern := func(path string) *File {
		if f, ok := g.Files[path]; ok {
			return f
		}
		f := &File{Path: path}
		g.Files[path] = f
		return f
	}

	for _, id := range g.Order {
		task := g.Tasks[id]
		for _, out := range task.Cmd.Outputs {
			f := intern(out.Path)
			switch {
			case f.Producer == nil || f.Producer == task:
				f.Producer = task
			case task.Status() == Skipped:
				// A gated-off alternative producer; the registered one stands.
			case f.Producer.Status() == Skipped:
				// A runnable producer displaces a gated-off placeholder.
				f.Producer = task
			default:
				return &GraphError{
					Kind: KindOutputConflict,
					Task: task.ID,
					Message: fmt.Sprintf("output %s is already produced by task %s",
						out.Path, f.Producer.ID),
				}
			}
		}
	}

	for _, id := range g.Order {
		task := g.Tasks[id]
		for _, in := range task.Cmd.Inputs {
			f := intern(in.Path)
			f.Consumers = append(f.Consumers, task)
			if f.Producer == nil || f.Producer == task {
				continue
			}
			if _, ok := task.Deps[f.Producer.ID]; !ok {
				task.Deps[f.Producer.ID] = f.Producer
				f.Producer.Dependents[task.ID] = task
			}
		}
	}
	return nil
}

// detectCycles checks for circular dependencies using depth-first search.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(task *Task) error
	visit = func(task *Task) error {
		visiting[task.ID] = true
		for _, dep := range task.Deps {
			if visiting[dep.ID] {
				return &GraphError{
					Kind:    KindCycle,
					Task:    task.ID,
					Message: fmt.Sprintf("dependency cycle through %s", dep.ID),
				}
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, task.ID)
		visited[task.ID] = true
		return nil
	}

	for _, id := range g.Order {
		if !visited[id] {
			if err := visit(g.Tasks[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopoOrder returns tasks in a topological order using Kahn's algorithm.
// Build has already rejected cycles, so every task appears.
func (g *Graph) TopoOrder() []*Task {
	inDegree := make(map[string]int, len(g.Tasks))
	for id, task := range g.Tasks {
		inDegree[id] = len(task.Deps)
	}

	var queue []*Task
	for _, id := range g.Order {
		if inDegree[id] == 0 {
			queue = append(queue, g.Tasks[id])
		}
	}

	order := make([]*Task, 0, len(g.Tasks))
	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]
		order = append(order, task)
		for _, dep := range task.Dependents {
			inDegree[dep.ID]--
			if inDegree[dep.ID] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return order
}
