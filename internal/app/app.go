package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/fsutil"
	"github.com/vk/pipewright/internal/instance"
	"github.com/vk/pipewright/internal/resolve"
	"github.com/vk/pipewright/internal/schema"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle: the parsed model, the instance forest, and the runner that
// will execute stale tasks.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	schema *schema.Schema
	forest *instance.Forest
	runner executor.Runner
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, the model parsed
// and validated, and the instance forest loaded against it. A runner of nil
// selects the local shell runner.
func NewApp(outW io.Writer, config *Config, runner executor.Runner) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	modelFiles, err := discoverModelFiles(config.ModelPath)
	if err != nil {
		// A failure to locate the model is a fatal startup error.
		panic(fmt.Errorf("failed to locate model files: %w", err))
	}
	logger.Debug("Model files discovered.", "count", len(modelFiles))

	sch, err := schema.Parse(ctx, modelFiles...)
	if err != nil {
		panic(fmt.Errorf("failed to parse model: %w", err))
	}
	logger.Debug("Model parsed and validated.", "classes", len(sch.Order))

	forest, err := instance.Load(ctx, sch, config.InstancesPath)
	if err != nil {
		panic(fmt.Errorf("failed to load instances: %w", err))
	}
	logger.Debug("Instance forest loaded.", "instances", forest.Len())

	if runner == nil {
		runner = &executor.ShellRunner{}
	}

	return &App{
		outW:   outW,
		logger: logger,
		config: config,
		schema: sch,
		forest: forest,
		runner: runner,
	}
}

// Schema returns the parsed model. This is primarily for testing.
func (a *App) Schema() *schema.Schema { return a.schema }

// Forest returns the loaded instance forest. This is primarily for testing.
func (a *App) Forest() *instance.Forest { return a.forest }

// Resolver returns a fresh resolver over the app's model and base
// directory.
func (a *App) Resolver() *resolve.Resolver {
	return resolve.New(a.schema, a.config.BaseDir)
}

// discoverModelFiles accepts either a single model file or a directory and
// returns the file list to parse. Directory results are sorted so that
// later files override earlier ones deterministically.
func discoverModelFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := fsutil.FindFilesByExtension(path, ".meta")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .meta files found under %s", path)
	}
	sort.Strings(files)
	return files, nil
}
