// Package testutil provides the integration-test harness: it materializes
// model, instantiation and data files in a temporary directory, runs the
// application against them, and captures logs and outcomes.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/app"
	"github.com/vk/pipewright/internal/executor"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Dir       string
}

// RunPipeline provides a standardized harness for end-to-end tests using a
// default background context.
func RunPipeline(t *testing.T, files map[string]string, runner executor.Runner) *HarnessResult {
	t.Helper()
	return RunPipelineWithContext(context.Background(), t, files, runner)
}

// RunPipelineWithContext writes the given files under a fresh temporary
// directory, constructs the app over them and runs it once. The file map
// must contain exactly one model entry (a name ending in .meta) and one
// instantiation entry (instances.txt, instances.yaml or instances.yml);
// everything else is written verbatim as pipeline data.
func RunPipelineWithContext(ctx context.Context, t *testing.T, files map[string]string, runner executor.Runner) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	modelPath, instancesPath := "", ""
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))

		switch {
		case strings.HasSuffix(name, ".meta"):
			modelPath = filePath
		case name == "instances.txt" || name == "instances.yaml" || name == "instances.yml":
			instancesPath = filePath
		}
	}
	require.NotEmpty(t, modelPath, "harness needs a .meta file")
	require.NotEmpty(t, instancesPath, "harness needs an instances file")

	appConfig, err := app.NewConfig(app.Config{
		ModelPath:     modelPath,
		InstancesPath: instancesPath,
		BaseDir:       tmpDir,
		LogLevel:      "debug",
		LogFormat:     "text",
		WorkerCount:   4,
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	result := &HarnessResult{Dir: tmpDir}

	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		result.App = app.NewApp(logBuffer, appConfig, runner)
	}()
	if panicErr != nil {
		result.LogOutput = logBuffer.String()
		result.Err = fmt.Errorf("application startup panicked | %v", panicErr)
		return result
	}

	result.Err = result.App.Run(ctx)
	result.LogOutput = logBuffer.String()

	if os.Getenv("PW_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}

// Rerun executes the already-constructed app again, for incrementality
// tests that mutate files between runs.
func (r *HarnessResult) Rerun(ctx context.Context, t *testing.T) error {
	t.Helper()
	require.NotNil(t, r.App, "cannot rerun: startup failed")
	return r.App.Run(ctx)
}

// Path joins name onto the harness's temporary directory.
func (r *HarnessResult) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// WriteFile creates or replaces a data file under the harness directory.
func (r *HarnessResult) WriteFile(t *testing.T, name, content string) {
	t.Helper()
	path := r.Path(name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// Touch pushes a file's timestamps to the given time. Staleness tests set
// explicit mtimes instead of sleeping across filesystem clock granularity.
func (r *HarnessResult) Touch(t *testing.T, name string, when time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(r.Path(name), when, when))
}

// Remove deletes a file under the harness directory.
func (r *HarnessResult) Remove(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.Remove(r.Path(name)))
}
