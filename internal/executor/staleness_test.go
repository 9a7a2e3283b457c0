package executor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/graph"
	"github.com/vk/pipewright/internal/resolve"
)

func neverRebuilt(*graph.Task) bool { return false }

func writeAt(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// taskWith builds a bare task over literal input/output paths.
func taskWith(id string, inputs []resolve.Input, outputs []resolve.Output) *graph.Task {
	return &graph.Task{
		ID:         id,
		Cmd:        &resolve.Command{Inputs: inputs, Outputs: outputs},
		Deps:       make(map[string]*graph.Task),
		Dependents: make(map[string]*graph.Task),
	}
}

func TestEvaluateStaleness(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	base := time.Now().Add(-time.Hour)

	t.Run("no outputs always runs", func(t *testing.T) {
		task := taskWith("t", nil, nil)
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictRun, ev.verdict)
		assert.Equal(t, "no declared outputs", ev.reason)
	})

	t.Run("missing output runs", func(t *testing.T) {
		writeAt(t, in, "data", base)
		task := taskWith("t",
			[]resolve.Input{{Name: "in", Path: in}},
			[]resolve.Output{{Name: "out", Path: filepath.Join(dir, "never-made.txt")}})
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictRun, ev.verdict)
	})

	t.Run("current output is up to date", func(t *testing.T) {
		writeAt(t, in, "data", base)
		writeAt(t, out, "result", base.Add(time.Minute))
		task := taskWith("t",
			[]resolve.Input{{Name: "in", Path: in}},
			[]resolve.Output{{Name: "out", Path: out}})
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictUpToDate, ev.verdict)
	})

	t.Run("newer input runs", func(t *testing.T) {
		writeAt(t, out, "result", base)
		writeAt(t, in, "data", base.Add(time.Minute))
		task := taskWith("t",
			[]resolve.Input{{Name: "in", Path: in}},
			[]resolve.Output{{Name: "out", Path: out}})
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictRun, ev.verdict)
	})

	t.Run("rebuilt upstream runs even with current outputs", func(t *testing.T) {
		writeAt(t, in, "data", base)
		writeAt(t, out, "result", base.Add(time.Minute))
		task := taskWith("t",
			[]resolve.Input{{Name: "in", Path: in}},
			[]resolve.Output{{Name: "out", Path: out}})
		dep := taskWith("up", nil, []resolve.Output{{Name: "in", Path: in}})
		task.Deps["up"] = dep
		ev, err := evaluate(task, func(*graph.Task) bool { return true })
		require.NoError(t, err)
		assert.Equal(t, verdictRun, ev.verdict)
	})
}

func TestEvaluateInputPresence(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	writeAt(t, empty, "", time.Now().Add(-time.Hour))

	t.Run("required missing input with no producer fails", func(t *testing.T) {
		task := taskWith("t",
			[]resolve.Input{{Name: "in", Path: filepath.Join(dir, "absent.txt")}},
			nil)
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictFail, ev.verdict)
		require.NotNil(t, ev.err)
		assert.Equal(t, KindMissingRequiredInput, ev.err.Kind)
	})

	t.Run("zero-byte input does not count as present", func(t *testing.T) {
		task := taskWith("t", []resolve.Input{{Name: "in", Path: empty}}, nil)
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictFail, ev.verdict)
	})

	t.Run("allow_empty accepts a zero-byte input", func(t *testing.T) {
		task := taskWith("t", []resolve.Input{{Name: "in", Path: empty, AllowEmpty: true}}, nil)
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictRun, ev.verdict)
		assert.True(t, ev.present[empty])
	})

	t.Run("optional missing input is tolerated", func(t *testing.T) {
		task := taskWith("t",
			[]resolve.Input{{Name: "in", Path: filepath.Join(dir, "absent.txt"), Optional: true}},
			nil)
		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictRun, ev.verdict)
		assert.False(t, ev.present[filepath.Join(dir, "absent.txt")])
	})

	t.Run("skipped producer propagates the skip", func(t *testing.T) {
		missing := filepath.Join(dir, "gated.txt")
		task := taskWith("t", []resolve.Input{{Name: "in", Path: missing}}, nil)
		producer := taskWith("up", nil, []resolve.Output{{Name: "in", Path: missing}})
		producer.Finish(graph.Skipped, nil, nil)
		task.Deps["up"] = producer

		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictSkip, ev.verdict)
		assert.Contains(t, ev.reason, "up")
	})

	t.Run("skipped producer with input present on disk still runs", func(t *testing.T) {
		onDisk := filepath.Join(dir, "resumed.txt")
		writeAt(t, onDisk, "data", time.Now().Add(-time.Hour))
		task := taskWith("t", []resolve.Input{{Name: "in", Path: onDisk}}, nil)
		producer := taskWith("up", nil, []resolve.Output{{Name: "in", Path: onDisk}})
		producer.Finish(graph.Skipped, nil, nil)
		task.Deps["up"] = producer

		ev, err := evaluate(task, neverRebuilt)
		require.NoError(t, err)
		assert.Equal(t, verdictRun, ev.verdict)
	})
}

func TestMissingOutput(t *testing.T) {
	dir := t.TempDir()
	made := filepath.Join(dir, "made.txt")
	writeAt(t, made, "x", time.Now())

	task := taskWith("t", nil, []resolve.Output{
		{Name: "a", Path: made},
		{Name: "b", Path: filepath.Join(dir, "not-made.txt")},
	})
	missing, ok := missingOutput(task)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "not-made.txt"), missing)

	task = taskWith("t", nil, []resolve.Output{{Name: "a", Path: made}})
	_, ok = missingOutput(task)
	assert.False(t, ok)
}
