package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	t.Run("existing file", func(t *testing.T) {
		st, err := Stat(path)
		require.NoError(t, err)
		assert.True(t, st.Exists)
		assert.EqualValues(t, 3, st.Size)
		assert.False(t, st.ModTime.IsZero())
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		st, err := Stat(filepath.Join(dir, "nope.txt"))
		require.NoError(t, err)
		assert.False(t, st.Exists)
	})
}

func TestEnsureParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c.txt")

	require.NoError(t, EnsureParentDir(path))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))

	// Idempotent.
	require.NoError(t, EnsureParentDir(path))
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	for _, name := range []string{"a.meta", "sub/b.meta", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := FindFilesByExtension(dir, ".meta")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Contains(t, files, filepath.Join(dir, "a.meta"))
	assert.Contains(t, files, filepath.Join(dir, "sub", "b.meta"))
}
