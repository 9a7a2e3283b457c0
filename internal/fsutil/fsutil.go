// Package fsutil provides the small set of filesystem operations the engine
// needs for correctness: existence, size and modification-time checks, plus
// discovery of model files. Stats are always read fresh from the filesystem,
// never cached, so staleness decisions stay correct while concurrent tasks
// write sibling outputs.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileState is a point-in-time snapshot of one path.
type FileState struct {
	Path    string
	Exists  bool
	Size    int64
	ModTime time.Time
}

// Stat returns a fresh snapshot of path. A missing file is not an error;
// it is reported via Exists=false.
func Stat(path string) (FileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileState{Path: path}, nil
		}
		return FileState{Path: path}, err
	}
	return FileState{
		Path:    path,
		Exists:  true,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Exists reports whether path exists, swallowing stat errors as absence.
func Exists(path string) bool {
	st, err := Stat(path)
	return err == nil && st.Exists
}

// EnsureParentDir creates the directory containing path, if needed. Tasks
// write their outputs through external processes that do not create
// directories themselves.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// FindFilesByExtension recursively searches the given root path for all
// files ending with the specified extension and returns their full paths
// in walk order.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
