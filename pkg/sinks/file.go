package sinks

import (
	"fmt"
	"os"
	"path/filepath"
)

// fileTarget holds the output directory shared by the file sinks.
type fileTarget struct {
	dir string
}

func newFileTarget(dir string) (fileTarget, error) {
	if dir == "" {
		return fileTarget{}, fmt.Errorf("an export directory is required")
	}
	return fileTarget{dir: dir}, nil
}

// write creates the directory on first use and replaces any file of the same name.
func (f fileTarget) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", f.dir, err)
	}

	path := filepath.Join(f.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
