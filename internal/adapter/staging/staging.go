package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const filePerm = 0644

// Area is a scratch directory for the transient blobs staged around a
// document conversion. Blob names are always reduced to their base name, so a
// caller-supplied name can never escape the directory.
type Area struct {
	dir    string
	logger *slog.Logger
}

// NewArea creates the staging directory if needed and returns an Area bound
// to it.
func NewArea(dir string, logger *slog.Logger) (*Area, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create staging directory %s: %w", dir, err)
	}
	return &Area{
		dir:    dir,
		logger: logger.With("component", "staging"),
	}, nil
}

// Path returns the absolute location a blob name maps to inside the area.
func (a *Area) Path(name string) string {
	return filepath.Join(a.dir, filepath.Base(name))
}

// Write stages a blob and returns its absolute path.
func (a *Area) Write(name string, data []byte) (string, error) {
	path := a.Path(name)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("stage blob %s: %w", name, err)
	}
	return path, nil
}

// Read loads a staged blob back into memory.
func (a *Area) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(a.Path(name))
	if err != nil {
		return nil, fmt.Errorf("read staged blob %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes a staged blob. Removing a blob that was never written is a
// success, so cleanup paths can fire unconditionally.
func (a *Area) Remove(name string) error {
	err := os.Remove(a.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged blob %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a blob is currently staged.
func (a *Area) Exists(name string) bool {
	_, err := os.Stat(a.Path(name))
	return err == nil
}
