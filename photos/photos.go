// Package photos opens restaurant photos by filename from a local
// directory or an S3 bucket.
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a photo does not exist.
var ErrNotFound = errors.New("photos: not found")

// ErrInvalidName is returned for names that escape the photo root.
var ErrInvalidName = errors.New("photos: invalid name")

// Source opens photos by the filename recorded in the record store.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// cleanName validates a slash-separated photo name.
func cleanName(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") || !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path.Clean(name), nil
}

// Local serves photos from a directory.
type Local struct {
	dir string
}

// NewLocal returns a Source rooted at dir.
func NewLocal(dir string) *Local { return &Local{dir: dir} }

// Dir returns the root directory.
func (l *Local) Dir() string { return l.dir }

// Open implements Source.
func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.dir, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("photos: open %s: %w", name, err)
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, nil
}
