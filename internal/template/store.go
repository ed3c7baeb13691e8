// Package template provides file-backed prompt template lookup.
package template

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound signals that a named template does not exist under the
// configured directory. The prompt composer substitutes its built-in
// fallback on this error.
var ErrNotFound = errors.New("template not found")

// Store loads prompt templates by name from a directory. Lookups are not
// cached; composition is cheap relative to remote inference latency.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads the named template file. It returns ErrNotFound (wrapped) when
// the file does not exist.
func (s *Store) Load(name string) (string, error) {
	path := filepath.Join(s.dir, name)

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return string(b), nil
}
