// Package filesystem stores note documents as one JSON file per note in a
// directory tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/becomeliminal/expmem/memory"
)

const (
	extension  = ".json"
	tempPrefix = ".tmp-"
)

// DirStore keeps documents under dir as <id>.json.
// Walk recurses into subdirectories and reads every regular file,
// whatever its name, so documents moved into nested folders are still found.
// Remove takes those walked names, which lets the caller move such a
// document back to <id>.json.
type DirStore struct {
	dir string
}

var _ memory.DocumentStore = (*DirStore)(nil)

// New creates dir if needed and returns a store rooted there.
func New(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("filesystem: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Path returns the file a document with this id is written to.
func (s *DirStore) Path(id string) string {
	return filepath.Join(s.dir, id+extension)
}

// Put writes the document atomically (temp file + rename).
func (s *DirStore) Put(ctx context.Context, id string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", id, err)
	}
	if err := os.Rename(tmpName, s.Path(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", id, err)
	}
	return nil
}

// Delete removes the document. A missing file is not an error.
func (s *DirStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

// Name returns the walked name of the document for id: "<id>.json".
func (s *DirStore) Name(id string) string {
	return id + extension
}

// Remove deletes the file Walk reported as name. Names must stay inside the root.
func (s *DirStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filepath.IsLocal(name) {
		return fmt.Errorf("filesystem: invalid document name %q", name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Walk visits every regular file below the root. Names passed to fn are
// relative to the root.
func (s *DirStore) Walk(ctx context.Context, fn memory.WalkFunc) error {
	if _, err := os.Stat(s.dir); errors.Is(err, iofs.ErrNotExist) {
		return nil
	}

	return filepath.WalkDir(s.dir, func(path string, d iofs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := s.rel(path)
		if err != nil {
			if path == s.dir {
				return err
			}
			// Unreadable subtree: report it and keep going.
			if cbErr := fn(name, nil, err); cbErr != nil {
				return cbErr
			}
			if d != nil && d.IsDir() {
				return iofs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		body, readErr := os.ReadFile(path)
		return fn(name, body, readErr)
	})
}

// Close is a no-op.
func (s *DirStore) Close() error {
	return nil
}

func (s *DirStore) rel(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return path
	}
	return rel
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("filesystem: invalid document id %q", id)
	}
	return nil
}
