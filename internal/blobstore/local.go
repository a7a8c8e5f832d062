package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const stagingDirName = ".staging"

// ErrPathEscapesRoot is returned when a joined path would leave its base.
var ErrPathEscapesRoot = errors.New("path escapes storage root")

// ErrFileExists is returned by Commit when the destination is taken.
var ErrFileExists = errors.New("file already exists")

// LocalStorage serves replica bytes from a directory tree.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates local storage rooted at root.
func NewLocalStorage(root string) (*LocalStorage, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("file store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{root: abs}, nil
}

// Root returns the absolute storage root.
func (s *LocalStorage) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// SafeJoin joins rel under base and refuses results outside base.
// Absolute rel values are rejected rather than reinterpreted.
func SafeJoin(base, rel string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("base path is required")
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, rel)
	}
	joined := filepath.Join(absBase, filepath.FromSlash(rel))
	if joined != absBase && !strings.HasPrefix(joined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, rel)
	}
	return joined, nil
}

// Open returns a reader for the file stored under name.
func (s *LocalStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if s == nil {
		return nil, fmt.Errorf("file store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := SafeJoin(s.root, name)
	if err != nil {
		return nil, err
	}
	if path == s.root {
		return nil, fmt.Errorf("file name is required")
	}
	return os.Open(path)
}

// ErrNotAFile is returned by Remove for directories and the storage root.
var ErrNotAFile = errors.New("not a regular file")

// Remove deletes the file at path. A missing file is an error, and
// directories are never removed.
func (s *LocalStorage) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("file path is required")
	}
	if s != nil && filepath.Clean(path) == s.root {
		return fmt.Errorf("%w: %q is the storage root", ErrNotAFile, path)
	}
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %q is a directory", ErrNotAFile, path)
	}
	return os.Remove(path)
}

// Staged is a temporary file inside the storage root that becomes a stored
// file on Commit.
type Staged struct {
	storage *LocalStorage
	file    *os.File
	done    bool
}

// Stage opens a new temporary file for writing.
func (s *LocalStorage) Stage(ctx context.Context) (*Staged, error) {
	if s == nil {
		return nil, fmt.Errorf("file store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, stagingDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "put-*")
	if err != nil {
		return nil, err
	}
	return &Staged{storage: s, file: f}, nil
}

func (st *Staged) Write(p []byte) (int, error) {
	return st.file.Write(p)
}

// Commit moves the staged bytes to name. An existing file is never replaced.
func (st *Staged) Commit(name string) (string, error) {
	if st.done {
		return "", fmt.Errorf("staged file already finalized")
	}
	dst, err := SafeJoin(st.storage.root, name)
	if err != nil {
		st.Discard()
		return "", err
	}
	if dst == st.storage.root || strings.HasPrefix(dst, filepath.Join(st.storage.root, stagingDirName)) {
		st.Discard()
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := st.file.Close(); err != nil {
		st.Discard()
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		st.Discard()
		return "", err
	}
	// Link fails with EEXIST instead of replacing dst.
	if err := os.Link(st.file.Name(), dst); err != nil {
		st.Discard()
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %q", ErrFileExists, name)
		}
		return "", err
	}
	st.Discard()
	return dst, nil
}

// Discard removes the staged file. It is safe to call after Commit.
func (st *Staged) Discard() {
	if st.done {
		return
	}
	st.done = true
	_ = st.file.Close()
	_ = os.Remove(st.file.Name())
}
