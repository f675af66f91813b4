package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// File is a Blob on the local filesystem.
type File struct {
	path string
}

// NewFile returns the Blob at path. The parent directory is created on the
// first Create.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &File{path: abs}, nil
}

func (f *File) String() string { return f.path }

func (f *File) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Create writes to a temporary file in the same directory, which Close
// renames over the target.
func (f *File) Create(context.Context) (io.WriteCloser, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &renameOnClose{tmp: tmp, target: f.path}, nil
}

func (f *File) Exists(context.Context) (bool, error) {
	_, err := os.Stat(f.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (f *File) Remove(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type renameOnClose struct {
	tmp    *os.File
	target string
	done   bool
}

func (w *renameOnClose) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *renameOnClose) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	err := w.tmp.Sync()
	if cerr := w.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(w.tmp.Name(), w.target)
	}
	if err != nil {
		os.Remove(w.tmp.Name())
	}
	return err
}

var _ Blob = (*File)(nil)
