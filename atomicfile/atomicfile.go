// Package atomicfile writes a file atomically: data goes to a
// temporary file in the destination directory and is renamed over the
// destination only on a successful Close. A crash or error part-way
// never leaves a truncated file behind, which matters for database
// snapshots and exports.
package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// ErrCancelled is returned by calls subsequent to Cancel
var ErrCancelled = errors.New("cancelled")

var _ io.WriteCloser = &File{}

// File writes to a temporary file and renames it over dstPath on Close.
type File struct {
	dstPath string
	dir     string
	tmp     *os.File
	tmpPath string
	err     error // first error; sticky
}

// New creates a temporary file in the same directory as path.
func New(path string) (*File, error) {
	dir, name := filepath.Split(path)
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	tmp, err := os.CreateTemp(dir, name)
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath: path,
		dir:     dir,
		tmp:     tmp,
		tmpPath: tmp.Name(),
	}, nil
}

// Write writes data to the temporary file.
func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmp.Write(d)
	if err != nil {
		f.fail(err)
	}
	return n, err
}

// fail records the first error and abandons the temporary file
func (f *File) fail(err error) {
	if f.err == nil {
		f.err = err
	}
	_ = f.Close()
}

// RemoveIfNotClosed deletes the temporary file if Close hasn't run yet.
// The destination is not created. Use with defer so a panic between New
// and Close doesn't leak the temp file. A no-op after Close.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.tmp == nil {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close syncs and closes the temporary file and, if everything
// succeeded, renames it over the destination. On any failure the
// temporary file is deleted and the destination is left untouched.
// Safe to call more than once.
func (f *File) Close() error {
	if f.tmp == nil {
		return f.err
	}
	tmp := f.tmp
	f.tmp = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmp.Sync()
	errClose := tmp.Close()

	err := f.err
	if err == nil {
		err = errSync
	}
	if err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
	}
	if err != nil {
		_ = os.Remove(f.tmpPath)
		if f.err == nil {
			f.err = err
		}
		return f.err
	}
	// sync the directory so the rename itself survives a crash.
	// best effort, errors ignored
	if fdir, _ := os.Open(f.dir); fdir != nil {
		_ = fdir.Sync()
		_ = fdir.Close()
	}
	return nil
}
