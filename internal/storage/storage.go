// Package storage abstracts access to the backing media files. The
// pipeline and scheduler only need to open a file and check that it still
// exists; everything else about the upload layout is someone else's
// problem.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage provides read access to media files.
type Storage interface {
	// Open returns a reader for the file at the given library-relative path.
	Open(path string) (io.ReadCloser, error)

	// Exists reports whether the file at the given path is present.
	// Used for orphan detection before enqueueing work.
	Exists(path string) bool

	// Abs resolves a library-relative path to an absolute filesystem path
	// for components that hand paths to external tooling.
	Abs(path string) string
}

// Disk is a Storage backed by a local (possibly NFS-mounted) directory.
type Disk struct {
	root  string
	retry RetryConfig
}

// NewDisk creates a Disk storage rooted at the given directory.
func NewDisk(root string) *Disk {
	return &Disk{
		root:  root,
		retry: DefaultRetryConfig(),
	}
}

// Abs resolves a library-relative path against the storage root.
// Absolute inputs are used as-is so callers holding full paths keep working.
func (d *Disk) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.root, path)
}

// resolve maps a library-relative path to an absolute one, rejecting
// traversal outside the root. Absolute inputs pass through untouched.
func (d *Disk) resolve(path string) (string, bool) {
	if filepath.IsAbs(path) {
		return path, true
	}
	cleaned, ok := Clean(path)
	if !ok {
		return "", false
	}
	return filepath.Join(d.root, cleaned), true
}

// Open opens a media file, retrying on NFS stale file handle errors.
func (d *Disk) Open(path string) (io.ReadCloser, error) {
	abs, ok := d.resolve(path)
	if !ok {
		return nil, fmt.Errorf("path escapes media root: %s", path)
	}
	return openWithRetry(abs, d.retry)
}

// Exists reports whether the file is present on disk. A stat error other
// than "not exist" is treated as present to avoid misclassifying items as
// orphans during transient storage trouble.
func (d *Disk) Exists(path string) bool {
	abs, ok := d.resolve(path)
	if !ok {
		return false
	}
	info, err := statWithRetry(abs, d.retry)
	if err != nil {
		return !os.IsNotExist(err)
	}
	return !info.IsDir()
}

// Clean normalizes a library-relative path, rejecting traversal outside
// the root.
func Clean(path string) (string, bool) {
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", false
	}
	return cleaned, true
}
