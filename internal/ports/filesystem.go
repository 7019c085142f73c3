package ports

import (
	"io"
	"io/fs"
)

// FileHandle is the subset of *os.File used by transcript and log writers.
type FileHandle interface {
	io.WriteCloser

	// Name returns the path the handle was opened with.
	Name() string
}

// FileSystem abstracts file operations on the host side of the shared
// directory for testing.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// OpenFile opens the named file with the given flags.
	OpenFile(name string, flag int, perm fs.FileMode) (FileHandle, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// DirFS returns a read-only view rooted at dir, used for globbing.
	DirFS(dir string) fs.FS
}
