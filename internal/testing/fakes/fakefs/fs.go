// Package fakefs provides an in-memory FileSystem implementation for testing.
package fakefs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing/fstest"
	"time"

	"github.com/acolita/openswitch-harness/internal/ports"
)

// FS is an in-memory filesystem for testing.
type FS struct {
	mu    sync.RWMutex
	files map[string]*fakeFile
	dirs  map[string]bool
}

type fakeFile struct {
	data    []byte
	mode    fs.FileMode
	modTime time.Time
}

// New creates a new in-memory filesystem.
func New() *FS {
	return &FS{
		files: make(map[string]*fakeFile),
		dirs:  map[string]bool{"/": true},
	}
}

// ReadFile reads the named file and returns its contents.
func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	name = filepath.Clean(name)
	file, ok := f.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	data := make([]byte, len(file.data))
	copy(data, file.data)
	return data, nil
}

// WriteFile writes data to the named file, creating parent directories.
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = filepath.Clean(name)
	f.mkdirAllLocked(filepath.Dir(name))

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	f.files[name] = &fakeFile{data: dataCopy, mode: perm, modTime: time.Now()}
	return nil
}

// OpenFile opens a file for writing. O_CREATE, O_EXCL, O_TRUNC and O_APPEND
// are honored; reads are not supported.
func (f *FS) OpenFile(name string, flag int, perm fs.FileMode) (ports.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = filepath.Clean(name)
	file, exists := f.files[name]
	switch {
	case exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	case !exists && flag&os.O_CREATE == 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	case !exists:
		f.mkdirAllLocked(filepath.Dir(name))
		file = &fakeFile{mode: perm, modTime: time.Now()}
		f.files[name] = file
	}
	if flag&os.O_TRUNC != 0 {
		file.data = nil
	}

	return &handle{fs: f, name: name}, nil
}

// MkdirAll creates a directory and all parent directories.
func (f *FS) MkdirAll(path string, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAllLocked(path)
	return nil
}

// DirFS returns a snapshot of the files under dir.
func (f *FS) DirFS(dir string) fs.FS {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir = filepath.Clean(dir)
	snapshot := fstest.MapFS{}
	for name, file := range f.files {
		rel, err := filepath.Rel(dir, name)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		data := make([]byte, len(file.data))
		copy(data, file.data)
		snapshot[filepath.ToSlash(rel)] = &fstest.MapFile{Data: data, Mode: file.mode, ModTime: file.modTime}
	}
	return snapshot
}

// mkdirAllLocked creates directories (must be called with lock held).
func (f *FS) mkdirAllLocked(path string) {
	path = filepath.Clean(path)
	for path != "/" && path != "." {
		f.dirs[path] = true
		path = filepath.Dir(path)
	}
}

// --- Test helpers ---

// AddFile adds a file directly (test setup helper).
func (f *FS) AddFile(name string, data []byte) {
	_ = f.WriteFile(name, data, 0644)
}

// Content returns the content of name, or "" when it does not exist.
func (f *FS) Content(name string) string {
	data, err := f.ReadFile(name)
	if err != nil {
		return ""
	}
	return string(data)
}

// Exists reports whether a file or directory exists at name.
func (f *FS) Exists(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	name = filepath.Clean(name)
	_, isFile := f.files[name]
	return isFile || f.dirs[name]
}

// Files returns all file paths, sorted.
func (f *FS) Files() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// handle appends writes to an in-memory file.
type handle struct {
	fs     *FS
	name   string
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return 0, fs.ErrClosed
	}
	file, ok := h.fs.files[h.name]
	if !ok {
		return 0, &fs.PathError{Op: "write", Path: h.name, Err: fs.ErrNotExist}
	}
	file.data = append(file.data, p...)
	file.modTime = time.Now()
	return len(p), nil
}

func (h *handle) Close() error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	h.closed = true
	return nil
}

func (h *handle) Name() string {
	return h.name
}

// Ensure FS implements ports.FileSystem.
var _ ports.FileSystem = (*FS)(nil)
