package recording

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/acolita/openswitch-harness/internal/ports"
)

// Manager hands out one recorder per shell connection of a container and
// remembers every transcript it produced.
type Manager struct {
	mu        sync.Mutex
	container string
	basePath  string
	fs        ports.FileSystem
	clock     ports.Clock
	recorders map[string]*Recorder
	paths     []string
	seq       int
}

// NewManager creates a manager writing under basePath. An empty basePath
// disables recording.
func NewManager(container, basePath string, fs ports.FileSystem, clock ports.Clock) *Manager {
	return &Manager{
		container: container,
		basePath:  basePath,
		fs:        fs,
		clock:     clock,
		recorders: make(map[string]*Recorder),
	}
}

// Enabled reports whether transcripts are written.
func (m *Manager) Enabled() bool {
	return m != nil && m.basePath != ""
}

// Start opens a new transcript for shell, closing the previous one. It
// returns nil when recording is disabled or the file cannot be created;
// recording failures never break a shell.
func (m *Manager) Start(shell string) *Recorder {
	if !m.Enabled() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.recorders[shell]; ok {
		existing.Close()
		delete(m.recorders, shell)
	}

	m.seq++
	path := filepath.Join(m.basePath, fileName(m.container, shell, m.clock.Now(), m.seq))
	r, err := NewRecorder(path, m.container+" "+shell, m.fs, m.clock)
	if err != nil {
		slog.Warn("transcript recording disabled for shell",
			slog.String("shell", shell),
			slog.String("error", err.Error()),
		)
		return nil
	}

	m.recorders[shell] = r
	m.paths = append(m.paths, path)
	return r
}

// Stop closes the transcript of shell.
func (m *Manager) Stop(shell string) error {
	if !m.Enabled() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.recorders[shell]; ok {
		delete(m.recorders, shell)
		return r.Close()
	}
	return nil
}

// Paths returns every transcript written so far.
func (m *Manager) Paths() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// CloseAll closes all open transcripts.
func (m *Manager) CloseAll() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for shell, r := range m.recorders {
		r.Close()
		delete(m.recorders, shell)
	}
}
