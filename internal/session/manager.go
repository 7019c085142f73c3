package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/acolita/openswitch-harness/internal/ports"
)

// Manager holds the named shells of one container. Each name maps to a
// single session with its own connection.
type Manager struct {
	container ports.Container
	opts      []Option

	mu           sync.RWMutex
	sessions     map[string]*Session
	order        []string
	defaultShell string
}

// NewManager creates an empty registry for container. opts apply to every
// registered session.
func NewManager(container ports.Container, opts ...Option) *Manager {
	return &Manager{
		container: container,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

// Register adds a shell. The first registered shell becomes the default.
func (m *Manager) Register(p Profile) (*Session, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("register shell: empty name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[p.Name]; ok {
		return nil, fmt.Errorf("register shell %s: %w", p.Name, ErrDuplicateShell)
	}

	sess := New(m.container, p, m.opts...)
	m.sessions[p.Name] = sess
	m.order = append(m.order, p.Name)
	if m.defaultShell == "" {
		m.defaultShell = p.Name
	}
	return sess, nil
}

// Get returns the shell registered under name.
func (m *Manager) Get(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownShell, name)
	}
	return sess, nil
}

// SetDefault makes name the default shell.
func (m *Manager) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownShell, name)
	}
	m.defaultShell = name
	return nil
}

// Default returns the default shell.
func (m *Manager) Default() (*Session, error) {
	m.mu.RLock()
	name := m.defaultShell
	m.mu.RUnlock()

	if name == "" {
		return nil, fmt.Errorf("%w: no shells registered", ErrUnknownShell)
	}
	return m.Get(name)
}

// Sessions returns the shells in registration order.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.sessions[name])
	}
	return out
}

// ConnectAll connects every shell concurrently and returns the first
// failure.
func (m *Manager) ConnectAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sess := range m.Sessions() {
		g.Go(func() error {
			return sess.Connect(ctx)
		})
	}
	return g.Wait()
}

// ExitAll exits every shell. It never fails.
func (m *Manager) ExitAll(ctx context.Context) {
	for _, sess := range m.Sessions() {
		sess.Exit(ctx)
	}
}

// CloseAll drops every connection without the exit sequence.
func (m *Manager) CloseAll() {
	for _, sess := range m.Sessions() {
		sess.Close()
	}
}
