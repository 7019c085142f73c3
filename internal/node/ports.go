package node

import (
	"errors"
	"fmt"
	"maps"
	"sync"
)

// ErrMissingPort is returned for a port label with no interface.
var ErrMissingPort = errors.New("missing port")

// PortMap maps port labels ("1", "2", ...) to kernel interface names.
type PortMap struct {
	mu    sync.RWMutex
	ports map[string]string
}

// NewPortMap returns a port map holding a copy of initial.
func NewPortMap(initial map[string]string) *PortMap {
	p := &PortMap{ports: make(map[string]string, len(initial))}
	maps.Copy(p.ports, initial)
	return p
}

// Merge adds the entries of m. Labels already present take the value
// from m.
func (p *PortMap) Merge(m map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	maps.Copy(p.ports, m)
}

// Lookup returns the interface of label.
func (p *PortMap) Lookup(label string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	iface, ok := p.ports[label]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingPort, label)
	}
	return iface, nil
}

// Snapshot returns a copy of the mapping.
func (p *PortMap) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.ports)
}

// Len returns the number of mapped ports.
func (p *PortMap) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ports)
}
