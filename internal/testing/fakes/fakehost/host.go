// Package fakehost provides a fake ports.Host for tests.
package fakehost

import (
	"context"
	"strings"
	"sync"

	"github.com/acolita/openswitch-harness/internal/ports"
)

// Host is a fake execution machine.
type Host struct {
	mu       sync.Mutex
	os       string
	distro   string
	failures map[string]error
	commands []string
}

var _ ports.Host = (*Host)(nil)

// New creates a fake host reporting os and distro.
func New(os, distro string) *Host {
	return &Host{os: os, distro: distro, failures: make(map[string]error)}
}

// FailOn makes every command containing substr fail with err.
func (h *Host) FailOn(substr string, err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[substr] = err
	return h
}

// Run records command and fails when a registered substring matches.
func (h *Host) Run(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, command)
	for substr, err := range h.failures {
		if strings.Contains(command, substr) {
			return "", err
		}
	}
	return "", nil
}

// OS returns the configured operating system.
func (h *Host) OS() string {
	return h.os
}

// Distribution returns the configured distribution.
func (h *Host) Distribution() string {
	return h.distro
}

// Commands returns every command run.
func (h *Host) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.commands...)
}
