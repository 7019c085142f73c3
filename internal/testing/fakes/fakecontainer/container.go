// Package fakecontainer provides a fake ports.Container for tests.
package fakecontainer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/acolita/openswitch-harness/internal/ports"
	"github.com/acolita/openswitch-harness/internal/testing/fakes/fakepty"
)

// ExecResult is the canned answer to a one-shot command.
type ExecResult struct {
	Output string
	Err    error
}

// Container is a fake container. One-shot commands are answered from
// registered results, interactive shells from a terminal factory.
type Container struct {
	mu       sync.Mutex
	id       string
	results  map[string]ExecResult
	prefixes []prefixResult
	execs    []string
	spawns   []string
	terms    []*fakepty.PTY

	// Terminal builds the terminal returned for an interactive command.
	// The default is an idle fakepty.
	Terminal func(command string) (*fakepty.PTY, error)
}

type prefixResult struct {
	prefix string
	result ExecResult
}

var _ ports.Container = (*Container)(nil)

// New creates a fake container.
func New(id string) *Container {
	return &Container{
		id:      id,
		results: make(map[string]ExecResult),
	}
}

// ID returns the container ID.
func (c *Container) ID() string {
	return c.id
}

// OnExec registers the answer for an exact command.
func (c *Container) OnExec(command, output string, err error) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[command] = ExecResult{Output: output, Err: err}
	return c
}

// OnExecPrefix registers the answer for every command starting with prefix.
// Exact registrations take precedence.
func (c *Container) OnExecPrefix(prefix, output string, err error) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes = append(c.prefixes, prefixResult{prefix: prefix, result: ExecResult{Output: output, Err: err}})
	return c
}

// ExecOnce records command and returns the registered result. Unknown
// commands succeed with empty output.
func (c *Container) ExecOnce(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, command)

	if r, ok := c.results[command]; ok {
		return r.Output, r.Err
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(command, p.prefix) {
			return p.result.Output, p.result.Err
		}
	}
	return "", nil
}

// SpawnInteractive returns a terminal built by Terminal.
func (c *Container) SpawnInteractive(ctx context.Context, command string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.spawns = append(c.spawns, command)
	factory := c.Terminal
	c.mu.Unlock()

	var term *fakepty.PTY
	if factory == nil {
		term = fakepty.New()
	} else {
		var err error
		term, err = factory(command)
		if err != nil {
			return nil, err
		}
		if term == nil {
			return nil, errors.New("fakecontainer: nil terminal")
		}
	}

	c.mu.Lock()
	c.terms = append(c.terms, term)
	c.mu.Unlock()
	return term, nil
}

// --- Test inspection methods ---

// Execs returns every one-shot command in call order.
func (c *Container) Execs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execs...)
}

// Spawns returns every interactive command in call order.
func (c *Container) Spawns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.spawns...)
}

// Terminals returns every terminal handed out.
func (c *Container) Terminals() []*fakepty.PTY {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakepty.PTY(nil), c.terms...)
}
