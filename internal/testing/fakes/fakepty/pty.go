// Package fakepty provides a scripted terminal for testing shell sessions
// without containers.
//
// The fake behaves like the master side of a pseudo terminal attached to a
// line-oriented program: every complete line written to it is echoed back
// (unless echo has been disabled) and answered according to registered
// rules.
package fakepty

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Rule answers a line written to the terminal.
type Rule struct {
	line        string
	reply       string
	disableEcho bool
	hangUp      bool
}

// DisableEcho makes the rule turn off terminal echo, like "stty -echo".
func (r *Rule) DisableEcho() *Rule {
	r.disableEcho = true
	return r
}

// HangUp makes the rule end the stream after the reply, like a process
// exiting.
func (r *Rule) HangUp() *Rule {
	r.hangUp = true
	return r
}

// PTY is a fake terminal stream. It implements io.ReadWriteCloser.
type PTY struct {
	mu      sync.Mutex
	cond    *sync.Cond
	out     bytes.Buffer
	written bytes.Buffer
	partial string
	lines   []string
	rules   []*Rule
	echo    bool
	hungUp  bool
	closed  bool
}

// New creates a fake terminal with echo enabled.
func New() *PTY {
	p := &PTY{echo: true}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Emit queues output as if the program printed it.
func (p *PTY) Emit(s string) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.WriteString(s)
	p.cond.Broadcast()
	return p
}

// On registers a reply for an exact input line. Later registrations for the
// same line take precedence.
func (p *PTY) On(line, reply string) *Rule {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := &Rule{line: line, reply: reply}
	p.rules = append([]*Rule{r}, p.rules...)
	return r
}

// SetEcho enables or disables echo of written lines.
func (p *PTY) SetEcho(on bool) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.echo = on
	return p
}

// HangUp ends the stream once pending output has been read.
func (p *PTY) HangUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hungUp = true
	p.cond.Broadcast()
}

// Read blocks until output is available, then returns it. It reports
// io.EOF after HangUp or Close once the pending output is drained.
func (p *PTY) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.out.Len() == 0 && !p.hungUp && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return 0, io.EOF
	}
	if p.out.Len() == 0 {
		return 0, io.EOF
	}
	return p.out.Read(b)
}

// Write records input and answers each complete line.
func (p *PTY) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.hungUp {
		return 0, io.ErrClosedPipe
	}

	p.written.Write(b)
	p.partial += string(b)
	for {
		i := strings.IndexByte(p.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(p.partial[:i], "\r")
		p.partial = p.partial[i+1:]
		p.answer(line)
	}
	p.cond.Broadcast()
	return len(b), nil
}

func (p *PTY) answer(line string) {
	p.lines = append(p.lines, line)
	if p.echo {
		p.out.WriteString(line + "\r\n")
	}
	for _, r := range p.rules {
		if r.line != line {
			continue
		}
		p.out.WriteString(r.reply)
		if r.disableEcho {
			p.echo = false
		}
		if r.hangUp {
			p.hungUp = true
		}
		return
	}
}

// Close closes the fake terminal.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

// --- Test inspection methods ---

// Written returns all data that was written to the terminal.
func (p *PTY) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Lines returns every complete line written to the terminal.
func (p *PTY) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// Count returns how many times line was written.
func (p *PTY) Count(line string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.lines {
		if l == line {
			n++
		}
	}
	return n
}

// IsClosed returns true if Close() was called.
func (p *PTY) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
