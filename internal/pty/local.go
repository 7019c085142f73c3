// Package pty spawns processes attached to a local pseudo-terminal.
//
// Interactive container shells are reached by running the container
// runtime's exec command (for example "docker exec -it <id> bash") under a
// PTY, so the shell inside the container sees a real terminal and honors
// terminal settings such as "stty -echo".
package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// LocalPTY is a process running under a local pseudo-terminal.
type LocalPTY struct {
	cmd    *exec.Cmd
	pty    *os.File
	argv   []string
	mu     sync.Mutex
	closed bool
}

// PTYOptions configures PTY allocation.
type PTYOptions struct {
	Argv []string // Command and arguments to run (required)
	Term string   // Terminal type (default: dumb)
	Rows uint16   // Terminal rows (default: 24)
	Cols uint16   // Terminal columns (default: 200)
	Dir  string   // Working directory of the spawned process
	Env  []string // Additional environment variables
}

// DefaultOptions returns default PTY options for argv.
// TERM=dumb keeps ANSI escape sequences out of the transcript, and the wide
// window keeps long forced prompts from wrapping.
func DefaultOptions(argv ...string) PTYOptions {
	return PTYOptions{
		Argv: argv,
		Term: "dumb",
		Rows: 24,
		Cols: 200,
		Env:  []string{"NO_COLOR=1"},
	}
}

// NewLocalPTY starts opts.Argv under a new PTY.
func NewLocalPTY(opts PTYOptions) (*LocalPTY, error) {
	if len(opts.Argv) == 0 {
		return nil, errors.New("start pty: empty command")
	}
	if opts.Term == "" {
		opts.Term = "dumb"
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 200
	}

	cmd := exec.Command(opts.Argv[0], opts.Argv[1:]...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Env = append(os.Environ(), fmt.Sprintf("TERM=%s", opts.Term))
	cmd.Env = append(cmd.Env, opts.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: opts.Rows,
		Cols: opts.Cols,
	})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	return &LocalPTY{
		cmd:  cmd,
		pty:  ptmx,
		argv: opts.Argv,
	}, nil
}

// Argv returns the command line the PTY was started with.
func (p *LocalPTY) Argv() []string {
	return p.argv
}

// Read reads from the PTY output.
func (p *LocalPTY) Read(b []byte) (int, error) {
	n, err := p.pty.Read(b)
	// Linux reports EIO on the master once the child side is gone.
	if err != nil && errors.Is(err, syscall.EIO) {
		return n, io.EOF
	}
	return n, err
}

// Write writes to the PTY input.
func (p *LocalPTY) Write(b []byte) (int, error) {
	return p.pty.Write(b)
}

// WriteString writes a string to the PTY.
func (p *LocalPTY) WriteString(s string) (int, error) {
	return p.pty.WriteString(s)
}

// Resize resizes the PTY window.
func (p *LocalPTY) Resize(rows, cols uint16) error {
	return pty.Setsize(p.pty, &pty.Winsize{
		Rows: rows,
		Cols: cols,
	})
}

// Signal sends a signal to the spawned process.
func (p *LocalPTY) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	return p.cmd.Process.Signal(sig)
}

// Interrupt sends SIGINT to the spawned process.
func (p *LocalPTY) Interrupt() error {
	return p.Signal(syscall.SIGINT)
}

// Wait waits for the spawned process to exit.
func (p *LocalPTY) Wait() error {
	return p.cmd.Wait()
}

// Close closes the PTY and kills the process. Calling Close more than once
// is a no-op.
func (p *LocalPTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.pty.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pty: %w", err))
	}
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill process: %w", err))
		}
		// Reap the child; its exit status is irrelevant after a kill.
		go p.cmd.Wait() //nolint:errcheck
	}

	return errors.Join(errs...)
}

// File returns the underlying file of the PTY.
func (p *LocalPTY) File() *os.File {
	return p.pty
}
