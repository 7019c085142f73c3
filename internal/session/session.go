// Package session drives interactive shells inside an OpenSwitch container.
//
// A Session owns one terminal connection to one shell identity. Connecting
// forces a unique bash prompt and, for configuration shells, negotiates a
// unique vtysh prompt; every command then waits for that prompt and is
// checked for a crashed vtysh.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/acolita/openswitch-harness/internal/adapters/realclock"
	"github.com/acolita/openswitch-harness/internal/expect"
	"github.com/acolita/openswitch-harness/internal/ports"
	"github.com/acolita/openswitch-harness/internal/prompt"
	"github.com/acolita/openswitch-harness/internal/recording"
)

// State represents the connection state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
)

// Metrics receives session events.
type Metrics interface {
	ObserveNegotiation(shell string, customPrompt bool, err error)
	ObserveCommand(shell string, d time.Duration, err error)
	ObserveCrash(shell string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveNegotiation(string, bool, error)      {}
func (nopMetrics) ObserveCommand(string, time.Duration, error) {}
func (nopMetrics) ObserveCrash(string)                         {}

// termCodes matches ANSI control sequences.
var termCodes = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for timeouts.
func WithClock(c ports.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithRecording writes a transcript of every connection through m.
func WithRecording(m *recording.Manager) Option {
	return func(s *Session) {
		s.recording = m
	}
}

// WithMetrics reports session events to m.
func WithMetrics(m Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Session is one shell of a container.
type Session struct {
	container ports.Container
	profile   Profile
	detector  *prompt.CrashDetector
	clock     ports.Clock
	recording *recording.Manager
	metrics   Metrics

	// mu serializes commands; one command is outstanding at a time.
	mu           sync.Mutex
	exp          *expect.Expecter
	state        State
	prompt       *regexp.Regexp
	filterEcho   bool
	customPrompt bool
	lastCommand  string
	lastResponse string
	lastMatch    string
}

// New creates a disconnected session. The container is shared, not owned.
func New(container ports.Container, profile Profile, opts ...Option) *Session {
	profile = profile.withDefaults()
	s := &Session{
		container: container,
		profile:   profile,
		clock:     realclock.New(),
		metrics:   nopMetrics{},
		state:     StateDisconnected,
	}
	if profile.CrashMarker != "" {
		s.detector = prompt.NewCrashDetector(profile.CrashMarker)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the shell identity.
func (s *Session) Name() string {
	return s.profile.Name
}

// Profile returns the shell profile.
func (s *Session) Profile() Profile {
	return s.profile
}

// State returns the connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CustomPrompt reports whether the last connection forced the vtysh prompt.
func (s *Session) CustomPrompt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customPrompt
}

// FilterEcho reports whether command echo is stripped from responses.
func (s *Session) FilterEcho() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterEcho
}

// Prompt returns the pattern that ends every command, or nil before the
// first connection.
func (s *Session) Prompt() *regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// LastCommand returns the last line sent, prefix included.
func (s *Session) LastCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommand
}

// Connect opens the shell and negotiates its prompt. It does nothing when
// the session is already connected. On failure the transport is closed and
// the session stays disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.state == StateReady {
		return nil
	}

	name := s.profile.Name
	s.state = StateConnecting
	s.prompt = nil
	s.filterEcho = false
	s.customPrompt = false

	rw, err := s.container.SpawnInteractive(ctx, s.profile.Command)
	if err != nil {
		s.state = StateDisconnected
		return fmt.Errorf("connect %s: %w", name, err)
	}

	opts := []expect.Option{expect.WithClock(s.clock)}
	if r := s.recording.Start(name); r != nil {
		opts = append(opts, expect.WithObserver(r))
	}
	s.exp = expect.New(rw, opts...)

	if err := s.setupLocked(ctx); err != nil {
		s.dropLocked()
		err = connectError(name, err)
		s.metrics.ObserveNegotiation(name, false, err)
		slog.Error("shell connection failed",
			slog.String("shell", name),
			slog.String("container", s.container.ID()),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.state = StateReady
	s.metrics.ObserveNegotiation(name, s.customPrompt, nil)
	slog.Info("shell connected",
		slog.String("shell", name),
		slog.String("container", s.container.ID()),
		slog.Bool("custom_prompt", s.customPrompt),
		slog.Bool("filter_echo", s.filterEcho),
	)
	return nil
}

func (s *Session) setupLocked(ctx context.Context) error {
	p := s.profile
	if err := bootstrap(ctx, s.exp, p); err != nil {
		return err
	}

	if !p.Vtysh {
		s.filterEcho = p.FilterEcho
		s.prompt = prompt.BashForcedPrompt
		return settle(s.exp, s.prompt, p.NegotiationTimeout)
	}

	custom, err := negotiate(ctx, s.exp, p)
	if err != nil {
		return err
	}
	if custom {
		s.customPrompt = true
		s.prompt = prompt.Join(prompt.BashForcedPrompt, prompt.VtyshForcedPrompt)
	} else {
		s.filterEcho = true
		s.prompt = prompt.Join(prompt.BashForcedPrompt, prompt.VtyshStandardPrompt)
	}
	return settle(s.exp, s.prompt, p.NegotiationTimeout)
}

func connectError(shell string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("connect %s: %w", shell, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrNegotiationTimeout, shell, err)
}

// CommandOption configures a single SendCommand call.
type CommandOption func(*commandOptions)

type commandOptions struct {
	matches []*regexp.Regexp
	timeout time.Duration
}

// WithMatches adds patterns accepted in place of the session prompt. The
// index returned for matches[i] is i+1. expect.EOF accepts the end of the
// shell.
func WithMatches(patterns ...*regexp.Regexp) CommandOption {
	return func(o *commandOptions) {
		o.matches = append(o.matches, patterns...)
	}
}

// WithTimeout overrides the profile timeout for one command. Values <= 0
// keep the profile timeout.
func WithTimeout(d time.Duration) CommandOption {
	return func(o *commandOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// SendCommand sends the profile prefix followed by text and waits for the
// session prompt or one of the extra matches. It connects first when the
// session is disconnected. It returns 0 for the session prompt and i+1 for
// the i-th extra match.
//
// A crashed configuration shell yields *FatalCrashError and disconnects the
// session. A command that reaches no expected pattern yields
// *UnknownPromptStateError.
func (s *Session) SendCommand(ctx context.Context, text string, opts ...CommandOption) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return -1, err
	}

	o := commandOptions{timeout: s.profile.Timeout}
	for _, opt := range opts {
		opt(&o)
	}
	return s.sendLocked(s.profile.Prefix+text, o)
}

func (s *Session) sendLocked(line string, o commandOptions) (int, error) {
	name := s.profile.Name
	start := s.clock.Now()

	s.lastCommand = line
	s.lastResponse = ""
	s.lastMatch = ""

	slog.Debug("sending command",
		slog.String("shell", name),
		slog.String("command", line),
	)

	if err := s.exp.SendLine(line); err != nil {
		s.dropLocked()
		err = &UnknownPromptStateError{Shell: name, Command: line, Err: err}
		s.metrics.ObserveCommand(name, s.clock.Now().Sub(start), err)
		return -1, err
	}

	patterns := append([]*regexp.Regexp{s.prompt}, o.matches...)
	idx, err := s.exp.Expect(patterns, o.timeout)
	s.lastResponse = s.exp.Before()
	s.lastMatch = s.exp.After()

	if err != nil {
		if errors.Is(err, expect.ErrEOF) {
			s.dropLocked()
		}
		err = &UnknownPromptStateError{Shell: name, Command: line, Err: err}
		s.metrics.ObserveCommand(name, s.clock.Now().Sub(start), err)
		return -1, err
	}

	if s.detector.Detect(s.responseLocked(), s.lastMatch) {
		s.dropLocked()
		s.metrics.ObserveCrash(name)
		err := &FatalCrashError{Shell: name, Command: line}
		s.metrics.ObserveCommand(name, s.clock.Now().Sub(start), err)
		slog.Error("configuration shell crashed",
			slog.String("shell", name),
			slog.String("container", s.container.ID()),
			slog.String("command", line),
		)
		return -1, err
	}

	if patterns[idx] == expect.EOF {
		s.dropLocked()
	}
	s.metrics.ObserveCommand(name, s.clock.Now().Sub(start), nil)
	return idx, nil
}

// Response returns the output of the last command. Carriage returns and
// terminal control codes are removed, surrounding line breaks trimmed, and
// the command echo stripped when echo filtering is on.
func (s *Session) Response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseLocked()
}

func (s *Session) responseLocked() string {
	text := strings.ReplaceAll(s.lastResponse, "\r", "")
	text = termCodes.ReplaceAllString(text, "")
	text = strings.Trim(text, "\n")

	if s.filterEcho {
		if cmd := strings.TrimSpace(s.lastCommand); cmd != "" && strings.HasPrefix(text, cmd) {
			text = strings.Trim(text[len(cmd):], "\n")
		}
	}
	return text
}

// RunScript runs a scripted dialog on the shell, connecting first when
// needed. Crash detection does not apply.
func (s *Session) RunScript(ctx context.Context, script *expect.Script) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return nil, err
	}
	matched, err := expect.RunScript(ctx, s.exp, script)
	s.lastResponse = s.exp.Before()
	s.lastMatch = s.exp.After()
	if errors.Is(err, expect.ErrEOF) {
		s.dropLocked()
	}
	return matched, err
}

// exitMatches ends an exit command: the shell closed, or control is back
// in bash.
var exitMatches = []*regexp.Regexp{expect.EOF, prompt.BashForcedPrompt}

// Exit leaves the shell cleanly and closes the connection. Configuration
// shells receive "end" first. Failures are logged, never returned.
func (s *Session) Exit(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.dropLocked()

	if s.state != StateReady || ctx.Err() != nil {
		return
	}

	o := commandOptions{timeout: s.profile.Timeout}
	if s.profile.Vtysh {
		if _, err := s.sendLocked("end", o); err != nil {
			s.warnExit(err)
			return
		}
	}
	if s.state != StateReady {
		return
	}

	o.matches = exitMatches
	if _, err := s.sendLocked("exit", o); err != nil {
		s.warnExit(err)
	}
}

func (s *Session) warnExit(err error) {
	slog.Warn("exiting the shell failed",
		slog.String("shell", s.profile.Name),
		slog.String("container", s.container.ID()),
		slog.String("error", err.Error()),
	)
}

// Close drops the connection without the exit sequence.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}

func (s *Session) dropLocked() {
	if s.exp != nil {
		_ = s.exp.Close()
		s.exp = nil
	}
	_ = s.recording.Stop(s.profile.Name)
	s.state = StateDisconnected
}
