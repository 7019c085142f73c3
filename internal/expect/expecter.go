// Package expect provides a line-oriented send/expect channel over an
// interactive terminal stream.
//
// An Expecter accumulates everything the process prints and lets callers
// wait until the accumulated text matches one of several regular
// expressions. Only one Expect may be outstanding at a time.
package expect

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/acolita/openswitch-harness/internal/adapters/realclock"
	"github.com/acolita/openswitch-harness/internal/ports"
)

var (
	// ErrTimeout is returned when no pattern matched before the deadline.
	ErrTimeout = errors.New("expect: timeout")

	// ErrEOF is returned when the stream ended without a match and EOF was
	// not one of the expected patterns.
	ErrEOF = errors.New("expect: end of stream")

	// ErrNoPatterns is returned when Expect is called with an empty list.
	ErrNoPatterns = errors.New("expect: no patterns")
)

// EOF is a pattern placeholder. When it appears in the list passed to
// Expect, end of stream counts as a match and its index is returned.
// It never matches text.
var EOF = regexp.MustCompile(`[^\s\S]`)

// Observer receives a copy of the traffic on the channel.
type Observer interface {
	RecordInput(data string) error
	RecordOutput(data string) error
}

// Option configures an Expecter.
type Option func(*Expecter)

// WithClock sets the clock used for timeouts.
func WithClock(c ports.Clock) Option {
	return func(e *Expecter) {
		e.clock = c
	}
}

// WithNewline sets the line terminator appended by SendLine (default "\n").
func WithNewline(nl string) Option {
	return func(e *Expecter) {
		e.newline = nl
	}
}

// WithObserver tees input and output to o.
func WithObserver(o Observer) Option {
	return func(e *Expecter) {
		e.observer = o
	}
}

// WithTranscript copies every byte received from the stream to w.
func WithTranscript(w io.Writer) Option {
	return func(e *Expecter) {
		e.transcript = w
	}
}

// Expecter is a send/expect channel over an interactive stream.
type Expecter struct {
	rw         io.ReadWriteCloser
	clock      ports.Clock
	newline    string
	observer   Observer
	transcript io.Writer

	// mu serializes Send and Expect calls.
	mu     sync.Mutex
	buffer string
	before string
	after  string
	eof    bool

	chunks    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New starts reading from rw in the background and returns an Expecter.
func New(rw io.ReadWriteCloser, opts ...Option) *Expecter {
	e := &Expecter{
		rw:      rw,
		clock:   realclock.New(),
		newline: "\n",
		chunks:  make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	go e.readLoop()
	return e
}

func (e *Expecter) readLoop() {
	defer close(e.chunks)

	buf := make([]byte, 4096)
	for {
		n, err := e.rw.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case e.chunks <- chunk:
			case <-e.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Send writes text without a line terminator.
func (e *Expecter) Send(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write(text)
}

// SendLine writes text followed by the line terminator.
func (e *Expecter) SendLine(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write(text + e.newline)
}

func (e *Expecter) write(data string) error {
	if _, err := io.WriteString(e.rw, data); err != nil {
		return fmt.Errorf("expect: write: %w", err)
	}
	if e.observer != nil {
		_ = e.observer.RecordInput(data)
	}
	return nil
}

// Expect blocks until the unconsumed output matches one of patterns, the
// stream ends, or timeout elapses. A timeout of zero or less waits
// indefinitely.
//
// When several patterns match, the one whose match starts earliest in the
// buffer wins; ties go to the pattern listed first. On success the text
// before the match is available through Before and the matched text through
// After, and both are consumed from the buffer.
func (e *Expecter) Expect(patterns []*regexp.Regexp, timeout time.Duration) (int, error) {
	if len(patterns) == 0 {
		return -1, ErrNoPatterns
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = e.clock.After(timeout)
	}

	for {
		if idx := e.match(patterns); idx >= 0 {
			return idx, nil
		}
		if e.eof {
			return e.matchEOF(patterns)
		}

		select {
		case chunk, ok := <-e.chunks:
			if !ok {
				e.eof = true
				continue
			}
			e.buffer += string(chunk)
			if e.transcript != nil {
				_, _ = e.transcript.Write(chunk)
			}
			if e.observer != nil {
				_ = e.observer.RecordOutput(string(chunk))
			}
		case <-deadline:
			e.before = e.buffer
			e.after = ""
			return -1, ErrTimeout
		}
	}
}

// match scans the buffer and consumes the earliest match.
func (e *Expecter) match(patterns []*regexp.Regexp) int {
	best := -1
	var bestLoc []int
	for i, re := range patterns {
		if re == EOF {
			continue
		}
		loc := re.FindStringIndex(e.buffer)
		if loc == nil {
			continue
		}
		if best < 0 || loc[0] < bestLoc[0] {
			best, bestLoc = i, loc
		}
	}
	if best < 0 {
		return -1
	}

	e.before = e.buffer[:bestLoc[0]]
	e.after = e.buffer[bestLoc[0]:bestLoc[1]]
	e.buffer = e.buffer[bestLoc[1]:]
	return best
}

func (e *Expecter) matchEOF(patterns []*regexp.Regexp) (int, error) {
	e.before = e.buffer
	e.after = ""
	e.buffer = ""
	for i, re := range patterns {
		if re == EOF {
			return i, nil
		}
	}
	return -1, ErrEOF
}

// Before returns the text that preceded the last match, or everything
// buffered when the last Expect failed.
func (e *Expecter) Before() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.before
}

// After returns the text that satisfied the last Expect.
func (e *Expecter) After() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.after
}

// Buffer returns output received but not yet consumed by a match.
func (e *Expecter) Buffer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer
}

// Close stops the reader and closes the underlying stream.
func (e *Expecter) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.closeErr = e.rw.Close()
	})
	return e.closeErr
}

// Closed reports whether Close has been called.
func (e *Expecter) Closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
