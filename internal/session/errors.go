package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNegotiationTimeout means the shell never reached an expected
	// prompt while connecting. It is not retried.
	ErrNegotiationTimeout = errors.New("prompt negotiation timed out")

	// ErrUnknownShell is returned for a shell name that was never
	// registered.
	ErrUnknownShell = errors.New("unknown shell")

	// ErrDuplicateShell is returned when a shell name is registered twice.
	ErrDuplicateShell = errors.New("shell already registered")
)

// FatalCrashError reports a configuration shell that died while running
// Command. The session must reconnect before further use.
type FatalCrashError struct {
	Shell   string
	Command string
}

func (e *FatalCrashError) Error() string {
	return fmt.Sprintf("segmentation fault received when executing %q on %s", e.Command, e.Shell)
}

// UnknownPromptStateError reports a command whose output never reached an
// expected prompt. The shell may or may not still be alive.
type UnknownPromptStateError struct {
	Shell   string
	Command string
	Err     error
}

func (e *UnknownPromptStateError) Error() string {
	return fmt.Sprintf("unknown prompt state after %q on %s: %v", e.Command, e.Shell, e.Err)
}

func (e *UnknownPromptStateError) Unwrap() error {
	return e.Err
}
