package ports

import "context"

// Host runs commands on the execution machine (the host running the
// containers). Used only for postmortem diagnostics.
type Host interface {
	// Run executes command through the host shell and returns its output.
	Run(ctx context.Context, command string) (string, error)

	// OS returns the operating system name, e.g. "Linux".
	OS() string

	// Distribution returns the Linux distribution name, e.g. "Ubuntu".
	// Empty when unknown.
	Distribution() string
}
