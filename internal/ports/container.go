package ports

import (
	"context"
	"io"
)

// Container is a handle to a running switch container. The handle is shared
// by every shell attached to the container; shells never own it.
type Container interface {
	// ID returns the container identifier.
	ID() string

	// ExecOnce runs a non-interactive command inside the container and
	// returns its combined output. A non-zero exit status is an error.
	ExecOnce(ctx context.Context, command string) (string, error)

	// SpawnInteractive starts command inside the container attached to a
	// pseudo terminal and returns the terminal stream.
	SpawnInteractive(ctx context.Context, command string) (io.ReadWriteCloser, error)
}
