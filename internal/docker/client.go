package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/acolita/openswitch-harness/internal/ports"
	localpty "github.com/acolita/openswitch-harness/internal/pty"
)

// execAPI is the part of the engine API used for one-shot commands.
type execAPI interface {
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// Spawner starts argv attached to a terminal.
type Spawner func(argv []string) (io.ReadWriteCloser, error)

// Options configures a Client.
type Options struct {
	// Host overrides DOCKER_HOST.
	Host string
	// Binary is the docker CLI used for interactive shells.
	Binary string
}

// Client talks to the Docker engine.
type Client struct {
	api    execAPI
	closer io.Closer
	binary string
	spawn  Spawner
}

// NewClient connects to the engine configured in the environment and
// verifies it answers.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	clientOpts := []dockerclient.Opt{
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	}
	if opts.Host != "" {
		clientOpts = append(clientOpts, dockerclient.WithHost(opts.Host))
	}

	cli, err := dockerclient.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker ping: %w", err)
	}

	slog.Debug("docker daemon connected", slog.String("host", cli.DaemonHost()))
	return newClient(cli, cli, opts.Binary, spawnPTY), nil
}

func newClient(api execAPI, closer io.Closer, binary string, spawn Spawner) *Client {
	if binary == "" {
		binary = "docker"
	}
	return &Client{api: api, closer: closer, binary: binary, spawn: spawn}
}

func spawnPTY(argv []string) (io.ReadWriteCloser, error) {
	return localpty.NewLocalPTY(localpty.DefaultOptions(argv...))
}

// Container returns a handle on the container with the given name or ID.
func (c *Client) Container(id string) *Container {
	return &Container{id: id, client: c}
}

// Close releases the engine connection.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// ExecError reports a one-shot command that exited with a non-zero status.
type ExecError struct {
	Container string
	Command   string
	ExitCode  int
	Output    string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %q in %s: exit status %d", e.Command, e.Container, e.ExitCode)
}

// Container is a running OpenSwitch container. It implements
// ports.Container.
type Container struct {
	id     string
	client *Client
}

var _ ports.Container = (*Container)(nil)

// ID returns the container name or ID.
func (c *Container) ID() string {
	return c.id
}

// ExecOnce runs command to completion and returns its combined stdout and
// stderr. A non-zero exit status is reported as *ExecError along with the
// output.
func (c *Container) ExecOnce(ctx context.Context, command string) (string, error) {
	api := c.client.api
	execCfg := container.ExecOptions{
		Cmd:          ShellArgv(command),
		AttachStdout: true,
		AttachStderr: true,
	}

	execID, err := api.ContainerExecCreate(ctx, c.id, execCfg)
	if err != nil {
		return "", fmt.Errorf("exec create: %w", err)
	}

	resp, err := api.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("exec attach: %w", err)
	}
	defer resp.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, resp.Reader); err != nil {
		return out.String(), fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := api.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return out.String(), fmt.Errorf("exec inspect: %w", err)
	}
	if inspect.ExitCode != 0 {
		return out.String(), &ExecError{
			Container: c.id,
			Command:   command,
			ExitCode:  inspect.ExitCode,
			Output:    out.String(),
		}
	}
	return out.String(), nil
}

// SpawnInteractive starts command inside the container attached to a
// terminal and returns the terminal stream.
func (c *Container) SpawnInteractive(ctx context.Context, command string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	argv := BuildExecArgs(ExecOptions{
		Binary:      c.client.binary,
		Container:   c.id,
		Command:     command,
		Interactive: true,
	})
	rw, err := c.client.spawn(argv)
	if err != nil {
		return nil, fmt.Errorf("spawn %q in %s: %w", command, c.id, err)
	}
	return rw, nil
}
