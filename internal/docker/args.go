// Package docker reaches OpenSwitch containers through the Docker engine:
// one-shot commands through the engine API and interactive shells through
// "docker exec -it" under a local PTY.
package docker

import (
	"fmt"
	"sort"
	"strings"
)

// ExecOptions configures docker exec argv generation.
type ExecOptions struct {
	Binary      string            // docker CLI binary (default: docker)
	Container   string            // Container name or ID
	Command     string            // Command to execute
	User        string            // User to run as (optional)
	WorkDir     string            // Working directory (optional)
	Env         map[string]string // Environment variables (optional)
	Interactive bool              // Allocate TTY (-it)
}

// BuildExecArgs generates the argv of a docker exec invocation. Commands
// containing spaces are run through "sh -c".
func BuildExecArgs(opts ExecOptions) []string {
	binary := opts.Binary
	if binary == "" {
		binary = "docker"
	}
	args := []string{binary, "exec"}

	if opts.Interactive {
		args = append(args, "-it")
	}

	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	keys := make([]string, 0, len(opts.Env))
	for key := range opts.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", key, opts.Env[key]))
	}

	args = append(args, opts.Container)
	return append(args, ShellArgv(opts.Command)...)
}

// ShellArgv turns a command line into the argv run inside the container.
func ShellArgv(command string) []string {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	if strings.ContainsAny(command, " \t") {
		return []string{"sh", "-c", command}
	}
	return []string{command}
}
