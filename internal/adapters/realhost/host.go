// Package realhost provides the Host port backed by the local machine.
package realhost

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/acolita/openswitch-harness/internal/ports"
)

// osReleasePath is where Linux distributions describe themselves.
const osReleasePath = "/etc/os-release"

// Host implements ports.Host using os/exec.
type Host struct {
	shell string
}

// New returns a Host that runs commands through /bin/sh.
func New() *Host {
	return &Host{shell: "/bin/sh"}
}

// Run executes command with "sh -c" and returns combined output.
func (h *Host) Run(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, h.shell, "-c", command).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("host command %q: %w", command, err)
	}
	return string(out), nil
}

// OS returns the capitalized operating system name ("Linux", "Darwin").
func (h *Host) OS() string {
	goos := runtime.GOOS
	if goos == "" {
		return ""
	}
	return strings.ToUpper(goos[:1]) + goos[1:]
}

// Distribution returns the NAME field of /etc/os-release.
func (h *Host) Distribution() string {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return ""
	}
	defer f.Close()
	return parseOSRelease(f)
}

func parseOSRelease(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if name, ok := strings.CutPrefix(line, "NAME="); ok {
			return strings.Trim(name, `"'`)
		}
	}
	return ""
}

// Ensure Host implements ports.Host.
var _ ports.Host = (*Host)(nil)
