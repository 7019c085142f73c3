package node

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// containerDiagnostics run inside the container after a failed setup, in
// this order.
var containerDiagnostics = []string{
	"ovs-vsctl list Daemon",
	"coredumpctl gdb",
	"ps -aef",
	"systemctl status",
	"systemctl --state=failed --all",
	"ovsdb-client dump",
	"systemctl status switchd -n 10000 -l",
	"cat /var/log/messages",
}

// hostDiagnostics run on the execution machine. The docker daemon log
// command is appended per distribution.
var hostDiagnostics = []string{
	"tail -n 2000 /var/log/syslog",
	"docker ps -a",
}

// dockerLogCommands print the docker daemon log per distribution, keyed by
// the os-release NAME.
var dockerLogCommands = map[string]string{
	"Ubuntu":           "cat /var/log/upstart/docker.log",
	"CentOS Linux":     "grep docker /var/log/daemon.log",
	"debian":           "journalctl -u docker.service",
	"Debian GNU/Linux": "journalctl -u docker.service",
}

const dockerLogLines = 100

// Log files written by diagnostics.
const (
	containerLogFile = "container_logs"
	hostLogFile      = "execution_machine_logs"
)

// artifactPattern selects the files of the shared directory worth keeping
// after a run.
const artifactPattern = "**/{*_logs,*.log,*.json,core*}"

// Diagnostics describes one collection run.
type Diagnostics struct {
	RunID    string
	Failures int
}

type runFunc func(ctx context.Context, command string) (string, error)

// logCommands appends the output of every command to location, each one
// preceded by a header and followed by a blank line. Failures are logged
// and skipped.
func logCommands(ctx context.Context, commands []string, location string, run runFunc) int {
	failures := 0
	redirect := fmt.Sprintf(" >> %s 2>&1", location)
	for _, command := range commands {
		steps := []string{
			fmt.Sprintf(`echo "Output of: %s"%s`, command, redirect),
			command + redirect,
			`echo ""` + redirect,
		}
		for _, step := range steps {
			if _, err := run(ctx, step); err != nil {
				failures++
				slog.Warn("diagnostic command failed",
					slog.String("command", command),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return failures
}

// collectDiagnostics gathers container and host logs into the shared
// directory. It never fails.
func (s *Switch) collectDiagnostics(ctx context.Context) *Diagnostics {
	d := &Diagnostics{RunID: s.newID()}
	logger := slog.With(
		slog.String("container", s.container.ID()),
		slog.String("run_id", d.RunID),
	)
	logger.Info("collecting diagnostics", slog.String("shared_dir", s.cfg.SharedDir))

	d.Failures += logCommands(ctx, containerDiagnostics,
		path.Join(s.cfg.SharedDirMount, containerLogFile), s.container.ExecOnce)

	if osName := s.host.OS(); osName != "Linux" {
		logger.Warn("skipping host diagnostics", slog.String("os", osName))
		s.metrics.ObserveDiagnostics(s.container.ID(), d.Failures)
		return d
	}

	commands := append([]string(nil), hostDiagnostics...)
	distro := s.host.Distribution()
	if logCmd, ok := dockerLogCommands[distro]; ok {
		commands = append(commands, fmt.Sprintf("%s | tail -n %d", logCmd, dockerLogLines))
	} else {
		logger.Warn("unknown Linux distribution, skipping docker log", slog.String("distribution", distro))
	}

	d.Failures += logCommands(ctx, commands,
		filepath.Join(s.cfg.SharedDir, hostLogFile), s.host.Run)

	s.metrics.ObserveDiagnostics(s.container.ID(), d.Failures)
	return d
}

// artifacts lists the diagnostic files present in the shared directory.
func (s *Switch) artifacts() []string {
	matches, err := doublestar.Glob(s.fs.DirFS(s.cfg.SharedDir), artifactPattern)
	if err != nil {
		slog.Warn("listing artifacts failed",
			slog.String("shared_dir", s.cfg.SharedDir),
			slog.String("error", err.Error()),
		)
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(s.cfg.SharedDir, filepath.FromSlash(m)))
	}
	return out
}
