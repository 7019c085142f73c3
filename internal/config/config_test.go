package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acolita/openswitch-harness/internal/testing/fakes/fakefs"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Docker.Binary != "docker" {
		t.Errorf("Docker.Binary = %q, want docker", cfg.Docker.Binary)
	}
	if cfg.Switch.SharedDirMount != "/tmp" {
		t.Errorf("Switch.SharedDirMount = %q, want /tmp", cfg.Switch.SharedDirMount)
	}
	if cfg.Switch.Netns != "swns" {
		t.Errorf("Switch.Netns = %q, want swns", cfg.Switch.Netns)
	}
	if cfg.Shell.CommandTimeout != 30*time.Second {
		t.Errorf("Shell.CommandTimeout = %v, want 30s", cfg.Shell.CommandTimeout)
	}
	if cfg.Shell.VsctlTimeout != 60*time.Second {
		t.Errorf("Shell.VsctlTimeout = %v, want 60s", cfg.Shell.VsctlTimeout)
	}
	if cfg.Shell.CrashMarker != "Segmentation fault" {
		t.Errorf("Shell.CrashMarker = %q", cfg.Shell.CrashMarker)
	}
	if cfg.Shell.TranscriptDir != "" {
		t.Error("transcripts should be disabled by default")
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Sanitize {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Addr != "" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultConfigPath(); got != "/xdg/opsharness/config.yaml" {
		t.Errorf("DefaultConfigPath() = %q", got)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Shell.CommandTimeout != 30*time.Second {
		t.Errorf("CommandTimeout = %v, want default", cfg.Shell.CommandTimeout)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load(missing) error: %v", err)
	}
	if cfg.Docker.Binary != "docker" {
		t.Errorf("Docker.Binary = %q", cfg.Docker.Binary)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	fs := fakefs.New()
	fs.AddFile("/etc/opsharness.yaml", []byte(":::invalid:::yaml{{{"))

	if _, err := Load("/etc/opsharness.yaml", fs); err == nil {
		t.Fatal("Load(invalid YAML) expected error, got nil")
	}
}

func TestLoadValidConfig(t *testing.T) {
	fs := fakefs.New()
	fs.AddFile("/etc/opsharness.yaml", []byte(`
docker:
  host: tcp://10.0.0.5:2375
  binary: podman
switch:
  shared_dir: /var/run/topology
  shared_dir_mount: /shared
  netns: front
  setup_script: /opt/setup.py
shell:
  command_timeout: 45s
  negotiation_timeout: 10s
  vsctl_timeout: 2m
  crash_marker: "Aborted"
  valgrind_crash_marker: "Invalid read"
  transcript_dir: /var/log/opsharness
logging:
  level: debug
  format: json
  sanitize: false
metrics:
  addr: ":9110"
  path: /m
`))

	cfg, err := Load("/etc/opsharness.yaml", fs)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Docker.Host != "tcp://10.0.0.5:2375" || cfg.Docker.Binary != "podman" {
		t.Errorf("Docker = %+v", cfg.Docker)
	}
	if cfg.Switch.SharedDir != "/var/run/topology" || cfg.Switch.SharedDirMount != "/shared" ||
		cfg.Switch.Netns != "front" || cfg.Switch.SetupScript != "/opt/setup.py" {
		t.Errorf("Switch = %+v", cfg.Switch)
	}
	if cfg.Shell.CommandTimeout != 45*time.Second || cfg.Shell.NegotiationTimeout != 10*time.Second ||
		cfg.Shell.VsctlTimeout != 2*time.Minute {
		t.Errorf("Shell timeouts = %+v", cfg.Shell)
	}
	if cfg.Shell.CrashMarker != "Aborted" || cfg.Shell.ValgrindCrashMarker != "Invalid read" {
		t.Errorf("Shell markers = %+v", cfg.Shell)
	}
	if cfg.Shell.ValgrindCommand == "" {
		t.Error("unset valgrind_command should keep its default")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.Sanitize {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Addr != ":9110" || cfg.Metrics.Path != "/m" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	fs := fakefs.New()
	fs.AddFile("/etc/opsharness.yaml", []byte("shell:\n  command_timeout: 45s\nlogging:\n  level: debug\n"))

	t.Setenv("OPSHARNESS_SHELL_COMMAND_TIMEOUT", "90s")
	t.Setenv("OPSHARNESS_SWITCH_SHARED_DIR_MOUNT", "/mnt/shared")
	t.Setenv("OPSHARNESS_DOCKER_HOST", "unix:///run/podman.sock")
	t.Setenv("OPSHARNESS_LOGGING_SANITIZE", "false")

	cfg, err := Load("/etc/opsharness.yaml", fs)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Shell.CommandTimeout != 90*time.Second {
		t.Errorf("CommandTimeout = %v, environment should win over the file", cfg.Shell.CommandTimeout)
	}
	if cfg.Switch.SharedDirMount != "/mnt/shared" {
		t.Errorf("SharedDirMount = %q", cfg.Switch.SharedDirMount)
	}
	if cfg.Docker.Host != "unix:///run/podman.sock" {
		t.Errorf("Docker.Host = %q", cfg.Docker.Host)
	}
	if cfg.Logging.Sanitize {
		t.Error("Logging.Sanitize should be overridden to false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, unset variables must keep the file value", cfg.Logging.Level)
	}
}

func TestLoadEnvironmentIgnoresUnprefixed(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("LEVEL", "error")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Metrics.Path != "/metrics" || cfg.Logging.Level != "info" {
		t.Errorf("unprefixed variables leaked in: %+v %+v", cfg.Metrics, cfg.Logging)
	}
}

func TestLoadEnvironmentInvalidDuration(t *testing.T) {
	t.Setenv("OPSHARNESS_SHELL_NEGOTIATION_TIMEOUT", "soon")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() expected error for an invalid duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "unknown log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
		{"negative timeout", func(c *Config) { c.Shell.VsctlTimeout = -time.Second }, "shell.vsctl_timeout"},
		{"metrics path", func(c *Config) { c.Metrics.Addr = ":9110"; c.Metrics.Path = "metrics" }, "metrics.path"},
		{"metrics disabled", func(c *Config) { c.Metrics.Path = "metrics" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNodeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Switch.SharedDir = "/var/run/topology/sw1"
	cfg.Switch.Netns = "front"
	cfg.Shell.VsctlTimeout = 2 * time.Minute
	cfg.Shell.ValgrindCrashMarker = "Invalid read"

	nc := cfg.NodeConfig()
	if nc.SharedDir != "/var/run/topology/sw1" || nc.SharedDirMount != "/tmp" || nc.Netns != "front" {
		t.Errorf("NodeConfig() = %+v", nc)
	}
	if nc.Shells.Netns != "front" {
		t.Errorf("Shells.Netns = %q, want front", nc.Shells.Netns)
	}
	if nc.Shells.ExtendedTimeout != 2*time.Minute {
		t.Errorf("Shells.ExtendedTimeout = %v", nc.Shells.ExtendedTimeout)
	}
	if nc.Shells.ValgrindCrashMarker != "Invalid read" || nc.Shells.CrashMarker != "Segmentation fault" {
		t.Errorf("crash markers = %q / %q", nc.Shells.CrashMarker, nc.Shells.ValgrindCrashMarker)
	}

	lo := cfg.LoggingOptions()
	if lo.Level != "info" || !lo.Sanitize {
		t.Errorf("LoggingOptions() = %+v", lo)
	}
}

// --- Watcher tests ---

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "logging:\n  level: warn\n")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Close()

	if got := w.Config().Logging.Level; got != "warn" {
		t.Errorf("Config().Logging.Level = %q, want warn", got)
	}
}

func TestNewWatcherMissingDir(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/config.yaml", nil); err == nil {
		t.Fatal("NewWatcher(missing dir) expected error, got nil")
	}
}

func TestNewWatcherInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "logging:\n  level: loud\n")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("NewWatcher(invalid) expected error, got nil")
	}
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "logging:\n  level: info\n")

	var mu sync.Mutex
	var changed *Config

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		changed = cfg
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Close()

	writeConfigFile(t, path, "logging:\n  level: debug\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Config().Logging.Level == "debug" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if got := w.Config().Logging.Level; got != "debug" {
		t.Errorf("Config().Logging.Level = %q after reload, want debug", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if changed == nil || changed.Logging.Level != "debug" {
		t.Errorf("onChange received %+v", changed)
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "logging:\n  level: warn\n")

	var mu sync.Mutex
	var levels []string

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		levels = append(levels, cfg.Logging.Level)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Close()

	writeConfigFile(t, path, "logging:\n  level: loud\n")
	time.Sleep(500 * time.Millisecond)

	if got := w.Config().Logging.Level; got == "loud" {
		t.Error("invalid config should have been rejected")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, l := range levels {
		if l == "loud" {
			t.Error("onChange received an invalid config")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "logging:\n  level: warn\n")

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(path, func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Close()

	writeConfigFile(t, filepath.Join(dir, "other.yaml"), "logging:\n  level: debug\n")
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("onChange called %d times for an unrelated file", calls)
	}
}

func TestWatcherClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
