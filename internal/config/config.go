// Package config loads the harness configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/acolita/openswitch-harness/internal/logging"
	"github.com/acolita/openswitch-harness/internal/node"
	"github.com/acolita/openswitch-harness/internal/ports"
	"github.com/acolita/openswitch-harness/internal/prompt"
	"github.com/acolita/openswitch-harness/internal/session"
)

// EnvPrefix prefixes every environment override, e.g.
// OPSHARNESS_SHELL_COMMAND_TIMEOUT=45s.
const EnvPrefix = "OPSHARNESS"

// DefaultConfigPath returns $XDG_CONFIG_HOME/opsharness/config.yaml or
// ~/.config/opsharness/config.yaml.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "opsharness", "config.yaml")
}

// Config is the top-level configuration.
type Config struct {
	Docker  DockerConfig  `yaml:"docker" split_words:"true"`
	Switch  SwitchConfig  `yaml:"switch" split_words:"true"`
	Shell   ShellConfig   `yaml:"shell" split_words:"true"`
	Logging LoggingConfig `yaml:"logging" split_words:"true"`
	Metrics MetricsConfig `yaml:"metrics" split_words:"true"`
}

// DockerConfig locates the container engine.
type DockerConfig struct {
	Host   string `yaml:"host" split_words:"true"`   // daemon address, empty uses DOCKER_HOST
	Binary string `yaml:"binary" split_words:"true"` // CLI used for interactive shells
}

// SwitchConfig describes the shared directory and namespaces of a switch.
type SwitchConfig struct {
	SharedDir      string `yaml:"shared_dir" split_words:"true"`
	SharedDirMount string `yaml:"shared_dir_mount" split_words:"true"`
	Netns          string `yaml:"netns" split_words:"true"`
	SetupScript    string `yaml:"setup_script" split_words:"true"`
}

// ShellConfig tunes the shell sessions.
type ShellConfig struct {
	CommandTimeout      time.Duration `yaml:"command_timeout" split_words:"true"`
	NegotiationTimeout  time.Duration `yaml:"negotiation_timeout" split_words:"true"`
	VsctlTimeout        time.Duration `yaml:"vsctl_timeout" split_words:"true"`
	CrashMarker         string        `yaml:"crash_marker" split_words:"true"`
	ValgrindCrashMarker string        `yaml:"valgrind_crash_marker" split_words:"true"`
	ValgrindCommand     string        `yaml:"valgrind_command" split_words:"true"`
	TranscriptDir       string        `yaml:"transcript_dir" split_words:"true"` // empty disables transcripts
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true"`  // "debug", "info", "warn", "error"
	Format   string `yaml:"format" split_words:"true"` // "text" or "json"
	Sanitize bool   `yaml:"sanitize" split_words:"true"`
}

// MetricsConfig defines the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
	Path string `yaml:"path" split_words:"true"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	shells := session.DefaultProfileOptions()
	return &Config{
		Docker: DockerConfig{
			Binary: "docker",
		},
		Switch: SwitchConfig{
			SharedDirMount: node.DefaultSharedDirPath,
			Netns:          shells.Netns,
		},
		Shell: ShellConfig{
			CommandTimeout:      shells.CommandTimeout,
			NegotiationTimeout:  shells.NegotiationTimeout,
			VsctlTimeout:        shells.ExtendedTimeout,
			CrashMarker:         prompt.DefaultCrashMarker,
			ValgrindCrashMarker: prompt.DefaultCrashMarker,
			ValgrindCommand:     shells.ValgrindCommand,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   logging.FormatText,
			Sanitize: true,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path or a missing file yields the
// defaults with overrides. An optional FileSystem can be passed for
// testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		var data []byte
		var err error
		if len(fsys) > 0 && fsys[0] != nil {
			data, err = fsys[0].ReadFile(path)
		} else {
			data, err = os.ReadFile(path)
		}
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	for name, d := range map[string]time.Duration{
		"shell.command_timeout":     c.Shell.CommandTimeout,
		"shell.negotiation_timeout": c.Shell.NegotiationTimeout,
		"shell.vsctl_timeout":       c.Shell.VsctlTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}
	return errors.Join(errs...)
}

// ProfileOptions returns the shell profile tuning.
func (c *Config) ProfileOptions() session.ProfileOptions {
	return session.ProfileOptions{
		CommandTimeout:      c.Shell.CommandTimeout,
		NegotiationTimeout:  c.Shell.NegotiationTimeout,
		ExtendedTimeout:     c.Shell.VsctlTimeout,
		CrashMarker:         c.Shell.CrashMarker,
		ValgrindCrashMarker: c.Shell.ValgrindCrashMarker,
		ValgrindCommand:     c.Shell.ValgrindCommand,
		Netns:               c.Switch.Netns,
	}
}

// NodeConfig returns the switch configuration.
func (c *Config) NodeConfig() node.Config {
	return node.Config{
		SharedDir:      c.Switch.SharedDir,
		SharedDirMount: c.Switch.SharedDirMount,
		Netns:          c.Switch.Netns,
		Shells:         c.ProfileOptions(),
	}
}

// LoggingOptions returns the logger options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:    c.Logging.Level,
		Format:   c.Logging.Format,
		Sanitize: c.Logging.Sanitize,
	}
}
