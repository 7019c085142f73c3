// Package commands implements the opsharness command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acolita/openswitch-harness/internal/config"
	"github.com/acolita/openswitch-harness/internal/docker"
	"github.com/acolita/openswitch-harness/internal/logging"
	"github.com/acolita/openswitch-harness/internal/recovery"
)

var (
	// cfg is the effective configuration, loaded in PersistentPreRunE.
	cfg *config.Config

	// logLevel controls the level of the default logger after startup.
	logLevel *slog.LevelVar

	configPath  string
	levelFlag   string
	metricsAddr string

	containerID   string
	sharedDirFlag string
)

// rootCmd is the top-level cobra command.
var rootCmd = &cobra.Command{
	Use:   "opsharness",
	Short: "Drive OpenSwitch containers under test",
	Long: "opsharness provisions OpenSwitch containers, runs commands in their " +
		"bash, vtysh and ovs-vsctl shells and toggles front panel ports.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		logLevel = logging.Setup(os.Stderr, cfg.LoggingOptions())
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to the configuration file")
	flags.StringVar(&levelFlag, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(provisionCmd())
	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(portStateCmd())
	rootCmd.AddCommand(runScriptCmd())
	rootCmd.AddCommand(consoleCmd())
	rootCmd.AddCommand(versionCmd())
}

// loadConfig loads the file and environment, then applies flag overrides.
func loadConfig() (*config.Config, error) {
	loaded, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyFlags(loaded)
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return loaded, nil
}

func applyFlags(c *config.Config) {
	if levelFlag != "" {
		c.Logging.Level = levelFlag
	}
	if metricsAddr != "" {
		c.Metrics.Addr = metricsAddr
	}
	if sharedDirFlag != "" {
		c.Switch.SharedDir = sharedDirFlag
	}
}

// switchFlags registers the flags shared by commands that act on a switch.
func switchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&containerID, "container", "c", "", "container name or ID (required)")
	cmd.Flags().StringVar(&sharedDirFlag, "shared-dir", "", "host directory mounted into the container")
	_ = cmd.MarkFlagRequired("container")
}

// Execute runs the root command until it finishes or the process is
// interrupted, and exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		writeHints(os.Stderr, err)
		os.Exit(1)
	}
}

// writeHints prints troubleshooting hints recognized in err and, for
// failed container commands, in their output.
func writeHints(w io.Writer, err error) {
	text := err.Error()
	var execErr *docker.ExecError
	if errors.As(err, &execErr) {
		text += "\n" + execErr.Output
	}
	for _, s := range recovery.NewAnalyzer().Analyze(text) {
		fmt.Fprintf(w, "hint: %s. %s\n", s.Error, s.Explanation)
		for _, c := range s.Commands {
			fmt.Fprintf(w, "  $ %s\n", c)
		}
	}
}
