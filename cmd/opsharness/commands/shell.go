package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/acolita/openswitch-harness/internal/config"
	"github.com/acolita/openswitch-harness/internal/expect"
	"github.com/acolita/openswitch-harness/internal/logging"
	"github.com/acolita/openswitch-harness/internal/prompt"
	"github.com/acolita/openswitch-harness/internal/session"
)

// --- exec ---

func execCmd() *cobra.Command {
	var (
		shellName string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command>...",
		Short: "Run one command in a shell and print its response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := openSwitch(ctx, containerID)
			if err != nil {
				return err
			}
			defer h.Close(ctx)

			sh, err := h.shell(shellName)
			if err != nil {
				return err
			}
			var opts []session.CommandOption
			if timeout > 0 {
				opts = append(opts, session.WithTimeout(timeout))
			}

			_, err = sh.SendCommand(ctx, strings.Join(args, " "), opts...)
			writeResponse(cmd.OutOrStdout(), sh.Response())
			if err != nil {
				return err
			}
			return rejected(sh.Profile(), sh.Response())
		},
	}

	switchFlags(cmd)
	cmd.Flags().StringVarP(&shellName, "shell", "s", session.ShellVtysh, "shell to run the command in")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the shell's command timeout")
	return cmd
}

// --- run-script ---

func runScriptCmd() *cobra.Command {
	var shellName string

	cmd := &cobra.Command{
		Use:   "run-script <file>",
		Short: "Run a YAML send/expect dialog against a shell",
		Long: "run-script connects the shell, then plays the steps of the script. " +
			"Each step may send a line and waits for one of its expect patterns.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			script, err := expect.ParseScript(data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			h, err := openSwitch(ctx, containerID)
			if err != nil {
				return err
			}
			defer h.Close(ctx)

			sh, err := h.shell(shellName)
			if err != nil {
				return err
			}
			matched, err := sh.RunScript(ctx, script)
			writeSteps(cmd.OutOrStdout(), script, matched)
			return err
		},
	}

	switchFlags(cmd)
	cmd.Flags().StringVarP(&shellName, "shell", "s", session.ShellVtysh, "shell to run the script in")
	return cmd
}

// writeSteps prints the pattern index each completed step matched.
func writeSteps(w io.Writer, script *expect.Script, matched []int) {
	for i, idx := range matched {
		if i >= len(script.Steps) {
			break
		}
		fmt.Fprintf(w, "%-20s matched pattern %d\n", script.Steps[i].Name, idx)
	}
}

// --- console ---

func consoleCmd() *cobra.Command {
	var shellName string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Read commands from stdin and run them in a shell",
		Long: "console sends every input line to the shell and prints the response. " +
			"It ends on EOF or on an \"exit\" line. The configuration file is " +
			"reloaded while the console runs, so the log level can be changed live.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if configPath != "" {
				w, err := config.NewWatcher(configPath, applyReloaded)
				if err != nil {
					slog.Warn("config hot-reload disabled", slog.String("error", err.Error()))
				} else {
					defer w.Close()
				}
			}

			h, err := openSwitch(ctx, containerID)
			if err != nil {
				return err
			}
			defer h.Close(ctx)

			sh, err := h.shell(shellName)
			if err != nil {
				return err
			}
			if err := sh.Connect(ctx); err != nil {
				return err
			}
			return runConsole(ctx, sh, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	switchFlags(cmd)
	cmd.Flags().StringVarP(&shellName, "shell", "s", session.ShellVtysh, "shell to attach to")
	return cmd
}

// commandRunner is the part of a session the console needs.
type commandRunner interface {
	Name() string
	SendCommand(ctx context.Context, text string, opts ...session.CommandOption) (int, error)
	Response() string
}

// runConsole relays lines from in to sh until EOF, "exit" or cancellation.
// Command failures are reported and the loop goes on.
func runConsole(ctx context.Context, sh commandRunner, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s> ", sh.Name())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "exit" {
			return nil
		}

		_, err := sh.SendCommand(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		writeResponse(out, sh.Response())
		if err != nil {
			fmt.Fprintln(errOut, "Error:", err)
			var crash *session.FatalCrashError
			if errors.As(err, &crash) {
				fmt.Fprintln(errOut, "the shell crashed, the next command reconnects it")
			}
		}
	}
}

// applyReloaded applies the settings that can change while running.
func applyReloaded(c *config.Config) {
	applyFlags(c)
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil || logLevel == nil {
		return
	}
	logLevel.Set(level)
}

// rejected reports an in-band failure printed by a healthy vtysh shell.
// Other shells report failures through their own output only.
func rejected(p session.Profile, response string) error {
	if !p.Vtysh {
		return nil
	}
	c := prompt.Classify(response)
	if c == nil {
		return nil
	}
	return fmt.Errorf("%s rejected the command (%s): %s", p.Name, c.Kind, c.Message)
}

func writeResponse(w io.Writer, response string) {
	if response == "" {
		return
	}
	fmt.Fprintln(w, response)
}
