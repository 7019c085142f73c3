package commands

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acolita/openswitch-harness/internal/node"
)

var errScriptRequired = errors.New("--script flag or switch.setup_script is required")

func provisionCmd() *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Run the setup script in a booted container and report its ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if script == "" {
				script = cfg.Switch.SetupScript
			}
			if script == "" {
				return errScriptRequired
			}

			ctx := cmd.Context()
			h, err := openSwitch(ctx, containerID)
			if err != nil {
				return err
			}
			defer h.Close(ctx)

			if err := h.sw.Start(ctx); err != nil {
				return err
			}
			res, err := h.sw.NotifyPostBuild(ctx, script)
			if res != nil {
				writeResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}

	switchFlags(cmd)
	cmd.Flags().StringVar(&script, "script", "", "setup script copied into the shared directory")
	return cmd
}

// writeResult prints a provisioning result, ports sorted by label.
func writeResult(w io.Writer, res *node.Result) {
	fmt.Fprintf(w, "container:  %s\n", res.Container)
	if res.ProductName != "" {
		fmt.Fprintf(w, "product:    %s\n", res.ProductName)
	}
	fmt.Fprintf(w, "shared dir: %s\n", res.SharedDir)

	labels := make([]string, 0, len(res.Ports))
	for label := range res.Ports {
		labels = append(labels, label)
	}
	slices.SortFunc(labels, comparePortLabels)
	fmt.Fprintf(w, "ports:      %d\n", len(labels))
	for _, label := range labels {
		fmt.Fprintf(w, "  %-6s %s\n", label, res.Ports[label])
	}

	if res.Diagnostics != nil {
		fmt.Fprintf(w, "diagnostics run %s: %d failed commands\n", res.Diagnostics.RunID, res.Diagnostics.Failures)
	}
	if len(res.Artifacts) > 0 {
		fmt.Fprintln(w, "artifacts:")
		for _, a := range res.Artifacts {
			fmt.Fprintf(w, "  %s\n", a)
		}
	}
}

// comparePortLabels orders labels by their numeric parts: "2" before
// "10", "1" before "1-1" before "2".
func comparePortLabels(a, b string) int {
	pa, pb := strings.Split(a, "-"), strings.Split(b, "-")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := compareLabelPart(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	return len(pa) - len(pb)
}

func compareLabelPart(a, b string) int {
	if isDigits(a) && isDigits(b) {
		a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			return len(a) - len(b)
		}
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
