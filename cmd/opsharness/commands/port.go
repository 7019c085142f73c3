package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func portStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port-state <label> <up|down>",
		Short: "Bring a front panel port up or down",
		Long: "port-state reads the port mapping left by provision and sets the " +
			"link state of the interface behind the label.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := parsePortState(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			h, err := openSwitch(ctx, containerID)
			if err != nil {
				return err
			}
			defer h.Close(ctx)

			if err := h.sw.LoadPorts(); err != nil {
				return err
			}
			if err := h.sw.SetPortState(ctx, args[0], up); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "port %s %s\n", args[0], strings.ToLower(args[1]))
			return nil
		},
	}

	switchFlags(cmd)
	return cmd
}

func parsePortState(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "up":
		return true, nil
	case "down":
		return false, nil
	}
	return false, fmt.Errorf("unknown port state %q, expected up or down", s)
}
