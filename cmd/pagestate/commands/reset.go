package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <page>",
		Short: "Reset one page to its defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ws Workspace) error {
				if err := ws.Reset(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *CLI) newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset every page of the namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withWorkspace(cmd, func(ws Workspace) error {
				n, err := ws.Clear(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %d pages in namespace %q\n", n, ws.Namespace())
				return nil
			})
		},
	}
}
