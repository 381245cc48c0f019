package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *CLI) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List stored page records with age and staleness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withWorkspace(cmd, func(ws Workspace) error {
				rows := ws.Inspect()
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					_, _ = fmt.Fprintf(out, "no stored pages in namespace %q\n", ws.Namespace())
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "PAGE\tVERSION\tAGE\tSTALE\tSIZE")
				for _, r := range rows {
					age := "never"
					if r.LastFetched != 0 {
						age = humanize.RelTime(time.Now().Add(-r.Age), time.Now(), "ago", "from now")
					}
					_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%t\t%s\n",
						r.PageKey, r.Version, age, r.Stale, humanize.Bytes(uint64(r.Size)))
				}
				return tw.Flush()
			})
		},
	}
}
