package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/spf13/cobra"
)

func newIndicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "List the supported spectral indices and the bands they read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tBANDS")
			for _, idx := range sentinel.AllIndices() {
				spec := idx.Spec()
				fmt.Fprintf(tw, "%s\t%s\n", spec.Name, strings.Join(spec.Bands, ", "))
			}
			return tw.Flush()
		},
	}
}
