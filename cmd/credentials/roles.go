package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
)

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Print the role hierarchy, lowest rank first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tROLE")
			for _, r := range authz.DefaultHierarchy().Roles() {
				fmt.Fprintf(w, "%d\t%s\n", r.Rank, r.Name)
			}
			return w.Flush()
		},
	}
}
