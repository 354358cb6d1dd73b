package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearthkeep/hearth/pkg/hearth"
)

const modulePath = "github.com/hearthkeep/hearth"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hearth version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "hearth v%s\nmodule: %s\n", hearth.Version, modulePath)
			return nil
		},
	}
}
