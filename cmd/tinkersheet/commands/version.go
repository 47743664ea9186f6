package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livetemplate/tinkersheet/internal/config"
)

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tinkersheet",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tinkersheet version %s (widget runtime %s)\n", version, config.DefaultRuntimeVersion)
		},
	}
}
