package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cachesim version",
		Run: func(cmd *cobra.Command, _ []string) {
			version := Version

			if version == "dev" {
				if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
					version = info.Main.Version
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "cachesim", version)
		},
	}
}
