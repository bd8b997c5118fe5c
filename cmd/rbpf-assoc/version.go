package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set at link time with -ldflags "-X main.version=...".
var (
	version   = "dev"
	gitSHA    = "unknown"
	buildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build metadata",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rbpf-assoc %s (git %s, built %s)\n",
			version, gitSHA, buildTime)
	},
}
