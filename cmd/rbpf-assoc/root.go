package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/afcarl/rbpf-fireworks/internal/rbpf"
)

var (
	verbose bool
	trace   bool
)

var rootCmd = &cobra.Command{
	Use:   "rbpf-assoc",
	Short: "Multi-sensor detection association sampler",
	Long: "rbpf-assoc replays a scenario of per-sensor detections through the " +
		"Rao-Blackwellized particle filter association sampler and records " +
		"per-particle importance weights.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr(), verbose, trace)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging routes the ops stream to w always, and the diag and trace
// streams only when requested.
func setupLogging(w io.Writer, verbose, trace bool) {
	lw := rbpf.LogWriters{Ops: w}
	if verbose {
		lw.Diag = w
	}
	if trace {
		lw.Trace = w
	}
	rbpf.SetLogWriters(lw)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-frame summaries")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Log every proposal distribution and draw")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}
