package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/afcarl/rbpf-fireworks/internal/store"
)

var (
	inspectDB  string
	inspectRun string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print stored runs or the outcomes of one run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(cmd.Context(), cmd.OutOrStdout(), inspectDB, inspectRun)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "SQLite database written by run --db")
	inspectCmd.Flags().StringVar(&inspectRun, "run", "", "Run id; lists runs when empty")
	inspectCmd.MarkFlagRequired("db")
}

func inspect(ctx context.Context, w io.Writer, dbPath, run string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if run == "" {
		runs, err := st.Runs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "RUN\tPARTICLES\tSEED\tPARAMS\tSCENARIO\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
				r.ID, r.Particles, r.Seed, r.ParamsPath, r.ScenarioPath, r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	runID, err := uuid.Parse(run)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run, err)
	}
	outcomes, err := st.Outcomes(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "FRAME\tPARTICLE\tASSOCIATIONS\tKILL\tEXACT\tPROPOSAL\tMULTIPLIER\tWEIGHT\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%v\t%.4g\t%.4g\t%.4g\t%.4g\t%s\n",
			o.FrameID, o.Particle, strings.Join(o.Associations, ","), o.Kill,
			o.Exact, o.Proposal, o.Multiplier, o.Weight, o.Err)
	}
	return nil
}
