package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/afcarl/rbpf-fireworks/internal/config"
	"github.com/afcarl/rbpf-fireworks/internal/driver"
	"github.com/afcarl/rbpf-fireworks/internal/fsutil"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf"
	"github.com/afcarl/rbpf-fireworks/internal/scenario"
	"github.com/afcarl/rbpf-fireworks/internal/store"
)

type runOptions struct {
	Params    string
	Scenario  string
	Particles int
	Seed      uint64
	DB        string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario through the association sampler",
	Long: "run loads model parameters and a scenario, steps every particle " +
		"through each frame and prints per-frame weight summaries. With --db " +
		"every per-particle outcome is stored for later inspection.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd.Context(), cmd.OutOrStdout(), fsutil.OSFileSystem{}, runOpts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runOpts.Params, "params", "", "Path to parameters file (.json, .yaml)")
	runCmd.Flags().StringVar(&runOpts.Scenario, "scenario", "", "Path to scenario file (.json, .yaml)")
	runCmd.Flags().IntVar(&runOpts.Particles, "particles", 100, "Number of particles")
	runCmd.Flags().Uint64Var(&runOpts.Seed, "seed", 1, "Random seed")
	runCmd.Flags().StringVar(&runOpts.DB, "db", "", "SQLite database to record outcomes in")
	runCmd.MarkFlagRequired("params")
	runCmd.MarkFlagRequired("scenario")
}

func runScenario(ctx context.Context, w io.Writer, fsys fsutil.FileSystem, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	params, err := config.LoadParameters(fsys, opts.Params)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(fsys, opts.Scenario, params.Sensors)
	if err != nil {
		return err
	}
	d, err := driver.New(params, sc.Targets, driver.Options{Particles: opts.Particles, Seed: opts.Seed})
	if err != nil {
		return err
	}

	var st *store.Store
	var runID uuid.UUID
	if opts.DB != "" {
		st, err = store.Open(opts.DB)
		if err != nil {
			return err
		}
		defer st.Close()
		runID, err = st.CreateRun(ctx, store.Run{
			ParamsPath:   opts.Params,
			ScenarioPath: opts.Scenario,
			Particles:    opts.Particles,
			Seed:         int64(opts.Seed),
		})
		if err != nil {
			return err
		}
		rbpf.Opsf("recording run %s to %s", runID, opts.DB)
	}

	for _, frame := range sc.Frames {
		results, err := d.Step(ctx, frame)
		if err != nil {
			return err
		}
		printFrame(w, frame, results, d)
		if st == nil {
			continue
		}
		for _, r := range results {
			if err := st.RecordOutcome(ctx, toStored(runID, frame.ID, r)); err != nil {
				return err
			}
		}
	}

	if st != nil {
		fmt.Fprintf(w, "run %s\n", runID)
	}
	return nil
}

func printFrame(w io.Writer, frame rbpf.Frame, results []driver.Result, d *driver.Driver) {
	failed, targets := 0, 0
	groups := 0
	for _, r := range results {
		if r.Outcome == nil {
			failed++
			continue
		}
		groups = len(r.Outcome.Groups)
	}
	for _, p := range d.Particles() {
		targets += len(p.Targets)
	}
	best := 0.0
	if nw := d.NormalizedWeights(); nw != nil {
		best = slices.Max(nw)
	}
	fmt.Fprintf(w, "frame %d: groups=%d failed=%d mean_targets=%.2f ess=%.2f max_weight=%.4f\n",
		frame.ID, groups, failed, float64(targets)/float64(len(results)), d.EffectiveSampleSize(), best)
}

func toStored(runID uuid.UUID, frameID uint64, r driver.Result) store.Outcome {
	o := store.Outcome{
		RunID:      runID,
		FrameID:    frameID,
		Particle:   r.Particle,
		ParticleID: r.ParticleID,
		Weight:     r.Weight,
	}
	switch {
	case r.Err != nil:
		o.Err = r.Err.Error()
	case r.Skipped:
		o.Err = "skipped: particle failed on an earlier frame"
	default:
		out := r.Outcome
		o.Groups = len(out.Groups)
		for _, a := range out.Associations {
			o.Associations = append(o.Associations, a.String())
		}
		o.Kill = out.Kill
		o.Likelihood = out.Weights.Likelihood
		o.AssocPrior = out.Weights.AssocPrior
		o.DeathPrior = out.Weights.DeathPrior
		o.Exact = out.Weights.Exact
		o.Proposal = out.Weights.Proposal
		o.Multiplier = out.Weights.Multiplier
	}
	return o
}
