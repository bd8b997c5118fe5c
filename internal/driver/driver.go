// Package driver runs the association sampler over a particle set, one
// frame at a time, and applies each particle's sampled outcome.
package driver

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf/debug"
)

// Options configures a Driver.
type Options struct {
	// Particles is the number of particles; must be positive.
	Particles int
	// Seed seeds every particle's random source. Particle i draws from
	// PCG(Seed, i), so results do not depend on goroutine scheduling.
	Seed uint64
	// Updater applies associations to targets; DefaultUpdater when nil.
	Updater Updater
	// Collect enables a debug collector per particle.
	Collect bool
}

// Result is one particle's outcome for one frame.
type Result struct {
	Particle   int
	ParticleID uuid.UUID
	// Outcome is nil when Err is set or the particle was skipped.
	Outcome *rbpf.Outcome
	// Weight is the particle's running weight after the frame.
	Weight float64
	// Err is the sampling or update failure that zeroed the particle.
	Err error
	// Skipped is set for particles that had already failed.
	Skipped bool
}

// Driver owns a particle set and steps it through frames.
type Driver struct {
	params     *prior.Parameters
	particles  []*rbpf.Particle
	sources    []rand.Source
	collectors []*debug.Collector
	updater    Updater
}

// New creates a driver whose particles each start from initial(), which
// must return targets the particle can own.
func New(params *prior.Parameters, initial func() []rbpf.Target, opts Options) (*Driver, error) {
	if opts.Particles <= 0 {
		return nil, fmt.Errorf("%w: particle count must be positive, got %d", faults.ErrInvalidArgument, opts.Particles)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		params:     params,
		particles:  make([]*rbpf.Particle, opts.Particles),
		sources:    make([]rand.Source, opts.Particles),
		collectors: make([]*debug.Collector, opts.Particles),
		updater:    opts.Updater,
	}
	if d.updater == nil {
		d.updater = DefaultUpdater()
	}
	for i := range d.particles {
		d.particles[i] = rbpf.NewParticle(initial())
		d.sources[i] = rand.NewPCG(opts.Seed, uint64(i))
		if opts.Collect {
			d.collectors[i] = debug.NewCollector()
			d.collectors[i].SetEnabled(true)
		}
	}
	return d, nil
}

// Particles returns the particle set. Callers must not modify it while
// Step is running.
func (d *Driver) Particles() []*rbpf.Particle {
	return d.particles
}

// Step samples and applies one frame for every particle concurrently.
// A particle whose frame fails is logged, given weight zero and skipped on
// later frames; Step itself only fails when ctx is cancelled.
func (d *Driver) Step(ctx context.Context, frame rbpf.Frame) ([]Result, error) {
	results := make([]Result, len(d.particles))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range d.particles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = d.stepParticle(i, p, frame)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil || r.Skipped {
			failed++
		}
	}
	rbpf.Diagf("frame %d: particles=%d failed=%d ess=%.3f", frame.ID, len(d.particles), failed, d.EffectiveSampleSize())
	return results, nil
}

func (d *Driver) stepParticle(i int, p *rbpf.Particle, frame rbpf.Frame) Result {
	r := Result{Particle: i, ParticleID: p.ID}
	if p.Weight == 0 {
		r.Skipped = true
		return r
	}

	out, err := rbpf.SampleAndReweight(p, d.params, frame, d.sources[i], d.collectors[i])
	if err == nil {
		err = d.apply(p, out)
	}
	if err != nil {
		rbpf.Opsf("particle %d (%s) failed on frame %d: %v", i, p.ID, frame.ID, err)
		p.Weight = 0
		r.Err = err
		return r
	}
	r.Outcome = out
	r.Weight = p.Weight
	return r
}

// apply updates associated targets, removes killed ones, appends births,
// multiplies the weight and clears the likelihood cache.
func (d *Driver) apply(p *rbpf.Particle, out *rbpf.Outcome) error {
	targets := slices.Clone(p.Targets)
	var births []rbpf.Target
	for gi, a := range out.Associations {
		switch a.Kind {
		case rbpf.KindTarget:
			t, err := d.updater.Update(targets[a.Target], out.Fused[gi])
			if err != nil {
				return fmt.Errorf("update target %d: %w", a.Target, err)
			}
			targets[a.Target] = t
		case rbpf.KindBirth:
			t, err := d.updater.Birth(out.Fused[gi])
			if err != nil {
				return fmt.Errorf("birth from group %d: %w", gi, err)
			}
			births = append(births, t)
		}
	}

	// Kill is ascending; delete from the back so indices stay valid.
	for k := len(out.Kill) - 1; k >= 0; k-- {
		idx := out.Kill[k]
		targets = slices.Delete(targets, idx, idx+1)
	}

	p.Targets = append(targets, births...)
	p.Weight *= out.Weights.Multiplier
	p.Cache().Clear()
	return nil
}

// Weights returns the particles' running weights.
func (d *Driver) Weights() []float64 {
	w := make([]float64, len(d.particles))
	for i, p := range d.particles {
		w[i] = p.Weight
	}
	return w
}

// NormalizedWeights returns the weights scaled to sum to one, or nil when
// every particle has weight zero.
func (d *Driver) NormalizedWeights() []float64 {
	w := d.Weights()
	total := floats.Sum(w)
	if total == 0 {
		return nil
	}
	floats.Scale(1/total, w)
	return w
}

// EffectiveSampleSize is 1/Σw² over the normalized weights, or zero when
// every particle has failed.
func (d *Driver) EffectiveSampleSize() float64 {
	w := d.NormalizedWeights()
	if w == nil {
		return 0
	}
	return 1 / floats.Dot(w, w)
}
