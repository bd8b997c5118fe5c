// Package rbpf implements the per-particle data-association step of a
// Rao-Blackwellized particle filter over several detection sources.
//
// For one frame, SampleAndReweight groups the per-sensor detections,
// fuses each group, draws an association for every group and a death
// decision for every target, and returns the importance weight
// multiplier for the particle. Applying the outcome (killing targets,
// creating births, Kalman updates) is left to the caller.
package rbpf

import (
	"fmt"
	"math/rand/v2"

	"github.com/afcarl/rbpf-fireworks/internal/fusion"
	"github.com/afcarl/rbpf-fireworks/internal/geom"
	"github.com/afcarl/rbpf-fireworks/internal/grouping"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf/debug"
)

// Frame holds one time step of raw detections, keyed by sensor name.
type Frame struct {
	ID      uint64
	Batches map[string][]geom.Box
}

// Outcome is everything the driver needs to apply a sampled frame to a
// particle.
type Outcome struct {
	Groups       []*grouping.Group
	Associations []Association
	Fused        []fusion.Fused
	// Kill lists target indices to remove, ascending.
	Kill    []int
	Weights *Weights

	// Debug is set when a collector was supplied and enabled.
	Debug *debug.Frame
}

// SampleAndReweight runs one frame for one particle. The particle's
// likelihood cache is cleared first, so cached values never outlive the
// target list they were computed for.
//
// src drives every draw; pass a seeded source for reproducible runs.
// rec may be nil.
func SampleAndReweight(p *Particle, params *prior.Parameters, frame Frame, src rand.Source, rec *debug.Collector) (*Outcome, error) {
	groups, err := grouping.GroupFrame(params.Sensors, frame.Batches)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.ID, err)
	}
	rec.BeginFrame(frame.ID)
	out, err := SampleAndReweightGroups(p, params, groups, src, rec)
	if err != nil {
		rec.Reset()
		return nil, fmt.Errorf("frame %d particle %s: %w", frame.ID, p.ID, err)
	}
	out.Debug = rec.Emit()
	return out, nil
}

// SampleAndReweightGroups is SampleAndReweight for detections that are
// already grouped. Groups are visited in slice order.
func SampleAndReweightGroups(p *Particle, params *prior.Parameters, groups []*grouping.Group,
	src rand.Source, rec *debug.Collector,
) (*Outcome, error) {
	p.Cache().Clear()

	prop, err := SampleAssociations(p, params, groups, src, rec)
	if err != nil {
		return nil, err
	}
	deaths, err := SampleDeaths(p, prop.Associations, src, rec)
	if err != nil {
		return nil, err
	}
	w, err := Reweight(p, params, groups, prop, deaths)
	if err != nil {
		return nil, err
	}
	p.ExactProbability = w.Exact

	hits, misses := p.Cache().Stats()
	Diagf("particle %s: groups=%d targets=%d kill=%v exact=%g proposal=%g multiplier=%g cache=%d/%d",
		p.ID, len(groups), len(p.Targets), deaths.Kill, w.Exact, w.Proposal, w.Multiplier, hits, hits+misses)

	return &Outcome{
		Groups:       groups,
		Associations: prop.Associations,
		Fused:        prop.Fused,
		Kill:         deaths.Kill,
		Weights:      w,
	}, nil
}
