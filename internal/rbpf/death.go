package rbpf

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf/debug"
)

// Deaths is the outcome of the death sampler.
type Deaths struct {
	// Kill lists target indices to remove, ascending.
	Kill []int
	// Probability is the proposal probability of the sampled deaths.
	Probability float64
}

// Killed reports whether target i is on the kill list.
func (d *Deaths) Killed(i int) bool {
	_, ok := slices.BinarySearch(d.Kill, i)
	return ok
}

// SampleDeaths decides which targets die this frame. Offscreen targets
// are always killed and contribute no probability. Targets that explain
// a group survive. Every other target dies with its death probability.
//
// rec may be nil.
func SampleDeaths(p *Particle, assoc []Association, src rand.Source, rec *debug.Collector) (*Deaths, error) {
	if err := checkDeathProbs(p.Targets); err != nil {
		return nil, err
	}
	associated := make(map[int]bool, len(assoc))
	for _, a := range assoc {
		if a.Kind == KindTarget {
			associated[a.Target] = true
		}
	}

	out := &Deaths{Probability: 1}
	for i, t := range p.Targets {
		d := t.DeathProb()
		killed := false
		switch {
		case t.Offscreen():
			killed = true
		case !associated[i]:
			coin := distuv.Bernoulli{P: d, Src: src}
			if coin.Rand() == 1 {
				killed = true
				out.Probability *= d
			} else {
				out.Probability *= 1 - d
			}
		}
		if killed {
			out.Kill = append(out.Kill, i)
		}
		rec.RecordDeath(debug.DeathRecord{
			Target:     i,
			Offscreen:  t.Offscreen(),
			Associated: associated[i],
			DeathProb:  d,
			Killed:     killed,
		})
	}

	if !slices.IsSorted(out.Kill) {
		return nil, fmt.Errorf("%w: kill list %v is not sorted", faults.ErrConsistencyViolation, out.Kill)
	}
	return out, nil
}
