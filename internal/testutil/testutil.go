// Package testutil provides shared test fixtures for the association
// sampler packages.
//
// This package centralises model fixtures so tests in different packages
// agree on one small, well-conditioned parameter set.
package testutil

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

// Noise variances used by Parameters.
const (
	PosVar  = 4.0 // position-only noise variance per axis
	SizeVar = 9.0 // width/height noise variance
)

// Projection is the [x, vx, y, vy] → [x, y] measurement matrix.
func Projection() *mat.Dense {
	return mat.NewDense(prior.PosDim, prior.StateDim, []float64{
		1, 0, 0, 0,
		0, 0, 1, 0,
	})
}

// Parameters returns a validated parameter set for the given sensors with
// independent (zero cross-block) noise, zero noise means and a silent
// emission prior of 0.2.
//
// A single sensor emits its singleton with probability 0.8. With several
// sensors the full set gets 0.6 and each singleton shares 0.2.
func Parameters(t testing.TB, sensors ...string) *prior.Parameters {
	t.Helper()

	p := &prior.Parameters{
		Sensors:           sensors,
		Emission:          prior.NewSubsetPriors(),
		ClutterGroup:      prior.NewSubsetPriors(),
		ClutterCount:      prior.NewCountPriors(),
		BirthCount:        prior.NewCountPriors(),
		PosOnlyCov:        make(map[prior.SensorPair]*mat.Dense),
		PosSizeInvCov:     make(map[prior.SensorPair]*mat.Dense),
		NoiseMean:         make(map[string]*mat.VecDense),
		Projection:        Projection(),
		BirthLikelihood:   1e-4,
		ClutterLikelihood: 1e-4,
		Scaling:           prior.ScalingIgnoreOrderings,
	}

	p.Emission.Set(prior.NewSensorSet(), 0.2)
	if len(sensors) == 1 {
		p.Emission.Set(prior.NewSensorSet(sensors[0]), 0.8)
	} else {
		p.Emission.Set(prior.NewSensorSet(sensors...), 0.6)
		for _, s := range sensors {
			p.Emission.Set(prior.NewSensorSet(s), 0.2/float64(len(sensors)))
		}
	}
	for _, s := range sensors {
		p.ClutterGroup.Set(prior.NewSensorSet(s), 1/float64(len(sensors)))
	}

	p.BirthCount.Set(0, 0.8)
	p.BirthCount.Set(1, 0.2)
	p.ClutterCount.Set(0, 0.7)
	p.ClutterCount.Set(1, 0.2)
	p.ClutterCount.Set(2, 0.1)

	for _, a := range sensors {
		p.NoiseMean[a] = mat.NewVecDense(prior.DetDim, nil)
		for _, b := range sensors {
			pair := prior.SensorPair{A: a, B: b}
			if a == b {
				p.PosOnlyCov[pair] = mat.NewDense(2, 2, []float64{PosVar, 0, 0, PosVar})
				p.PosSizeInvCov[pair] = mat.NewDense(4, 4, []float64{
					1 / PosVar, 0, 0, 0,
					0, 1 / PosVar, 0, 0,
					0, 0, 1 / SizeVar, 0,
					0, 0, 0, 1 / SizeVar,
				})
				continue
			}
			p.PosOnlyCov[pair] = mat.NewDense(2, 2, nil)
			p.PosSizeInvCov[pair] = mat.NewDense(4, 4, nil)
		}
	}

	if err := p.Validate(); err != nil {
		t.Fatalf("fixture parameters invalid: %v", err)
	}
	return p
}
