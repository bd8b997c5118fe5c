// Package prior holds the read-only model configuration of the association
// sampler: epsilon-floored prior tables over sensor subsets and group
// counts, per-sensor noise blocks, and the state-to-measurement projection.
package prior

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
)

// Dimensions of the measurement and kinematic spaces.
const (
	DetDim   = 4 // center x, center y, width, height
	PosDim   = 2 // center x, center y
	StateDim = 4 // kinematic state length expected by Projection
)

// SensorPair keys a covariance block between two sensors. Blocks are
// directional: (A,B) is the transpose of (B,A).
type SensorPair struct {
	A, B string
}

// Parameters is the immutable model configuration. Build it with the
// config loader or by hand, call Validate, and do not modify it once
// sampling has begun; it is shared read-only across particles.
type Parameters struct {
	// Sensors lists sensor names in the order their detections are grouped.
	Sensors []string

	// Emission is the probability that a target emits exactly a subset of
	// sensors. The empty subset is the silent probability.
	Emission *SubsetPriors
	// ClutterGroup is the probability that a clutter source emits a subset.
	ClutterGroup *SubsetPriors
	// ClutterCount is the prior over clutter groups per frame.
	ClutterCount *CountPriors
	// BirthCount is the prior over births per frame.
	BirthCount *CountPriors

	// PosOnlyCov holds 2x2 position-only noise covariance blocks.
	PosOnlyCov map[SensorPair]*mat.Dense
	// PosSizeInvCov holds 4x4 blocks of the inverse joint noise covariance.
	PosSizeInvCov map[SensorPair]*mat.Dense
	// NoiseMean is the per-sensor mean detection offset (length 4).
	NoiseMean map[string]*mat.VecDense

	// Projection maps a target state into measurement position (2 x StateDim).
	Projection *mat.Dense

	BirthLikelihood   float64
	ClutterLikelihood float64

	// KNearest restricts association candidates to the K nearest targets.
	KNearest bool
	K        int

	Scaling Scaling
}

// SilentPrior is the probability that a target emits no detection.
func (p *Parameters) SilentPrior() float64 {
	return p.Emission.Lookup(SensorSet{})
}

// EmissionPrior is the probability that a target emits exactly s.
func (p *Parameters) EmissionPrior(s SensorSet) float64 {
	return p.Emission.Lookup(s)
}

// BirthGroupPrior is the probability that a newborn target emits s, given
// that it emits something.
func (p *Parameters) BirthGroupPrior(s SensorSet) float64 {
	if !p.Emission.Has(s) {
		return Epsilon
	}
	v := p.Emission.Lookup(s) / (1 - p.SilentPrior())
	if v <= 0 {
		return Epsilon
	}
	return v
}

// BirthGroupCountPrior is the probability of n births in a frame.
func (p *Parameters) BirthGroupCountPrior(n int) float64 {
	return p.BirthCount.Lookup(n)
}

// ClutterGroupPrior is the probability that a clutter group covers s.
func (p *Parameters) ClutterGroupPrior(s SensorSet) float64 {
	return p.ClutterGroup.Lookup(s)
}

// ClutterGroupCountPrior is the probability of n clutter groups in a frame.
func (p *Parameters) ClutterGroupCountPrior(n int) float64 {
	return p.ClutterCount.Lookup(n)
}

// PosOnlyBlock returns the 2x2 position noise covariance block (a,b).
func (p *Parameters) PosOnlyBlock(a, b string) (*mat.Dense, error) {
	m, ok := p.PosOnlyCov[SensorPair{a, b}]
	if !ok {
		return nil, fmt.Errorf("%w: no position covariance block for (%s,%s)", faults.ErrInvalidArgument, a, b)
	}
	return m, nil
}

// InvCovBlock returns the 4x4 inverse covariance block (a,b).
func (p *Parameters) InvCovBlock(a, b string) (*mat.Dense, error) {
	m, ok := p.PosSizeInvCov[SensorPair{a, b}]
	if !ok {
		return nil, fmt.Errorf("%w: no inverse covariance block for (%s,%s)", faults.ErrInvalidArgument, a, b)
	}
	return m, nil
}

// NoiseOffset returns the mean detection offset of sensor name.
func (p *Parameters) NoiseOffset(name string) (*mat.VecDense, error) {
	v, ok := p.NoiseMean[name]
	if !ok {
		return nil, fmt.Errorf("%w: no noise mean for sensor %s", faults.ErrInvalidArgument, name)
	}
	return v, nil
}

// Validate checks shapes, probability ranges and completeness of the
// per-sensor blocks.
func (p *Parameters) Validate() error {
	if len(p.Sensors) == 0 {
		return fmt.Errorf("%w: no sensors configured", faults.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(p.Sensors))
	for _, s := range p.Sensors {
		if s == "" {
			return fmt.Errorf("%w: empty sensor name", faults.ErrInvalidArgument)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate sensor %s", faults.ErrInvalidArgument, s)
		}
		seen[s] = true
	}

	if silent := p.SilentPrior(); silent >= 1 {
		return fmt.Errorf("%w: silent emission prior must be < 1, got %g", faults.ErrInvalidArgument, silent)
	}
	if p.BirthLikelihood <= 0 || p.ClutterLikelihood <= 0 {
		return fmt.Errorf("%w: birth and clutter likelihoods must be positive, got %g and %g",
			faults.ErrInvalidArgument, p.BirthLikelihood, p.ClutterLikelihood)
	}
	if p.KNearest && p.K <= 0 {
		return fmt.Errorf("%w: k-nearest gating needs k > 0, got %d", faults.ErrInvalidArgument, p.K)
	}
	if _, err := ParseScaling(string(p.Scaling)); err != nil {
		return err
	}

	if p.Projection == nil {
		return fmt.Errorf("%w: projection is required", faults.ErrInvalidArgument)
	}
	if r, c := p.Projection.Dims(); r != PosDim || c != StateDim {
		return fmt.Errorf("%w: projection must be %dx%d, got %dx%d", faults.ErrShapeMismatch, PosDim, StateDim, r, c)
	}

	for _, a := range p.Sensors {
		off, err := p.NoiseOffset(a)
		if err != nil {
			return err
		}
		if off.Len() != DetDim {
			return fmt.Errorf("%w: noise mean for %s has length %d", faults.ErrShapeMismatch, a, off.Len())
		}
		for _, b := range p.Sensors {
			pos, err := p.PosOnlyBlock(a, b)
			if err != nil {
				return err
			}
			if r, c := pos.Dims(); r != PosDim || c != PosDim {
				return fmt.Errorf("%w: position block (%s,%s) is %dx%d", faults.ErrShapeMismatch, a, b, r, c)
			}
			inv, err := p.InvCovBlock(a, b)
			if err != nil {
				return err
			}
			if r, c := inv.Dims(); r != DetDim || c != DetDim {
				return fmt.Errorf("%w: inverse block (%s,%s) is %dx%d", faults.ErrShapeMismatch, a, b, r, c)
			}
		}
	}
	return nil
}
