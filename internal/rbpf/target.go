package rbpf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

// Target is a live tracked object as seen by the sampler. Its kinematic
// state is owned and propagated elsewhere; the sampler only reads it.
type Target interface {
	// Mean is the Kalman state mean (prior.StateDim long).
	Mean() mat.Vector
	// Covariance is the Kalman state covariance.
	Covariance() mat.Symmetric
	// DeathProb is the probability the target died since the last frame.
	DeathProb() float64
	// Offscreen reports that the target left the field of view. An
	// offscreen target is always killed, and its kill is charged its
	// DeathProb in the death prior, so DeathProb must be positive.
	Offscreen() bool
}

// TargetState is a plain Target implementation.
type TargetState struct {
	X         *mat.VecDense
	P         *mat.SymDense
	Death     float64
	OffScreen bool
}

// Mean implements Target.
func (t *TargetState) Mean() mat.Vector { return t.X }

// Covariance implements Target.
func (t *TargetState) Covariance() mat.Symmetric { return t.P }

// DeathProb implements Target.
func (t *TargetState) DeathProb() float64 { return t.Death }

// Offscreen implements Target.
func (t *TargetState) Offscreen() bool { return t.OffScreen }

// projectedPosition returns H·x.
func projectedPosition(params *prior.Parameters, t Target) (*mat.VecDense, error) {
	x := t.Mean()
	if x.Len() != prior.StateDim {
		return nil, fmt.Errorf("%w: target state has length %d, want %d", faults.ErrShapeMismatch, x.Len(), prior.StateDim)
	}
	loc := mat.NewVecDense(prior.PosDim, nil)
	loc.MulVec(params.Projection, x)
	return loc, nil
}

// projectedCovariance returns H·P·Hᵀ.
func projectedCovariance(params *prior.Parameters, t Target) (*mat.Dense, error) {
	p := t.Covariance()
	if n := p.SymmetricDim(); n != prior.StateDim {
		return nil, fmt.Errorf("%w: target covariance is %dx%d, want %dx%d", faults.ErrShapeMismatch, n, n, prior.StateDim, prior.StateDim)
	}
	var hp mat.Dense
	hp.Mul(params.Projection, p)
	s := mat.NewDense(prior.PosDim, prior.PosDim, nil)
	s.Mul(&hp, params.Projection.T())
	return s, nil
}

// checkDeathProbs validates that every death probability lies in [0,1]
// and that offscreen targets can die.
func checkDeathProbs(targets []Target) error {
	for i, t := range targets {
		d := t.DeathProb()
		if d < 0 || d > 1 {
			return fmt.Errorf("%w: target %d death probability %g outside [0,1]", faults.ErrInvalidArgument, i, d)
		}
		if t.Offscreen() && d == 0 {
			return fmt.Errorf("%w: offscreen target %d has death probability 0", faults.ErrInvalidArgument, i)
		}
	}
	return nil
}
