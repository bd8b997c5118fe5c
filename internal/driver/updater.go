package driver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/fusion"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf"
)

// Updater turns fused group measurements into target state. Kalman
// prediction and update live behind this interface.
type Updater interface {
	// Update returns the state of t after it explained f.
	Update(t rbpf.Target, f fusion.Fused) (rbpf.Target, error)
	// Birth returns a new target created from f.
	Birth(f fusion.Fused) (rbpf.Target, error)
}

// State layout used by FusedUpdater: [x, vx, y, vy].
const (
	stateX = 0
	stateY = 2
)

// FusedUpdater overwrites a target's position with the fused measurement
// and its position covariance with the fused position covariance. The
// velocity block is kept and the position-velocity cross terms are
// cleared, which keeps P positive definite.
type FusedUpdater struct {
	// BirthVelocityVar is the velocity variance given to newborn targets.
	BirthVelocityVar float64
	// BirthDeathProb is the death probability given to newborn targets.
	BirthDeathProb float64
}

// DefaultUpdater returns a FusedUpdater with conservative birth settings.
func DefaultUpdater() FusedUpdater {
	return FusedUpdater{BirthVelocityVar: 10, BirthDeathProb: 0.1}
}

// Update implements Updater.
func (u FusedUpdater) Update(t rbpf.Target, f fusion.Fused) (rbpf.Target, error) {
	if err := checkFused(f); err != nil {
		return nil, err
	}
	mean := t.Mean()
	if mean.Len() != prior.StateDim {
		return nil, fmt.Errorf("%w: target state has length %d", faults.ErrShapeMismatch, mean.Len())
	}
	x := mat.VecDenseCopyOf(mean)
	x.SetVec(stateX, f.Mean.AtVec(0))
	x.SetVec(stateY, f.Mean.AtVec(1))

	p := mat.NewSymDense(prior.StateDim, nil)
	p.CopySym(t.Covariance())
	for _, pos := range []int{stateX, stateY} {
		for _, vel := range []int{stateX + 1, stateY + 1} {
			p.SetSym(pos, vel, 0)
		}
	}
	p.SetSym(stateX, stateX, f.Cov.At(0, 0))
	p.SetSym(stateX, stateY, f.Cov.At(0, 1))
	p.SetSym(stateY, stateY, f.Cov.At(1, 1))

	return &rbpf.TargetState{X: x, P: p, Death: t.DeathProb(), OffScreen: t.Offscreen()}, nil
}

// Birth implements Updater.
func (u FusedUpdater) Birth(f fusion.Fused) (rbpf.Target, error) {
	if err := checkFused(f); err != nil {
		return nil, err
	}
	x := mat.NewVecDense(prior.StateDim, nil)
	x.SetVec(stateX, f.Mean.AtVec(0))
	x.SetVec(stateY, f.Mean.AtVec(1))

	p := mat.NewSymDense(prior.StateDim, nil)
	p.SetSym(stateX, stateX, f.Cov.At(0, 0))
	p.SetSym(stateX, stateY, f.Cov.At(0, 1))
	p.SetSym(stateY, stateY, f.Cov.At(1, 1))
	p.SetSym(stateX+1, stateX+1, u.BirthVelocityVar)
	p.SetSym(stateY+1, stateY+1, u.BirthVelocityVar)

	return &rbpf.TargetState{X: x, P: p, Death: u.BirthDeathProb}, nil
}

func checkFused(f fusion.Fused) error {
	if f.Mean == nil || f.Cov == nil {
		return fmt.Errorf("%w: fused measurement is missing", faults.ErrInvalidArgument)
	}
	if f.Mean.Len() != prior.DetDim || f.Cov.SymmetricDim() != prior.DetDim {
		return fmt.Errorf("%w: fused measurement must be %d-dimensional", faults.ErrShapeMismatch, prior.DetDim)
	}
	return nil
}
