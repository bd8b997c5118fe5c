package rbpf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/grouping"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

// AssocLikelihood returns the likelihood that target emitted group g,
// memoised on the particle's cache.
//
// For n sensors in the group the density is evaluated in 2n dimensions:
// the per-sensor detection centers are stacked in sorted sensor order and
// compared against the target's projected position repeated n times. The
// (i,j) 2x2 block of the covariance is the position-only noise block of
// sensors (i,j) plus the target's projected covariance H·P·Hᵀ, which is
// shared by every detection of the same target.
func AssocLikelihood(p *Particle, params *prior.Parameters, g *grouping.Group, target int) (float64, error) {
	if target < 0 || target >= len(p.Targets) {
		return 0, fmt.Errorf("%w: target index %d out of range [0,%d)", faults.ErrInvalidArgument, target, len(p.Targets))
	}

	cache := p.Cache()
	key := g.Key()
	if v, ok := cache.get(key, target); ok {
		return v, nil
	}

	t := p.Targets[target]
	loc, err := projectedPosition(params, t)
	if err != nil {
		return 0, err
	}
	tcov, err := projectedCovariance(params, t)
	if err != nil {
		return 0, err
	}

	names := g.SensorNames()
	n := len(names)
	dim := prior.PosDim * n

	x := make([]float64, dim)
	mu := make([]float64, dim)
	for i, name := range names {
		det, _ := g.Detection(name)
		x[2*i], x[2*i+1] = det.X, det.Y
		mu[2*i], mu[2*i+1] = loc.AtVec(0), loc.AtVec(1)
	}

	sigma := mat.NewSymDense(dim, nil)
	for i, a := range names {
		for j := i; j < n; j++ {
			block, err := params.PosOnlyBlock(a, names[j])
			if err != nil {
				return 0, err
			}
			for r := 0; r < prior.PosDim; r++ {
				for c := 0; c < prior.PosDim; c++ {
					row, col := 2*i+r, 2*j+c
					if row > col {
						// Lower triangle of a diagonal block; SetSym
						// already wrote its mirror.
						continue
					}
					sigma.SetSym(row, col, block.At(r, c)+tcov.At(r, c))
				}
			}
		}
	}

	dist, ok := distmv.NewNormal(mu, sigma, nil)
	if !ok {
		return 0, fmt.Errorf("%w: likelihood covariance for target %d and group %s is not positive definite",
			faults.ErrSingularFusion, target, g.Sensors())
	}
	v := dist.Prob(x)

	cache.put(key, target, v)
	return v, nil
}
