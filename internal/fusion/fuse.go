// Package fusion combines the per-sensor detections of a group into one
// fused measurement by precision-weighted averaging.
package fusion

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/grouping"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

// Fuse returns the fused mean (x, y, w, h) and covariance of g.
//
// Each detection is first corrected by its sensor's noise mean. The
// precision A and information vector b then sum over every ordered sensor
// pair (s1, s2) in the group, including s1 == s2:
//
//	A += Λ(s1,s2)
//	b += z(s1)ᵀ·Λ(s1,s2)
//
// where Λ is the inverse joint noise covariance block. Cross-sensor blocks
// carry the correlation between sensors; a single-sensor group reduces to
// an unfused, offset-corrected measurement. The covariance is A⁻¹ and the
// mean A⁻¹·b.
func Fuse(p *prior.Parameters, g *grouping.Group) (*mat.VecDense, *mat.SymDense, error) {
	names := g.SensorNames()
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("%w: cannot fuse an empty group", faults.ErrConsistencyViolation)
	}

	z := make(map[string]*mat.VecDense, len(names))
	for _, name := range names {
		det, _ := g.Detection(name)
		off, err := p.NoiseOffset(name)
		if err != nil {
			return nil, nil, err
		}
		if off.Len() != prior.DetDim {
			return nil, nil, fmt.Errorf("%w: noise mean for %s has length %d", faults.ErrShapeMismatch, name, off.Len())
		}
		v := mat.NewVecDense(prior.DetDim, det.Slice())
		v.SubVec(v, off)
		z[name] = v
	}

	a := mat.NewDense(prior.DetDim, prior.DetDim, nil)
	b := mat.NewVecDense(prior.DetDim, nil)
	var contrib mat.VecDense
	for _, s1 := range names {
		for _, s2 := range names {
			block, err := p.InvCovBlock(s1, s2)
			if err != nil {
				return nil, nil, err
			}
			a.Add(a, block)
			contrib.MulVec(block.T(), z[s1])
			b.AddVec(b, &contrib)
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, nil, fmt.Errorf("%w: fused precision for %s: %v", faults.ErrSingularFusion, g.Sensors(), err)
	}

	mean := mat.NewVecDense(prior.DetDim, nil)
	mean.MulVec(&inv, b)
	if mean.Len() != prior.DetDim {
		return nil, nil, fmt.Errorf("%w: fused mean has length %d", faults.ErrShapeMismatch, mean.Len())
	}

	return mean, symmetrize(&inv), nil
}

// symmetrize returns (m+mᵀ)/2, removing round-off asymmetry from an
// inverted precision matrix.
func symmetrize(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}

// Fused is the fused measurement of one group.
type Fused struct {
	Mean *mat.VecDense
	Cov  *mat.SymDense
}

// Position returns the fused center (x, y).
func (f Fused) Position() (x, y float64) {
	return f.Mean.AtVec(0), f.Mean.AtVec(1)
}

// FuseAll fuses every group, preserving order.
func FuseAll(p *prior.Parameters, groups []*grouping.Group) ([]Fused, error) {
	out := make([]Fused, len(groups))
	for i, g := range groups {
		mean, cov, err := Fuse(p, g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		out[i] = Fused{Mean: mean, Cov: cov}
	}
	return out, nil
}
