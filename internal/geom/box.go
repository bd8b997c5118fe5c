// Package geom provides center-form bounding boxes and their overlap.
package geom

import (
	"fmt"
	"strings"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
)

// Box is an axis-aligned bounding box in center form.
type Box struct {
	X float64 // center x
	Y float64 // center y
	W float64 // width
	H float64 // height
}

// BoxFromSlice builds a Box from [x, y, w, h].
func BoxFromSlice(v []float64) (Box, error) {
	if len(v) != 4 {
		return Box{}, fmt.Errorf("%w: box needs 4 values, got %d", faults.ErrShapeMismatch, len(v))
	}
	return Box{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// Slice returns the box as [x, y, w, h].
func (b Box) Slice() []float64 {
	return []float64{b.X, b.Y, b.W, b.H}
}

// Corners returns the box in corner form (x1, y1, x2, y2).
func (b Box) Corners() (x1, y1, x2, y2 float64) {
	return b.X - b.W/2, b.Y - b.H/2, b.X + b.W/2, b.Y + b.H/2
}

// Area returns W*H computed from the corner form.
func (b Box) Area() float64 {
	x1, y1, x2, y2 := b.Corners()
	return (x2 - x1) * (y2 - y1)
}

// Criterion selects the denominator of Overlap.
type Criterion string

const (
	// CriterionUnion divides the intersection by the union of both boxes.
	CriterionUnion Criterion = "union"
	// CriterionA divides the intersection by the area of the first box,
	// for example when b is a don't-care region.
	CriterionA Criterion = "a"
)

// Overlap returns the intersection of a and b normalised according to c.
// Boxes that do not intersect (zero or negative intersection width or
// height) overlap by exactly 0. Criterion names are case-insensitive.
func Overlap(a, b Box, c Criterion) (float64, error) {
	crit := Criterion(strings.ToLower(string(c)))
	if crit != CriterionUnion && crit != CriterionA {
		return 0, fmt.Errorf("%w: unknown overlap criterion %q", faults.ErrInvalidArgument, string(c))
	}

	ax1, ay1, ax2, ay2 := a.Corners()
	bx1, by1, bx2, by2 := b.Corners()

	w := min(ax2, bx2) - max(ax1, bx1)
	h := min(ay2, by2) - max(ay1, by1)
	if w <= 0 || h <= 0 {
		return 0, nil
	}

	inter := w * h
	areaA := a.Area()
	if crit == CriterionA {
		return inter / areaA, nil
	}
	return inter / (areaA + b.Area() - inter), nil
}
