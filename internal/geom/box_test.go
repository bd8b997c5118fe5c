package geom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
)

func TestOverlap_Identical(t *testing.T) {
	t.Parallel()

	boxes := []Box{
		{X: 0, Y: 0, W: 1, H: 1},
		{X: 10.5, Y: -3, W: 4, H: 0.25},
		{X: 100, Y: 200, W: 37, H: 81},
	}
	for _, b := range boxes {
		o, err := Overlap(b, b, CriterionUnion)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, o, 1e-12, "box %+v", b)
	}
}

func TestOverlap_Disjoint(t *testing.T) {
	t.Parallel()

	a := Box{X: 0, Y: 0, W: 2, H: 2}
	b := Box{X: 10, Y: 10, W: 2, H: 2}
	o, err := Overlap(a, b, CriterionUnion)
	require.NoError(t, err)
	assert.Equal(t, 0.0, o)

	// Touching edges have zero-width intersection.
	c := Box{X: 2, Y: 0, W: 2, H: 2}
	o, err = Overlap(a, c, CriterionUnion)
	require.NoError(t, err)
	assert.Equal(t, 0.0, o)
}

func TestOverlap_UnionSymmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]Box{
		{{X: 0, Y: 0, W: 4, H: 4}, {X: 1, Y: 1, W: 4, H: 4}},
		{{X: 5, Y: 5, W: 10, H: 2}, {X: 6, Y: 5.5, W: 3, H: 6}},
		{{X: -1, Y: 2, W: 1, H: 8}, {X: -1.2, Y: 1, W: 2, H: 2}},
	}
	for _, p := range pairs {
		ab, err := Overlap(p[0], p[1], CriterionUnion)
		require.NoError(t, err)
		ba, err := Overlap(p[1], p[0], CriterionUnion)
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-12)
	}
}

func TestOverlap_KnownValues(t *testing.T) {
	t.Parallel()

	// a covers [0,4]x[0,4], b covers [2,6]x[2,6]: intersection 4, union 28.
	a := Box{X: 2, Y: 2, W: 4, H: 4}
	b := Box{X: 4, Y: 4, W: 4, H: 4}

	o, err := Overlap(a, b, CriterionUnion)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/28.0, o, 1e-12)

	o, err = Overlap(a, b, CriterionA)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/16.0, o, 1e-12)
}

func TestOverlap_CriterionANotSymmetric(t *testing.T) {
	t.Parallel()

	small := Box{X: 0, Y: 0, W: 2, H: 2}
	large := Box{X: 0, Y: 0, W: 4, H: 4}

	o1, err := Overlap(small, large, CriterionA)
	require.NoError(t, err)
	o2, err := Overlap(large, small, CriterionA)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, o1, 1e-12)
	assert.InDelta(t, 0.25, o2, 1e-12)
}

func TestOverlap_CaseInsensitiveCriterion(t *testing.T) {
	t.Parallel()

	a := Box{X: 0, Y: 0, W: 2, H: 2}
	o, err := Overlap(a, a, Criterion("UNION"))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, o, 1e-12)
}

func TestOverlap_UnknownCriterion(t *testing.T) {
	t.Parallel()

	a := Box{X: 0, Y: 0, W: 2, H: 2}
	_, err := Overlap(a, a, Criterion("b"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrInvalidArgument))
}

func TestBoxFromSlice(t *testing.T) {
	t.Parallel()

	b, err := BoxFromSlice([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, Box{X: 1, Y: 2, W: 3, H: 4}, b)
	assert.Equal(t, []float64{1, 2, 3, 4}, b.Slice())

	_, err = BoxFromSlice([]float64{1, 2, 3})
	assert.ErrorIs(t, err, faults.ErrShapeMismatch)
}
