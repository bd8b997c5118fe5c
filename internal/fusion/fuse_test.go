package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/geom"
	"github.com/afcarl/rbpf-fireworks/internal/grouping"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
	"github.com/afcarl/rbpf-fireworks/internal/testutil"
)

func TestFuse_SingleSensorRecoversMeasurement(t *testing.T) {
	t.Parallel()

	p := testutil.Parameters(t, "a")
	p.NoiseMean["a"] = mat.NewVecDense(4, []float64{1, -2, 0.5, 0})
	block := mat.NewDense(4, 4, []float64{
		0.5, 0.1, 0, 0,
		0.1, 0.25, 0, 0,
		0, 0, 0.2, 0.05,
		0, 0, 0.05, 0.1,
	})
	p.PosSizeInvCov[prior.SensorPair{A: "a", B: "a"}] = block

	g := grouping.NewGroup("a", geom.Box{X: 10, Y: 20, W: 30, H: 40})
	mean, cov, err := Fuse(p, g)
	require.NoError(t, err)

	want := []float64{9, 22, 29.5, 40}
	for i, w := range want {
		assert.InDelta(t, w, mean.AtVec(i), 1e-9, "mean[%d]", i)
	}

	var wantCov mat.Dense
	require.NoError(t, wantCov.Inverse(block))
	assert.True(t, mat.EqualApprox(cov, &wantCov, 1e-9), "covariance should be the inverse block")
}

func TestFuse_IndependentSensorsAverage(t *testing.T) {
	t.Parallel()

	p := testutil.Parameters(t, "a", "b")
	g := grouping.NewGroup("a", geom.Box{X: 10, Y: 10, W: 20, H: 20})
	require.NoError(t, g.Add("b", geom.Box{X: 12, Y: 14, W: 22, H: 18}))

	mean, cov, err := Fuse(p, g)
	require.NoError(t, err)

	// Equal precisions and zero cross blocks: plain average, half variance.
	assert.InDelta(t, 11, mean.AtVec(0), 1e-9)
	assert.InDelta(t, 12, mean.AtVec(1), 1e-9)
	assert.InDelta(t, 21, mean.AtVec(2), 1e-9)
	assert.InDelta(t, 19, mean.AtVec(3), 1e-9)
	assert.InDelta(t, testutil.PosVar/2, cov.At(0, 0), 1e-9)
	assert.InDelta(t, testutil.SizeVar/2, cov.At(3, 3), 1e-9)
}

func TestFuse_CrossBlocksEnterPrecision(t *testing.T) {
	t.Parallel()

	p := testutil.Parameters(t, "a", "b")
	cross := mat.NewDense(4, 4, []float64{
		0.05, 0, 0, 0,
		0, 0.05, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	})
	p.PosSizeInvCov[prior.SensorPair{A: "a", B: "b"}] = cross
	p.PosSizeInvCov[prior.SensorPair{A: "b", B: "a"}] = cross

	g := grouping.NewGroup("a", geom.Box{X: 0, Y: 0, W: 10, H: 10})
	require.NoError(t, g.Add("b", geom.Box{X: 0, Y: 0, W: 10, H: 10}))

	_, cov, err := Fuse(p, g)
	require.NoError(t, err)

	// A[0,0] = 1/4 + 1/4 + 2·0.05 = 0.6.
	assert.InDelta(t, 1/0.6, cov.At(0, 0), 1e-9)
}

func TestFuse_Singular(t *testing.T) {
	t.Parallel()

	p := testutil.Parameters(t, "a")
	p.PosSizeInvCov[prior.SensorPair{A: "a", B: "a"}] = mat.NewDense(4, 4, nil)

	g := grouping.NewGroup("a", geom.Box{X: 0, Y: 0, W: 1, H: 1})
	_, _, err := Fuse(p, g)
	assert.ErrorIs(t, err, faults.ErrSingularFusion)
}

func TestFuse_UnknownSensor(t *testing.T) {
	t.Parallel()

	p := testutil.Parameters(t, "a")
	g := grouping.NewGroup("zz", geom.Box{X: 0, Y: 0, W: 1, H: 1})
	_, _, err := Fuse(p, g)
	assert.ErrorIs(t, err, faults.ErrInvalidArgument)
}

func TestFuseAll_PreservesOrder(t *testing.T) {
	t.Parallel()

	p := testutil.Parameters(t, "a")
	groups := []*grouping.Group{
		grouping.NewGroup("a", geom.Box{X: 1, Y: 1, W: 1, H: 1}),
		grouping.NewGroup("a", geom.Box{X: 5, Y: 7, W: 1, H: 1}),
	}
	fused, err := FuseAll(p, groups)
	require.NoError(t, err)
	require.Len(t, fused, 2)
	x, y := fused[1].Position()
	assert.InDelta(t, 5, x, 1e-12)
	assert.InDelta(t, 7, y, 1e-12)
}
