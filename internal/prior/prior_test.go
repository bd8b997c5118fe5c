package prior_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
	"github.com/afcarl/rbpf-fireworks/internal/testutil"
)

func TestSensorSet_Canonical(t *testing.T) {
	t.Parallel()

	a := prior.NewSensorSet("lsvm", "regionlets", "lsvm")
	b := prior.NewSensorSet("regionlets", "lsvm")

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, []string{"lsvm", "regionlets"}, a.Names())
	assert.Equal(t, 2, a.Len())
	assert.True(t, a.Contains("lsvm"))
	assert.False(t, a.Contains("mscnn"))
	assert.Equal(t, "{lsvm,regionlets}", a.String())

	var silent prior.SensorSet
	assert.True(t, silent.Empty())
	assert.Equal(t, prior.NewSensorSet().Key(), silent.Key())
}

func TestSensorSet_NamesIsCopy(t *testing.T) {
	t.Parallel()

	s := prior.NewSensorSet("a", "b")
	names := s.Names()
	names[0] = "z"
	assert.Equal(t, []string{"a", "b"}, s.Names())
}

func TestTables_EpsilonFallback(t *testing.T) {
	t.Parallel()

	sub := prior.NewSubsetPriors()
	sub.Set(prior.NewSensorSet("a"), 0.4)
	sub.Set(prior.NewSensorSet("b"), 0)

	assert.Equal(t, 0.4, sub.Lookup(prior.NewSensorSet("a")))
	assert.Equal(t, prior.Epsilon, sub.Lookup(prior.NewSensorSet("b")))
	assert.Equal(t, prior.Epsilon, sub.Lookup(prior.NewSensorSet("a", "b")))
	assert.True(t, sub.Has(prior.NewSensorSet("b")))

	counts := prior.NewCountPriors()
	counts.Set(2, 0.3)
	counts.Set(0, 0.7)
	assert.Equal(t, 0.7, counts.Lookup(0))
	assert.Equal(t, prior.Epsilon, counts.Lookup(5))
	assert.Equal(t, []int{0, 2}, counts.Counts())

	var nilTable *prior.CountPriors
	assert.Equal(t, prior.Epsilon, nilTable.Lookup(0))
	assert.Empty(t, nilTable.Counts())
}

func TestParameters_PriorAccessors(t *testing.T) {
	t.Parallel()

	p := testutil.Parameters(t, "a", "b")

	assert.InDelta(t, 0.2, p.SilentPrior(), 1e-12)
	assert.InDelta(t, 0.6, p.EmissionPrior(prior.NewSensorSet("a", "b")), 1e-12)

	// Birth group prior renormalises by the probability of emitting anything.
	assert.InDelta(t, 0.6/0.8, p.BirthGroupPrior(prior.NewSensorSet("b", "a")), 1e-12)
	assert.InDelta(t, 0.1/0.8, p.BirthGroupPrior(prior.NewSensorSet("a")), 1e-12)
	assert.Equal(t, prior.Epsilon, p.BirthGroupPrior(prior.NewSensorSet("c")))

	assert.InDelta(t, 0.5, p.ClutterGroupPrior(prior.NewSensorSet("a")), 1e-12)
	assert.Equal(t, prior.Epsilon, p.ClutterGroupPrior(prior.NewSensorSet("a", "b")))

	assert.InDelta(t, 0.8, p.BirthGroupCountPrior(0), 1e-12)
	assert.Equal(t, prior.Epsilon, p.BirthGroupCountPrior(7))
	assert.InDelta(t, 0.1, p.ClutterGroupCountPrior(2), 1e-12)
}

func TestParameters_Validate(t *testing.T) {
	t.Parallel()

	t.Run("missing block", func(t *testing.T) {
		t.Parallel()
		p := testutil.Parameters(t, "a", "b")
		delete(p.PosSizeInvCov, prior.SensorPair{A: "a", B: "b"})
		assert.ErrorIs(t, p.Validate(), faults.ErrInvalidArgument)
	})

	t.Run("bad block shape", func(t *testing.T) {
		t.Parallel()
		p := testutil.Parameters(t, "a")
		p.PosOnlyCov[prior.SensorPair{A: "a", B: "a"}] = mat.NewDense(3, 3, nil)
		assert.ErrorIs(t, p.Validate(), faults.ErrShapeMismatch)
	})

	t.Run("silent prior of one", func(t *testing.T) {
		t.Parallel()
		p := testutil.Parameters(t, "a")
		p.Emission.Set(prior.NewSensorSet(), 1)
		assert.ErrorIs(t, p.Validate(), faults.ErrInvalidArgument)
	})

	t.Run("k nearest without k", func(t *testing.T) {
		t.Parallel()
		p := testutil.Parameters(t, "a")
		p.KNearest = true
		assert.ErrorIs(t, p.Validate(), faults.ErrInvalidArgument)
	})

	t.Run("unknown scaling", func(t *testing.T) {
		t.Parallel()
		p := testutil.Parameters(t, "a")
		p.Scaling = "corrected_with_score_intervals"
		assert.ErrorIs(t, p.Validate(), faults.ErrInvalidArgument)
	})

	t.Run("duplicate sensor", func(t *testing.T) {
		t.Parallel()
		p := testutil.Parameters(t, "a")
		p.Sensors = []string{"a", "a"}
		assert.ErrorIs(t, p.Validate(), faults.ErrInvalidArgument)
	})
}

func TestParseScaling(t *testing.T) {
	t.Parallel()

	s, err := prior.ParseScaling("")
	require.NoError(t, err)
	assert.Equal(t, prior.ScalingIgnoreOrderings, s)

	s, err = prior.ParseScaling("original")
	require.NoError(t, err)
	assert.Equal(t, prior.ScalingOriginal, s)

	_, err = prior.ParseScaling("bogus")
	assert.ErrorIs(t, err, faults.ErrInvalidArgument)
}

func TestCountOrderings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		m, tg, b, c int
		want        float64
	}{
		{m: 0, tg: 0, b: 0, c: 0, want: 1},
		{m: 1, tg: 1, b: 0, c: 0, want: 1},
		{m: 3, tg: 1, b: 1, c: 1, want: 6},  // C(3,1)·1!·C(2,1)
		{m: 4, tg: 2, b: 1, c: 1, want: 24}, // C(4,2)·2!·C(2,1)
		{m: 3, tg: 0, b: 0, c: 3, want: 1},
	}
	for _, tt := range tests {
		got, err := prior.CountOrderings(tt.m, tt.tg, tt.b, tt.c)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "m=%d t=%d b=%d c=%d", tt.m, tt.tg, tt.b, tt.c)
	}

	_, err := prior.CountOrderings(3, 1, 1, 0)
	assert.ErrorIs(t, err, faults.ErrConsistencyViolation)
}
