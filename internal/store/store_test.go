package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "rbpf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.False(t, dirty)
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rbpf.db")
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.CreateRun(context.Background(), Run{ParamsPath: "p.yaml", ScenarioPath: "s.yaml", Particles: 4, Seed: 1})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 4, runs[0].Particles)
	assert.False(t, runs[0].CreatedAt.IsZero())
}

func TestRecordOutcome_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	runID, err := s.CreateRun(ctx, Run{ParamsPath: "p.yaml", ScenarioPath: "s.yaml", Particles: 2, Seed: 42})
	require.NoError(t, err)

	want := []Outcome{
		{
			RunID: runID, FrameID: 1, Particle: 0, ParticleID: uuid.New(), Groups: 2,
			Associations: []string{"target(0)", "clutter"}, Kill: []int{1},
			Likelihood: 0.01, AssocPrior: 0.2, DeathPrior: 0.5, Exact: 0.001, Proposal: 0.4, Multiplier: 0.0025, Weight: 0.0025,
		},
		{
			RunID: runID, FrameID: 1, Particle: 1, ParticleID: uuid.New(),
			Associations: []string{}, Kill: []int{}, Err: "degenerate proposal: proposal total is 0",
		},
	}
	// Insert out of order; Outcomes sorts by frame then particle.
	require.NoError(t, s.RecordOutcome(ctx, want[1]))
	require.NoError(t, s.RecordOutcome(ctx, want[0]))

	got, err := s.Outcomes(ctx, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	other, err := s.Outcomes(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordOutcome_DuplicateRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	runID, err := s.CreateRun(ctx, Run{})
	require.NoError(t, err)

	o := Outcome{RunID: runID, FrameID: 3, Particle: 0, ParticleID: uuid.New()}
	require.NoError(t, s.RecordOutcome(ctx, o))
	assert.Error(t, s.RecordOutcome(ctx, o))
}
