package config

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/fsutil"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

const twoSensorYAML = `
sensors: [regionlets, lsvm]
target_emission_priors:
  - {sensors: [], p: 0.2}
  - {sensors: [regionlets], p: 0.2}
  - {sensors: [lsvm], p: 0.1}
  - {sensors: [lsvm, regionlets], p: 0.5}
clutter_group_priors:
  - {sensors: [regionlets], p: 0.6}
  - {sensors: [lsvm], p: 0.4}
clutter_count_priors: {0: 0.7, 1: 0.3}
birth_count_priors: {0: 0.9, 1: 0.1}
pos_only_covariance_blocks:
  - {sensors: [regionlets, regionlets], matrix: [[4, 0], [0, 4]]}
  - {sensors: [regionlets, lsvm], matrix: [[1, 0], [0, 1]]}
  - {sensors: [lsvm, regionlets], matrix: [[1, 0], [0, 1]]}
  - {sensors: [lsvm, lsvm], matrix: [[6, 0], [0, 6]]}
pos_size_inv_covariance_blocks:
  - {sensors: [regionlets, regionlets], matrix: [[0.25, 0, 0, 0], [0, 0.25, 0, 0], [0, 0, 0.1, 0], [0, 0, 0, 0.1]]}
  - {sensors: [regionlets, lsvm], matrix: [[0, 0, 0, 0], [0, 0, 0, 0], [0, 0, 0, 0], [0, 0, 0, 0]]}
  - {sensors: [lsvm, regionlets], matrix: [[0, 0, 0, 0], [0, 0, 0, 0], [0, 0, 0, 0], [0, 0, 0, 0]]}
  - {sensors: [lsvm, lsvm], matrix: [[0.2, 0, 0, 0], [0, 0.2, 0, 0], [0, 0, 0.1, 0], [0, 0, 0, 0.1]]}
noise_mean:
  regionlets: [0, 0, 0, 0]
  lsvm: [1, -1, 0, 0]
projection: [[1, 0, 0, 0], [0, 0, 1, 0]]
birth_likelihood: 0.0001
clutter_likelihood: 0.0002
k_nearest: {enabled: true, k: 3}
prior_scaling: original
`

const oneSensorJSON = `{
  "sensors": ["a"],
  "target_emission_priors": [{"sensors": [], "p": 0.2}, {"sensors": ["a"], "p": 0.8}],
  "clutter_group_priors": [{"sensors": ["a"], "p": 1}],
  "clutter_count_priors": {"0": 0.5, "1": 0.5},
  "birth_count_priors": {"0": 1},
  "pos_only_covariance_blocks": [{"sensors": ["a", "a"], "matrix": [[4, 0], [0, 4]]}],
  "pos_size_inv_covariance_blocks": [{"sensors": ["a", "a"], "matrix": [[0.25, 0, 0, 0], [0, 0.25, 0, 0], [0, 0, 0.1, 0], [0, 0, 0, 0.1]]}],
  "noise_mean": {"a": [0, 0, 0, 0]},
  "projection": [[1, 0, 0, 0], [0, 0, 1, 0]],
  "birth_likelihood": 1e-4,
  "clutter_likelihood": 1e-4
}`

func TestLoadParameters_YAML(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("params.yaml", []byte(twoSensorYAML))

	p, err := LoadParameters(mfs, "params.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"regionlets", "lsvm"}, p.Sensors)
	assert.Equal(t, 0.2, p.SilentPrior())
	assert.Equal(t, 0.5, p.EmissionPrior(prior.NewSensorSet("regionlets", "lsvm")))
	assert.InDelta(t, 0.5/0.8, p.BirthGroupPrior(prior.NewSensorSet("lsvm", "regionlets")), 1e-12)
	assert.Equal(t, 0.3, p.ClutterGroupCountPrior(1))
	assert.Equal(t, prior.Epsilon, p.ClutterGroupCountPrior(2))
	assert.Equal(t, 0.1, p.BirthGroupCountPrior(1))
	assert.True(t, p.KNearest)
	assert.Equal(t, 3, p.K)
	assert.Equal(t, prior.ScalingOriginal, p.Scaling)

	off, err := p.NoiseOffset("lsvm")
	require.NoError(t, err)
	assert.Equal(t, -1.0, off.AtVec(1))

	blk, err := p.PosOnlyBlock("lsvm", "lsvm")
	require.NoError(t, err)
	assert.Equal(t, 6.0, blk.At(1, 1))
}

func TestLoadParameters_JSON(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("params.json", []byte(oneSensorJSON))

	p, err := LoadParameters(mfs, "params.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.Sensors)
	assert.Equal(t, 0.5, p.ClutterGroupCountPrior(0))
	assert.Equal(t, prior.ScalingIgnoreOrderings, p.Scaling)
	assert.False(t, p.KNearest)
}

func TestLoadParameters_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{
			name:    "unknown extension",
			file:    "params.toml",
			content: "sensors = []",
			wantErr: faults.ErrInvalidArgument,
		},
		{
			name:    "unknown scaling",
			file:    "params.yaml",
			content: strings.Replace(twoSensorYAML, "prior_scaling: original", "prior_scaling: corrected_with_score_intervals", 1),
			wantErr: faults.ErrInvalidArgument,
		},
		{
			name:    "probability out of range",
			file:    "params.yaml",
			content: strings.Replace(twoSensorYAML, "{0: 0.9, 1: 0.1}", "{0: 1.5}", 1),
			wantErr: faults.ErrInvalidArgument,
		},
		{
			name:    "bad block shape",
			file:    "params.yaml",
			content: strings.Replace(twoSensorYAML, "projection: [[1, 0, 0, 0], [0, 0, 1, 0]]", "projection: [[1, 0, 0], [0, 0, 1]]", 1),
			wantErr: faults.ErrShapeMismatch,
		},
		{
			name:    "k nearest without k",
			file:    "params.yaml",
			content: strings.Replace(twoSensorYAML, "k: 3}", "k: 0}", 1),
			wantErr: faults.ErrInvalidArgument,
		},
		{
			name:    "unknown sensor in prior",
			file:    "params.yaml",
			content: strings.Replace(twoSensorYAML, "{sensors: [lsvm], p: 0.4}", "{sensors: [radar], p: 0.4}", 1),
			wantErr: faults.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mfs := fsutil.NewMemoryFileSystem()
			mfs.WriteFile(tt.file, []byte(tt.content))
			_, err := LoadParameters(mfs, tt.file)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoadParameters_MalformedYAML(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("params.yml", []byte("sensors: [a\n"))
	_, err := LoadParameters(mfs, "params.yml")
	assert.ErrorContains(t, err, "YAML")
}

func TestLoadParameters_ExampleFile(t *testing.T) {
	t.Parallel()

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	path := filepath.Join(filepath.Dir(file), "..", "..", "config", "params.example.yaml")

	p, err := LoadParameters(fsutil.OSFileSystem{}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"regionlets", "lsvm"}, p.Sensors)
	assert.Equal(t, 0.15, p.SilentPrior())
}
