// Package config loads the sampler's model parameters from JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/fsutil"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

// SubsetPrior assigns a probability to a sensor subset. An empty Sensors
// list is the silent (no emission) subset.
type SubsetPrior struct {
	Sensors []string `json:"sensors" yaml:"sensors"`
	P       float64  `json:"p" yaml:"p"`
}

// Block is a covariance block between two sensors.
type Block struct {
	Sensors [2]string   `json:"sensors" yaml:"sensors"`
	Matrix  [][]float64 `json:"matrix" yaml:"matrix"`
}

// KNearest configures candidate gating.
type KNearest struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	K       int  `json:"k" yaml:"k"`
}

// ParamsFile is the on-disk schema of the model parameters. JSON and YAML
// use the same keys.
type ParamsFile struct {
	Sensors []string `json:"sensors" yaml:"sensors"`

	TargetEmissionPriors []SubsetPrior   `json:"target_emission_priors" yaml:"target_emission_priors"`
	ClutterGroupPriors   []SubsetPrior   `json:"clutter_group_priors" yaml:"clutter_group_priors"`
	ClutterCountPriors   map[int]float64 `json:"clutter_count_priors" yaml:"clutter_count_priors"`
	BirthCountPriors     map[int]float64 `json:"birth_count_priors" yaml:"birth_count_priors"`

	PosOnlyCovarianceBlocks    []Block              `json:"pos_only_covariance_blocks" yaml:"pos_only_covariance_blocks"`
	PosSizeInvCovarianceBlocks []Block              `json:"pos_size_inv_covariance_blocks" yaml:"pos_size_inv_covariance_blocks"`
	NoiseMean                  map[string][]float64 `json:"noise_mean" yaml:"noise_mean"`
	Projection                 [][]float64          `json:"projection" yaml:"projection"`

	BirthLikelihood   float64  `json:"birth_likelihood" yaml:"birth_likelihood"`
	ClutterLikelihood float64  `json:"clutter_likelihood" yaml:"clutter_likelihood"`
	KNearest          KNearest `json:"k_nearest" yaml:"k_nearest"`
	PriorScaling      string   `json:"prior_scaling" yaml:"prior_scaling"`
}

// Decode parses data as JSON or YAML, chosen by the extension of name.
func Decode(name string, data []byte, v any) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s as JSON: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s as YAML: %w", name, err)
		}
	default:
		return fmt.Errorf("%w: config file must be .json, .yaml or .yml, got %q", faults.ErrInvalidArgument, ext)
	}
	return nil
}

// LoadParameters reads, validates and converts a parameters file.
func LoadParameters(fsys fsutil.FileSystem, path string) (*prior.Parameters, error) {
	data, err := fsutil.ReadLimited(fsys, path)
	if err != nil {
		return nil, err
	}
	var f ParamsFile
	if err := Decode(path, data, &f); err != nil {
		return nil, err
	}
	p, err := f.Parameters()
	if err != nil {
		return nil, fmt.Errorf("invalid parameters in %s: %w", path, err)
	}
	return p, nil
}

// Validate checks value ranges that the converted Parameters cannot
// express on their own.
func (f *ParamsFile) Validate() error {
	for _, sp := range f.TargetEmissionPriors {
		if err := checkProb("target_emission_priors", sp.P); err != nil {
			return err
		}
	}
	for _, sp := range f.ClutterGroupPriors {
		if err := checkProb("clutter_group_priors", sp.P); err != nil {
			return err
		}
	}
	for n, p := range f.ClutterCountPriors {
		if n < 0 {
			return fmt.Errorf("%w: clutter_count_priors has negative count %d", faults.ErrInvalidArgument, n)
		}
		if err := checkProb("clutter_count_priors", p); err != nil {
			return err
		}
	}
	for n, p := range f.BirthCountPriors {
		if n < 0 {
			return fmt.Errorf("%w: birth_count_priors has negative count %d", faults.ErrInvalidArgument, n)
		}
		if err := checkProb("birth_count_priors", p); err != nil {
			return err
		}
	}
	known := make(map[string]bool, len(f.Sensors))
	for _, s := range f.Sensors {
		known[s] = true
	}
	for _, list := range [][]SubsetPrior{f.TargetEmissionPriors, f.ClutterGroupPriors} {
		for _, sp := range list {
			for _, s := range sp.Sensors {
				if !known[s] {
					return fmt.Errorf("%w: prior references unknown sensor %q", faults.ErrInvalidArgument, s)
				}
			}
		}
	}
	return nil
}

func checkProb(field string, p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1, got %g", faults.ErrInvalidArgument, field, p)
	}
	return nil
}

// Parameters validates f and converts it into prior.Parameters.
func (f *ParamsFile) Parameters() (*prior.Parameters, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	scaling, err := prior.ParseScaling(f.PriorScaling)
	if err != nil {
		return nil, err
	}

	p := &prior.Parameters{
		Sensors:           append([]string(nil), f.Sensors...),
		Emission:          subsetTable(f.TargetEmissionPriors),
		ClutterGroup:      subsetTable(f.ClutterGroupPriors),
		ClutterCount:      countTable(f.ClutterCountPriors),
		BirthCount:        countTable(f.BirthCountPriors),
		PosOnlyCov:        make(map[prior.SensorPair]*mat.Dense),
		PosSizeInvCov:     make(map[prior.SensorPair]*mat.Dense),
		NoiseMean:         make(map[string]*mat.VecDense),
		BirthLikelihood:   f.BirthLikelihood,
		ClutterLikelihood: f.ClutterLikelihood,
		KNearest:          f.KNearest.Enabled,
		K:                 f.KNearest.K,
		Scaling:           scaling,
	}

	if err := fillBlocks(p.PosOnlyCov, f.PosOnlyCovarianceBlocks, prior.PosDim, "pos_only_covariance_blocks"); err != nil {
		return nil, err
	}
	if err := fillBlocks(p.PosSizeInvCov, f.PosSizeInvCovarianceBlocks, prior.DetDim, "pos_size_inv_covariance_blocks"); err != nil {
		return nil, err
	}
	for name, v := range f.NoiseMean {
		if len(v) != prior.DetDim {
			return nil, fmt.Errorf("%w: noise_mean[%s] has length %d, want %d", faults.ErrShapeMismatch, name, len(v), prior.DetDim)
		}
		p.NoiseMean[name] = mat.NewVecDense(prior.DetDim, append([]float64(nil), v...))
	}
	if f.Projection != nil {
		h, err := dense(f.Projection, prior.PosDim, prior.StateDim)
		if err != nil {
			return nil, fmt.Errorf("projection: %w", err)
		}
		p.Projection = h
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func subsetTable(list []SubsetPrior) *prior.SubsetPriors {
	t := prior.NewSubsetPriors()
	for _, sp := range list {
		t.Set(prior.NewSensorSet(sp.Sensors...), sp.P)
	}
	return t
}

func countTable(m map[int]float64) *prior.CountPriors {
	t := prior.NewCountPriors()
	for n, p := range m {
		t.Set(n, p)
	}
	return t
}

func fillBlocks(dst map[prior.SensorPair]*mat.Dense, blocks []Block, n int, field string) error {
	for _, b := range blocks {
		m, err := dense(b.Matrix, n, n)
		if err != nil {
			return fmt.Errorf("%s (%s,%s): %w", field, b.Sensors[0], b.Sensors[1], err)
		}
		dst[prior.SensorPair{A: b.Sensors[0], B: b.Sensors[1]}] = m
	}
	return nil
}

func dense(rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("%w: got %d rows, want %d", faults.ErrShapeMismatch, len(rows), r)
	}
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", faults.ErrShapeMismatch, i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data), nil
}
