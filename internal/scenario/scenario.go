// Package scenario loads replayable inputs for the association sampler:
// the targets every particle starts with and the per-frame detections.
package scenario

import (
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/afcarl/rbpf-fireworks/internal/config"
	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/fsutil"
	"github.com/afcarl/rbpf-fireworks/internal/geom"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf"
)

// TargetSpec is one initial target as written in the file.
type TargetSpec struct {
	Mean       []float64   `json:"mean" yaml:"mean"`
	Covariance [][]float64 `json:"covariance" yaml:"covariance"`
	DeathProb  float64     `json:"death_prob" yaml:"death_prob"`
	Offscreen  bool        `json:"offscreen" yaml:"offscreen"`
}

// FrameSpec is one frame as written in the file. Detections are [x, y, w, h]
// center-form boxes keyed by sensor name.
type FrameSpec struct {
	ID         uint64                 `json:"id" yaml:"id"`
	Detections map[string][][]float64 `json:"detections" yaml:"detections"`
}

// File is the on-disk scenario schema.
type File struct {
	InitialTargets []TargetSpec `json:"initial_targets" yaml:"initial_targets"`
	Frames         []FrameSpec  `json:"frames" yaml:"frames"`
}

// Scenario is a validated, decoded scenario.
type Scenario struct {
	initial []rbpf.TargetState
	Frames  []rbpf.Frame
}

// Load reads a JSON or YAML scenario. Detections for sensors not listed in
// sensors are rejected; pass nil to accept any sensor.
func Load(fsys fsutil.FileSystem, path string, sensors []string) (*Scenario, error) {
	data, err := fsutil.ReadLimited(fsys, path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := config.Decode(path, data, &f); err != nil {
		return nil, err
	}
	s, err := f.Scenario(sensors)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return s, nil
}

// Scenario validates f and converts it.
func (f *File) Scenario(sensors []string) (*Scenario, error) {
	s := &Scenario{
		initial: make([]rbpf.TargetState, 0, len(f.InitialTargets)),
		Frames:  make([]rbpf.Frame, 0, len(f.Frames)),
	}
	for i, ts := range f.InitialTargets {
		t, err := ts.state()
		if err != nil {
			return nil, fmt.Errorf("initial target %d: %w", i, err)
		}
		s.initial = append(s.initial, t)
	}

	known := make(map[string]bool, len(sensors))
	for _, name := range sensors {
		known[name] = true
	}
	for i, spec := range f.Frames {
		id := spec.ID
		if id == 0 {
			id = uint64(i + 1)
		}
		frame := rbpf.Frame{ID: id, Batches: make(map[string][]geom.Box, len(spec.Detections))}
		for _, name := range slices.Sorted(maps.Keys(spec.Detections)) {
			if sensors != nil && !known[name] {
				return nil, fmt.Errorf("%w: frame %d has detections from unknown sensor %q", faults.ErrInvalidArgument, id, name)
			}
			for j, raw := range spec.Detections[name] {
				b, err := geom.BoxFromSlice(raw)
				if err != nil {
					return nil, fmt.Errorf("frame %d sensor %s detection %d: %w", id, name, j, err)
				}
				frame.Batches[name] = append(frame.Batches[name], b)
			}
		}
		s.Frames = append(s.Frames, frame)
	}
	return s, nil
}

func (ts TargetSpec) state() (rbpf.TargetState, error) {
	if len(ts.Mean) != prior.StateDim {
		return rbpf.TargetState{}, fmt.Errorf("%w: mean has length %d, want %d", faults.ErrShapeMismatch, len(ts.Mean), prior.StateDim)
	}
	if len(ts.Covariance) != prior.StateDim {
		return rbpf.TargetState{}, fmt.Errorf("%w: covariance has %d rows, want %d", faults.ErrShapeMismatch, len(ts.Covariance), prior.StateDim)
	}
	if ts.DeathProb < 0 || ts.DeathProb > 1 {
		return rbpf.TargetState{}, fmt.Errorf("%w: death_prob %g outside [0,1]", faults.ErrInvalidArgument, ts.DeathProb)
	}
	for i, row := range ts.Covariance {
		if len(row) != prior.StateDim {
			return rbpf.TargetState{}, fmt.Errorf("%w: covariance row %d has %d columns", faults.ErrShapeMismatch, i, len(row))
		}
	}
	p := mat.NewSymDense(prior.StateDim, nil)
	for i, row := range ts.Covariance {
		for j := i; j < prior.StateDim; j++ {
			if row[j] != ts.Covariance[j][i] {
				return rbpf.TargetState{}, fmt.Errorf("%w: covariance is not symmetric at (%d,%d)", faults.ErrInvalidArgument, i, j)
			}
			p.SetSym(i, j, row[j])
		}
	}
	return rbpf.TargetState{
		X:         mat.NewVecDense(prior.StateDim, append([]float64(nil), ts.Mean...)),
		P:         p,
		Death:     ts.DeathProb,
		OffScreen: ts.Offscreen,
	}, nil
}

// Targets returns a fresh deep copy of the initial targets, so every
// particle can own and mutate its own.
func (s *Scenario) Targets() []rbpf.Target {
	out := make([]rbpf.Target, len(s.initial))
	for i, t := range s.initial {
		out[i] = &rbpf.TargetState{
			X:         mat.VecDenseCopyOf(t.X),
			P:         mat.NewSymDense(prior.StateDim, append([]float64(nil), t.P.RawSymmetric().Data...)),
			Death:     t.Death,
			OffScreen: t.OffScreen,
		}
	}
	return out
}
