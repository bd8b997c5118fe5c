// Package grouping builds cross-sensor detection groups: sets of per-sensor
// detections believed to come from the same physical source in one frame.
package grouping

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/geom"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

// Group maps sensor names to one detection each. A Group grows while a
// frame is being grouped and is frozen before association sampling.
type Group struct {
	dets   map[string]geom.Box
	frozen bool
	key    string
}

// NewGroup returns a group holding one detection from sensor.
func NewGroup(sensor string, det geom.Box) *Group {
	return &Group{dets: map[string]geom.Box{sensor: det}}
}

// Add inserts det under sensor. A sensor may contribute at most one
// detection to a group, and frozen groups reject insertions.
func (g *Group) Add(sensor string, det geom.Box) error {
	if g.frozen {
		return fmt.Errorf("%w: group %s is frozen", faults.ErrConsistencyViolation, g.Sensors())
	}
	if _, ok := g.dets[sensor]; ok {
		return fmt.Errorf("%w: sensor %s already in group %s", faults.ErrConsistencyViolation, sensor, g.Sensors())
	}
	g.dets[sensor] = det
	return nil
}

// Freeze makes the group immutable. A frozen group is safe to share
// read-only between goroutines.
func (g *Group) Freeze() {
	if g.frozen {
		return
	}
	g.key = g.fingerprint()
	g.frozen = true
}

// Frozen reports whether Freeze has been called.
func (g *Group) Frozen() bool {
	return g.frozen
}

// Len returns the number of sensors (and detections) in the group.
func (g *Group) Len() int {
	return len(g.dets)
}

// Detection returns the detection contributed by sensor.
func (g *Group) Detection(sensor string) (geom.Box, bool) {
	b, ok := g.dets[sensor]
	return b, ok
}

// Sensors returns the set of sensors present in the group.
func (g *Group) Sensors() prior.SensorSet {
	names := make([]string, 0, len(g.dets))
	for name := range g.dets {
		names = append(names, name)
	}
	return prior.NewSensorSet(names...)
}

// SensorNames returns the sensors present in the group in sorted order.
// Every computation that stacks per-sensor quantities uses this order.
func (g *Group) SensorNames() []string {
	names := make([]string, 0, len(g.dets))
	for name := range g.dets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// BestOverlap returns the largest union overlap between det and any
// detection already in the group.
func (g *Group) BestOverlap(det geom.Box) (float64, error) {
	best := 0.0
	for _, name := range g.SensorNames() {
		o, err := geom.Overlap(det, g.dets[name], geom.CriterionUnion)
		if err != nil {
			return 0, err
		}
		best = max(best, o)
	}
	return best, nil
}

// Key returns a fingerprint of the group's content: sensor names and
// detection values. Groups with identical content share a key, which is
// what the likelihood cache relies on.
func (g *Group) Key() string {
	if g.frozen {
		return g.key
	}
	return g.fingerprint()
}

func (g *Group) fingerprint() string {
	var sb strings.Builder
	for _, name := range g.SensorNames() {
		d := g.dets[name]
		sb.WriteString(name)
		sb.WriteByte('=')
		for i, v := range d.Slice() {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (g *Group) String() string {
	return g.Key()
}
