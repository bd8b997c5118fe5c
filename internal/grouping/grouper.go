package grouping

import (
	"fmt"

	"github.com/afcarl/rbpf-fireworks/internal/assign"
	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/geom"
)

// DefaultGateOverlap is the minimum union overlap for a detection to join
// an existing group.
const DefaultGateOverlap = 0.5

// Grouper accumulates one frame's detection groups, one sensor batch at a
// time. Batches must be added in a fixed sensor order for results to be
// reproducible: a group formed by an early sensor attracts detections from
// later ones.
type Grouper struct {
	// GateOverlap is the minimum best-overlap for a feasible match.
	GateOverlap float64

	groups      []*Group
	sensors     map[string]bool
	contributed int
	inserted    int
}

// NewGrouper returns an empty grouper gated at DefaultGateOverlap.
func NewGrouper() *Grouper {
	return &Grouper{
		GateOverlap: DefaultGateOverlap,
		sensors:     make(map[string]bool),
	}
}

// Add matches one sensor's detections against the current groups.
//
// The cost of pairing detection i with group j is 1 minus the best overlap
// between i and any detection already in j; pairs whose best overlap falls
// below GateOverlap are forbidden. After a minimum-cost assignment every
// matched detection joins its group under sensor and every unmatched one
// starts a new singleton group.
func (gr *Grouper) Add(sensor string, dets []geom.Box) error {
	if gr.sensors[sensor] {
		return fmt.Errorf("%w: sensor %s already grouped this frame", faults.ErrConsistencyViolation, sensor)
	}
	gr.sensors[sensor] = true
	if len(dets) == 0 {
		return nil
	}

	nGroups := len(gr.groups)
	cost := make([][]float64, len(dets))
	for i, det := range dets {
		cost[i] = make([]float64, nGroups)
		for j, g := range gr.groups {
			c, err := gr.cost(det, g)
			if err != nil {
				return err
			}
			cost[i][j] = c
		}
	}

	matched := assign.Hungarian(cost)
	placed := 0
	for i, j := range matched {
		if j < 0 || cost[i][j] >= assign.Forbidden {
			continue
		}
		// Re-derive the cost against the group as it stood when the
		// matrix was built; the group is unchanged until the insert below.
		check, err := gr.cost(dets[i], gr.groups[j])
		if err != nil {
			return err
		}
		if check != cost[i][j] {
			return fmt.Errorf("%w: re-derived cost %g != matched cost %g for %s detection %d",
				faults.ErrConsistencyViolation, check, cost[i][j], sensor, i)
		}
		if err := gr.groups[j].Add(sensor, dets[i]); err != nil {
			return err
		}
		placed++
	}
	for i, j := range matched {
		if j >= 0 && cost[i][j] < assign.Forbidden {
			continue
		}
		gr.groups = append(gr.groups, NewGroup(sensor, dets[i]))
		placed++
	}

	if placed != len(dets) {
		return fmt.Errorf("%w: placed %d of %d %s detections", faults.ErrConsistencyViolation, placed, len(dets), sensor)
	}
	gr.contributed += len(dets)
	gr.inserted += placed
	return nil
}

func (gr *Grouper) cost(det geom.Box, g *Group) (float64, error) {
	best, err := g.BestOverlap(det)
	if err != nil {
		return 0, err
	}
	if best < gr.GateOverlap {
		return assign.Forbidden, nil
	}
	return 1 - best, nil
}

// Groups freezes and returns the groups in creation order.
func (gr *Grouper) Groups() []*Group {
	for _, g := range gr.groups {
		g.Freeze()
	}
	return gr.groups
}

// Detections returns the number of detections contributed so far.
func (gr *Grouper) Detections() int {
	return gr.contributed
}

// Check verifies that every contributed detection sits in exactly one
// group slot.
func (gr *Grouper) Check() error {
	total := 0
	for _, g := range gr.groups {
		total += g.Len()
	}
	if total != gr.contributed || gr.inserted != gr.contributed {
		return fmt.Errorf("%w: %d detections contributed, %d inserted, %d in groups",
			faults.ErrConsistencyViolation, gr.contributed, gr.inserted, total)
	}
	return nil
}

// GroupFrame groups a whole frame. Sensors are processed in the order of
// sensors; batches for sensors not listed are ignored.
func GroupFrame(sensors []string, batches map[string][]geom.Box) ([]*Group, error) {
	gr := NewGrouper()
	for _, s := range sensors {
		if err := gr.Add(s, batches[s]); err != nil {
			return nil, err
		}
	}
	if err := gr.Check(); err != nil {
		return nil, err
	}
	return gr.Groups(), nil
}
