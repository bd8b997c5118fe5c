// Package debug provides instrumentation for the association sampler.
// The Collector captures sampler internals (per-group proposal
// distributions, drawn outcomes, death draws) for tuning and tests.
package debug

// Pre-allocation capacities for debug frame slices.
const (
	defaultProposalCapacity = 16 // typical detection groups per frame
	defaultDeathCapacity    = 16 // typical living targets per particle
)

// Collector accumulates debug artifacts during a single particle's pass
// over one frame. A Collector is not safe for concurrent use: give each
// particle its own.
//
// Call BeginFrame, let the sampler call the Record methods, then Emit at
// frame completion.
type Collector struct {
	enabled bool
	current *Frame
}

// Frame contains all debug artifacts for one particle and frame.
type Frame struct {
	FrameID uint64

	// Proposals holds one record per detection group, in group order.
	Proposals []ProposalRecord

	// Deaths holds one record per living target, in target order.
	Deaths []DeathRecord
}

// ProposalRecord captures the categorical proposal built for one group.
type ProposalRecord struct {
	Group         int       // index of the group in the frame
	Sensors       string    // sensor subset of the group, e.g. {a,b}
	Candidates    []int     // candidate target indices, in proposal order
	Probabilities []float64 // normalised; len(Candidates)+2 (birth, clutter last)
	Drawn         int       // index into Probabilities
	Births        int       // birth count before this draw
	Clutter       int       // clutter count before this draw
	Remaining     int       // groups left including this one
}

// DeathRecord captures the death decision for one target.
type DeathRecord struct {
	Target     int
	Offscreen  bool
	Associated bool
	DeathProb  float64
	Killed     bool
}

// NewCollector creates a collector that's initially disabled.
// Call SetEnabled(true) to begin collecting artifacts.
func NewCollector() *Collector {
	return &Collector{}
}

// SetEnabled controls whether the collector records artifacts.
// When disabled, all Record calls are no-ops.
func (c *Collector) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// IsEnabled returns true if the collector is actively recording. It is
// safe to call on a nil Collector.
func (c *Collector) IsEnabled() bool {
	return c != nil && c.enabled
}

// BeginFrame initialises collection for a new frame.
func (c *Collector) BeginFrame(frameID uint64) {
	if !c.IsEnabled() {
		return
	}
	c.current = &Frame{
		FrameID:   frameID,
		Proposals: make([]ProposalRecord, 0, defaultProposalCapacity),
		Deaths:    make([]DeathRecord, 0, defaultDeathCapacity),
	}
}

// RecordProposal captures one group's proposal distribution and draw.
// The slices are copied.
func (c *Collector) RecordProposal(rec ProposalRecord) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	rec.Candidates = append([]int(nil), rec.Candidates...)
	rec.Probabilities = append([]float64(nil), rec.Probabilities...)
	c.current.Proposals = append(c.current.Proposals, rec)
}

// RecordDeath captures the death decision for one target.
func (c *Collector) RecordDeath(rec DeathRecord) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	c.current.Deaths = append(c.current.Deaths, rec)
}

// Emit returns the accumulated frame and prepares for the next one.
// Returns nil if collection is disabled or no frame was begun.
func (c *Collector) Emit() *Frame {
	if !c.IsEnabled() || c.current == nil {
		return nil
	}
	frame := c.current
	c.current = nil
	return frame
}

// Reset clears any pending artifacts without emitting them.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.current = nil
}
