package rbpf

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/fusion"
	"github.com/afcarl/rbpf-fireworks/internal/grouping"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
	"github.com/afcarl/rbpf-fireworks/internal/rbpf/debug"
)

// Kind is the type of explanation sampled for a detection group.
type Kind int

const (
	KindTarget Kind = iota
	KindBirth
	KindClutter
)

func (k Kind) String() string {
	switch k {
	case KindTarget:
		return "target"
	case KindBirth:
		return "birth"
	case KindClutter:
		return "clutter"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Association explains one detection group. Target is the index into the
// particle's living targets and is only meaningful for KindTarget.
type Association struct {
	Kind   Kind
	Target int
}

// TargetAssoc associates a group with living target i.
func TargetAssoc(i int) Association { return Association{Kind: KindTarget, Target: i} }

// Birth and Clutter are the non-target associations.
var (
	Birth   = Association{Kind: KindBirth, Target: -1}
	Clutter = Association{Kind: KindClutter, Target: -1}
)

func (a Association) String() string {
	if a.Kind == KindTarget {
		return fmt.Sprintf("target(%d)", a.Target)
	}
	return a.Kind.String()
}

// Proposal is the outcome of the sequential association sampler.
type Proposal struct {
	// Associations has one entry per group, in group order.
	Associations []Association
	// Fused carries each group's fused measurement, in group order.
	Fused []fusion.Fused
	// Probability is the product of the drawn outcomes' proposal masses.
	Probability float64
}

// samplerState is threaded through the per-group step. Every draw changes
// it, so groups must be visited in a fixed order.
type samplerState struct {
	births     int
	clutter    int
	remaining  int
	associated map[int]bool
	prob       float64
}

// SampleAssociations draws one association per group, visiting groups in
// order. The proposal for each group is a categorical over the candidate
// targets followed by birth and clutter.
//
// rec may be nil.
func SampleAssociations(p *Particle, params *prior.Parameters, groups []*grouping.Group,
	src rand.Source, rec *debug.Collector,
) (*Proposal, error) {
	if err := checkDeathProbs(p.Targets); err != nil {
		return nil, err
	}
	fused, err := fusion.FuseAll(params, groups)
	if err != nil {
		return nil, err
	}

	st := &samplerState{
		remaining:  len(groups),
		associated: make(map[int]bool),
		prob:       1,
	}
	out := &Proposal{
		Associations: make([]Association, 0, len(groups)),
		Fused:        fused,
	}

	for i, g := range groups {
		a, err := st.step(p, params, groups, i, fused[i], src, rec)
		if err != nil {
			return nil, fmt.Errorf("group %d %s: %w", i, g.Sensors(), err)
		}
		out.Associations = append(out.Associations, a)
	}

	if st.remaining != 0 || len(out.Associations) != len(groups) {
		return nil, fmt.Errorf("%w: %d associations for %d groups, %d remaining",
			faults.ErrConsistencyViolation, len(out.Associations), len(groups), st.remaining)
	}
	if err := checkAssociatedOnce(out.Associations, len(p.Targets)); err != nil {
		return nil, err
	}
	out.Probability = st.prob
	return out, nil
}

// step builds the proposal for group i, draws from it and updates the
// sampler state.
func (st *samplerState) step(p *Particle, params *prior.Parameters, groups []*grouping.Group,
	i int, f fusion.Fused, src rand.Source, rec *debug.Collector,
) (Association, error) {
	g := groups[i]
	sensors := g.Sensors()

	cands, err := candidates(params, p.Targets, f)
	if err != nil {
		return Association{}, err
	}

	masses := make([]float64, len(cands), len(cands)+2)
	emission := params.EmissionPrior(sensors)
	for j, t := range cands {
		if st.associated[t] || p.Targets[t].DeathProb() >= 1 {
			continue
		}
		lik, err := AssocLikelihood(p, params, g, t)
		if err != nil {
			return Association{}, err
		}
		var sum float64
		for _, other := range groups {
			l, err := AssocLikelihood(p, params, other, t)
			if err != nil {
				return Association{}, err
			}
			sum += l
		}
		if sum == 0 {
			continue
		}
		masses[j] = emission * lik / sum
	}

	n := float64(g.Len())
	birth := countMass(params.BirthCount, st.births, st.remaining) *
		params.BirthGroupPrior(sensors) * math.Pow(params.BirthLikelihood, n)
	clutter := countMass(params.ClutterCount, st.clutter, st.remaining) *
		params.ClutterGroupPrior(sensors) * math.Pow(params.ClutterLikelihood, n)
	masses = append(masses, birth, clutter)

	total := floats.Sum(masses)
	if !(total > 0) || math.IsInf(total, 0) {
		return Association{}, fmt.Errorf("%w: proposal total is %g", faults.ErrDegenerateProposal, total)
	}
	if want := expectedProposalLen(params, len(p.Targets)); len(masses) != want {
		return Association{}, fmt.Errorf("%w: proposal has %d outcomes, want %d",
			faults.ErrDegenerateProposal, len(masses), want)
	}
	floats.Scale(1/total, masses)

	drawn := int(distuv.NewCategorical(masses, src).Rand())
	if masses[drawn] == 0 {
		return Association{}, fmt.Errorf("%w: drew outcome %d with zero mass", faults.ErrDegenerateProposal, drawn)
	}

	var a Association
	switch {
	case drawn < len(cands):
		a = TargetAssoc(cands[drawn])
		st.associated[a.Target] = true
	case drawn == len(cands):
		a = Birth
	default:
		a = Clutter
	}

	if traceEnabled() {
		Tracef("particle %s group %d %s: candidates=%v proposal=%v drawn=%s births=%d clutter=%d remaining=%d",
			p.ID, i, sensors, cands, masses, a, st.births, st.clutter, st.remaining)
	}
	rec.RecordProposal(debug.ProposalRecord{
		Group:         i,
		Sensors:       sensors.String(),
		Candidates:    cands,
		Probabilities: masses,
		Drawn:         drawn,
		Births:        st.births,
		Clutter:       st.clutter,
		Remaining:     st.remaining,
	})

	switch a.Kind {
	case KindBirth:
		st.births++
	case KindClutter:
		st.clutter++
	}
	st.prob *= masses[drawn]
	st.remaining--
	return a, nil
}

// countMass sweeps a count prior table and returns the prior mass that one
// more group of this kind is consistent with, given realized groups of
// the kind so far and remaining groups including the current one. The sum
// is seeded with Epsilon so it never vanishes.
func countMass(table *prior.CountPriors, realized, remaining int) float64 {
	m := prior.Epsilon
	for _, n := range table.Counts() {
		extra := min(max(n-realized, 0), remaining)
		m += table.Raw(n) * float64(extra) / float64(remaining)
	}
	return m
}

// candidates returns the target indices considered for a group, in
// ascending index order.
func candidates(params *prior.Parameters, targets []Target, f fusion.Fused) ([]int, error) {
	if !params.KNearest || params.K >= len(targets) {
		out := make([]int, len(targets))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	x, y := f.Position()
	type ranked struct {
		idx  int
		dist float64
	}
	all := make([]ranked, len(targets))
	for i, t := range targets {
		loc, err := projectedPosition(params, t)
		if err != nil {
			return nil, err
		}
		dx, dy := x-loc.AtVec(0), y-loc.AtVec(1)
		all[i] = ranked{idx: i, dist: dx*dx + dy*dy}
	}
	slices.SortFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})

	out := make([]int, params.K)
	for i := range out {
		out[i] = all[i].idx
	}
	slices.Sort(out)
	return out, nil
}

func expectedProposalLen(params *prior.Parameters, living int) int {
	if params.KNearest {
		return min(params.K, living) + 2
	}
	return living + 2
}

// checkAssociatedOnce verifies every target explains at most one group.
func checkAssociatedOnce(assoc []Association, living int) error {
	seen := make(map[int]bool)
	for i, a := range assoc {
		if a.Kind != KindTarget {
			continue
		}
		if a.Target < 0 || a.Target >= living {
			return fmt.Errorf("%w: group %d associated with target %d of %d",
				faults.ErrConsistencyViolation, i, a.Target, living)
		}
		if seen[a.Target] {
			return fmt.Errorf("%w: target %d associated more than once", faults.ErrConsistencyViolation, a.Target)
		}
		seen[a.Target] = true
	}
	return nil
}
