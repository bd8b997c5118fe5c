package rbpf

import (
	"fmt"
	"math"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
	"github.com/afcarl/rbpf-fireworks/internal/grouping"
	"github.com/afcarl/rbpf-fireworks/internal/prior"
)

// Weights breaks down the importance weight update of one particle.
type Weights struct {
	Likelihood float64
	AssocPrior float64
	DeathPrior float64

	// Exact = Likelihood · AssocPrior · DeathPrior.
	Exact float64
	// Proposal = association proposal · death proposal.
	Proposal float64
	// Multiplier = Exact / Proposal.
	Multiplier float64
}

// Likelihood multiplies, per group, the likelihood of its association.
// A birth or clutter group contributes its constant likelihood once,
// whatever its size.
func Likelihood(p *Particle, params *prior.Parameters, groups []*grouping.Group, assoc []Association) (float64, error) {
	if len(assoc) != len(groups) {
		return 0, fmt.Errorf("%w: %d associations for %d groups", faults.ErrConsistencyViolation, len(assoc), len(groups))
	}
	l := 1.0
	for i, a := range assoc {
		switch a.Kind {
		case KindBirth:
			l *= params.BirthLikelihood
		case KindClutter:
			l *= params.ClutterLikelihood
		default:
			v, err := AssocLikelihood(p, params, groups[i], a.Target)
			if err != nil {
				return 0, err
			}
			l *= v
		}
	}
	return l, nil
}

// AssocPrior is the prior probability of the associations given living
// targets before this frame.
func AssocPrior(params *prior.Parameters, groups []*grouping.Group, assoc []Association, living int) (float64, error) {
	if len(assoc) != len(groups) {
		return 0, fmt.Errorf("%w: %d associations for %d groups", faults.ErrConsistencyViolation, len(assoc), len(groups))
	}
	if err := checkAssociatedOnce(assoc, living); err != nil {
		return 0, err
	}

	observed, births, clutter := 0, 0, 0
	p := 1.0
	for i, a := range assoc {
		s := groups[i].Sensors()
		switch a.Kind {
		case KindTarget:
			observed++
			p *= params.EmissionPrior(s)
		case KindBirth:
			births++
			p *= params.BirthGroupPrior(s)
		case KindClutter:
			clutter++
			p *= params.ClutterGroupPrior(s)
		}
	}
	p *= math.Pow(params.SilentPrior(), float64(living-observed))
	p *= params.BirthGroupCountPrior(births) * params.ClutterGroupCountPrior(clutter)

	if params.Scaling == prior.ScalingOriginal {
		n, err := prior.CountOrderings(len(groups), observed, births, clutter)
		if err != nil {
			return 0, err
		}
		p /= n
	}
	return p, nil
}

// DeathPrior multiplies 1−d for surviving targets and d for killed ones,
// over the targets alive before sampling.
func DeathPrior(targets []Target, deaths *Deaths) float64 {
	p := 1.0
	for i, t := range targets {
		if deaths.Killed(i) {
			p *= t.DeathProb()
		} else {
			p *= 1 - t.DeathProb()
		}
	}
	return p
}

// Reweight computes the exact probability of the sampled outcome and the
// importance weight multiplier.
func Reweight(p *Particle, params *prior.Parameters, groups []*grouping.Group, prop *Proposal, deaths *Deaths) (*Weights, error) {
	lik, err := Likelihood(p, params, groups, prop.Associations)
	if err != nil {
		return nil, err
	}
	ap, err := AssocPrior(params, groups, prop.Associations, len(p.Targets))
	if err != nil {
		return nil, err
	}
	w := &Weights{
		Likelihood: lik,
		AssocPrior: ap,
		DeathPrior: DeathPrior(p.Targets, deaths),
		Proposal:   prop.Probability * deaths.Probability,
	}
	w.Exact = w.Likelihood * w.AssocPrior * w.DeathPrior

	if w.Exact == 0 {
		return nil, fmt.Errorf("%w: exact probability is zero (likelihood=%g prior=%g death=%g)",
			faults.ErrDegenerateProposal, w.Likelihood, w.AssocPrior, w.DeathPrior)
	}
	if w.Proposal == 0 {
		return nil, fmt.Errorf("%w: proposal probability is zero", faults.ErrDegenerateProposal)
	}
	w.Multiplier = w.Exact / w.Proposal
	return w, nil
}
