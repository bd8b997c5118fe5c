package rbpf

import (
	"github.com/google/uuid"
)

// Particle is one hypothesis of the set of live targets. It is owned
// exclusively by the outer particle filter; the sampler reads its targets,
// fills its likelihood cache and annotates ExactProbability.
type Particle struct {
	ID      uuid.UUID
	Targets []Target

	// Weight is the running importance weight, maintained by the driver.
	Weight float64
	// ExactProbability is the exact (unnormalised) probability of the
	// outcome sampled on the most recent frame.
	ExactProbability float64

	cache *LikelihoodCache
}

// NewParticle returns a particle with unit weight and an empty cache.
func NewParticle(targets []Target) *Particle {
	return &Particle{
		ID:      uuid.New(),
		Targets: targets,
		Weight:  1,
		cache:   NewLikelihoodCache(),
	}
}

// Cache returns the particle's association likelihood cache, creating it
// on first use.
func (p *Particle) Cache() *LikelihoodCache {
	if p.cache == nil {
		p.cache = NewLikelihoodCache()
	}
	return p.cache
}
