package rbpf

// cacheKey identifies a (detection group content, target index) pair.
type cacheKey struct {
	group  string
	target int
}

// LikelihoodCache memoises association likelihoods for one particle.
//
// Entries are keyed by group content and target index, so they are only
// valid while the particle's target list is unchanged. SampleAndReweight
// clears the cache at the start of every frame; drivers calling the lower
// level functions directly must call Clear between frames.
type LikelihoodCache struct {
	m      map[cacheKey]float64
	hits   int
	misses int
}

// NewLikelihoodCache returns an empty cache.
func NewLikelihoodCache() *LikelihoodCache {
	return &LikelihoodCache{m: make(map[cacheKey]float64)}
}

func (c *LikelihoodCache) get(group string, target int) (float64, bool) {
	v, ok := c.m[cacheKey{group, target}]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *LikelihoodCache) put(group string, target int, v float64) {
	c.m[cacheKey{group, target}] = v
}

// Len returns the number of cached likelihoods.
func (c *LikelihoodCache) Len() int {
	return len(c.m)
}

// Stats returns cache hit and miss counts since the last Clear.
func (c *LikelihoodCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}

// Clear drops every entry and resets the counters.
func (c *LikelihoodCache) Clear() {
	clear(c.m)
	c.hits, c.misses = 0, 0
}
