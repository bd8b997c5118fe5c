package prior

import (
	"maps"
	"slices"
)

// Epsilon is returned for any prior that is absent from its table, or
// stored as zero. Keeping every prior strictly positive means a zero
// proposal total or exact probability always signals a bug.
const Epsilon = 1e-9

// SubsetPriors maps sensor subsets to probabilities.
type SubsetPriors struct {
	m map[string]float64
}

// NewSubsetPriors returns an empty table.
func NewSubsetPriors() *SubsetPriors {
	return &SubsetPriors{m: make(map[string]float64)}
}

// Set stores p for s, replacing any previous value.
func (t *SubsetPriors) Set(s SensorSet, p float64) {
	t.m[s.Key()] = p
}

// Has reports whether s was explicitly stored.
func (t *SubsetPriors) Has(s SensorSet) bool {
	if t == nil {
		return false
	}
	_, ok := t.m[s.Key()]
	return ok
}

// Lookup returns the stored prior for s, or Epsilon when s is absent or
// its stored value is not positive.
func (t *SubsetPriors) Lookup(s SensorSet) float64 {
	if t == nil {
		return Epsilon
	}
	if p, ok := t.m[s.Key()]; ok && p > 0 {
		return p
	}
	return Epsilon
}

// Len returns the number of stored subsets.
func (t *SubsetPriors) Len() int {
	if t == nil {
		return 0
	}
	return len(t.m)
}

// CountPriors maps a per-frame group count to its probability.
type CountPriors struct {
	m map[int]float64
}

// NewCountPriors returns an empty table.
func NewCountPriors() *CountPriors {
	return &CountPriors{m: make(map[int]float64)}
}

// Set stores p for count n.
func (t *CountPriors) Set(n int, p float64) {
	t.m[n] = p
}

// Lookup returns the stored prior for n, or Epsilon when n is absent or
// its stored value is not positive.
func (t *CountPriors) Lookup(n int) float64 {
	if t == nil {
		return Epsilon
	}
	if p, ok := t.m[n]; ok && p > 0 {
		return p
	}
	return Epsilon
}

// Counts returns the stored counts in ascending order. Sweeps over the
// table iterate in this order so floating-point sums are reproducible.
func (t *CountPriors) Counts() []int {
	if t == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(t.m))
}

// Raw returns the stored value for n without the epsilon floor.
func (t *CountPriors) Raw(n int) float64 {
	if t == nil {
		return 0
	}
	return t.m[n]
}
