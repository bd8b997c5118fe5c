package prior

import (
	"slices"
	"strings"
)

// keySep never appears in sensor names accepted by the config loader.
const keySep = "\x1f"

// SensorSet is an ordered, deduplicated set of sensor names. It is the key
// of every subset-indexed prior table. The zero value is the empty
// ("silent") set.
type SensorSet struct {
	names []string
	key   string
}

// NewSensorSet returns the set of the given names, sorted and deduplicated.
func NewSensorSet(names ...string) SensorSet {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return SensorSet{names: sorted, key: strings.Join(sorted, keySep)}
}

// Names returns a copy of the sorted sensor names.
func (s SensorSet) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of sensors in the set.
func (s SensorSet) Len() int {
	return len(s.names)
}

// Empty reports whether s is the silent set.
func (s SensorSet) Empty() bool {
	return len(s.names) == 0
}

// Contains reports whether name is a member of s.
func (s SensorSet) Contains(name string) bool {
	_, ok := slices.BinarySearch(s.names, name)
	return ok
}

// Key returns the canonical map key for s.
func (s SensorSet) Key() string {
	return s.key
}

// String renders s as {a,b}.
func (s SensorSet) String() string {
	return "{" + strings.Join(s.names, ",") + "}"
}
