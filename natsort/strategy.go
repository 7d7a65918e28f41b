package natsort

import "slices"

// Strategy names a comparator that callers can select at runtime, for
// example from a query parameter.
type Strategy string

const (
	// ByName orders by name only.
	ByName Strategy = "names"
	// ByFloor orders by library, order, then name.
	ByFloor Strategy = "floors"
)

// Comparator orders two floors.
type Comparator func(a, b Floor) int

var strategies = map[Strategy]Comparator{
	ByName:  func(a, b Floor) int { return CompareNames(a, b) },
	ByFloor: CompareFloors,
}

// Strategies returns the known strategy names in sorted order.
func Strategies() []Strategy {
	out := make([]Strategy, 0, len(strategies))
	for s := range strategies {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Lookup returns the comparator registered under name.
func Lookup(name Strategy) (Comparator, bool) {
	c, ok := strategies[name]
	return c, ok
}

// SortBy sorts s in place with the given comparator.
func SortBy[S ~[]E, E Floor](s S, c Comparator) {
	slices.SortFunc(s, func(a, b E) int { return c(a, b) })
}
