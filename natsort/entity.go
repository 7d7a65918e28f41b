package natsort

import (
	"cmp"
	"slices"
)

// Named is anything ordered by an optional name.
type Named interface {
	// SortName returns the name and whether one is present.
	SortName() (string, bool)
}

// Floor is a Named entity that may carry an explicit order and may belong
// to a Named parent, such as a floor within a library.
type Floor interface {
	Named
	// SortOrder returns the explicit order and whether one is present.
	SortOrder() (int64, bool)
	// SortLibrary returns the parent, or nil if there is none.
	SortLibrary() Named
}

// CompareNames orders two entities by name, absent names last.
func CompareNames(a, b Named) int {
	return CompareOptional(nameOf(a), nameOf(b))
}

// CompareFloors orders floors by library name, then by order, then by
// their own name. Floors without a library sort after those with one, and
// floors without an order sink to the bottom of their library.
func CompareFloors(a, b Floor) int {
	if c := CompareOptional(nameOf(a.SortLibrary()), nameOf(b.SortLibrary())); c != 0 {
		return c
	}
	if c := compareOrders(a, b); c != 0 {
		return c
	}
	return CompareNames(a, b)
}

// compareOrders treats a missing order as positive infinity.
func compareOrders(a, b Floor) int {
	oa, okA := a.SortOrder()
	ob, okB := b.SortOrder()
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return cmp.Compare(oa, ob)
}

// nameOf returns n's name, or nil for a nil entity or an absent name.
func nameOf(n Named) *string {
	if n == nil {
		return nil
	}
	s, ok := n.SortName()
	if !ok {
		return nil
	}
	return &s
}

// SortNames sorts s in place with CompareNames.
func SortNames[S ~[]E, E Named](s S) {
	slices.SortFunc(s, func(a, b E) int { return CompareNames(a, b) })
}

// SortFloors sorts s in place with CompareFloors.
func SortFloors[S ~[]E, E Floor](s S) {
	slices.SortFunc(s, func(a, b E) int { return CompareFloors(a, b) })
}
