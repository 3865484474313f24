// Package filter decides which edges a location lookup may snap to.
package filter

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/roadkit/graph"
)

// EdgeFilter accepts or rejects a candidate edge. Implementations must be
// safe for concurrent use when shared between lookups.
type EdgeFilter interface {
	Accept(e graph.Edge) bool
}

// Func adapts a function to EdgeFilter.
type Func func(e graph.Edge) bool

// Accept calls f(e).
func (f Func) Accept(e graph.Edge) bool { return f(e) }

type constant bool

func (c constant) Accept(graph.Edge) bool { return bool(c) }

// All accepts every edge.
func All() EdgeFilter { return constant(true) }

// None rejects every edge.
func None() EdgeFilter { return constant(false) }

type and []EdgeFilter

func (fs and) Accept(e graph.Edge) bool {
	for _, f := range fs {
		if !f.Accept(e) {
			return false
		}
	}
	return true
}

type or []EdgeFilter

func (fs or) Accept(e graph.Edge) bool {
	for _, f := range fs {
		if f.Accept(e) {
			return true
		}
	}
	return false
}

// And accepts an edge when every filter does. And() accepts everything.
func And(fs ...EdgeFilter) EdgeFilter { return and(compact(fs)) }

// Or accepts an edge when any filter does. Or() rejects everything.
func Or(fs ...EdgeFilter) EdgeFilter { return or(compact(fs)) }

// Not inverts f.
func Not(f EdgeFilter) EdgeFilter {
	return Func(func(e graph.Edge) bool { return !f.Accept(e) })
}

func compact(fs []EdgeFilter) []EdgeFilter {
	out := make([]EdgeFilter, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// AllowList accepts only the edge ids in ids. The bitmap must not be
// modified while the filter is in use.
func AllowList(ids *roaring.Bitmap) EdgeFilter {
	return Func(func(e graph.Edge) bool { return e.ID >= 0 && ids.Contains(uint32(e.ID)) })
}

// DenyList rejects the edge ids in ids.
func DenyList(ids *roaring.Bitmap) EdgeFilter {
	return Func(func(e graph.Edge) bool { return e.ID < 0 || !ids.Contains(uint32(e.ID)) })
}

// OrAll returns f, or All if f is nil.
func OrAll(f EdgeFilter) EdgeFilter {
	if f == nil {
		return All()
	}
	return f
}
