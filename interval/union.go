package interval

import (
	"math"
	"sort"
)

// This file represents an interval-union as a []PosType containing a
// sorted sequence of interval-endpoints: the (0-based) start of interval #k
// is in element [2k] and its end is in element [2k+1].
//
// For example, given the intervals
//   [5, 15)
//   [7, 17)
//   [20, 25)
// the interval-union would be
//   [5, 17) U [20, 25)
// so the sorted sequence of endpoints would be
//   {5, 17, 20, 25}.

// PosType is the type used to represent interval coordinates.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// Span is a half-open interval [Start, End).
type Span struct {
	Start, End PosType
}

// Union is a set of disjoint, non-touching intervals on a single contig.
// The zero value is the empty set.
type Union struct {
	endpoints []PosType
}

// NewUnion merges spans, given in any order. Empty spans are dropped.
func NewUnion(spans []Span) Union {
	sorted := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.End > s.Start {
			sorted = append(sorted, s)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	var endpoints []PosType
	for _, s := range sorted {
		n := len(endpoints)
		if n > 0 && s.Start <= endpoints[n-1] {
			if s.End > endpoints[n-1] {
				endpoints[n-1] = s.End
			}
			continue
		}
		endpoints = append(endpoints, s.Start, s.End)
	}
	return Union{endpoints: endpoints}
}

// searchPosType returns the number of endpoints <= x.
func (u Union) searchPosType(x PosType) int {
	return sort.Search(len(u.endpoints), func(i int) bool { return u.endpoints[i] > x })
}

// Len returns the number of disjoint intervals.
func (u Union) Len() int { return len(u.endpoints) / 2 }

// Spans returns the disjoint intervals in increasing order.
func (u Union) Spans() []Span {
	out := make([]Span, u.Len())
	for i := range out {
		out[i] = Span{u.endpoints[2*i], u.endpoints[2*i+1]}
	}
	return out
}

// Size returns the number of positions in the union.
func (u Union) Size() int {
	n := 0
	for i := 0; i < len(u.endpoints); i += 2 {
		n += int(u.endpoints[i+1] - u.endpoints[i])
	}
	return n
}

// Contains checks whether [pos, pos+1) is contained in the union.
func (u Union) Contains(pos PosType) bool {
	return u.searchPosType(pos)&1 == 1
}

// Intersects checks whether [start, end) shares a position with the union.
// It returns false for empty intervals.
func (u Union) Intersects(start, end PosType) bool {
	if start >= end {
		return false
	}
	idx := u.searchPosType(start)
	if idx&1 == 1 {
		return true
	}
	return idx < len(u.endpoints) && u.endpoints[idx] < end
}
