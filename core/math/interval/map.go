// Copyright (C) 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package interval

import (
	"fmt"
	"slices"
	"sort"
)

// Fragment is a span of a Map and the value stored for it.
type Fragment[V comparable] struct {
	Span  U64Span
	Value V
}

// Match is a stored Fragment that overlaps a queried span.
type Match[V comparable] struct {
	Fragment[V]
	// Intersection is the part of the fragment inside the queried span.
	Intersection U64Span
}

// Map maps non-overlapping spans to values.
// Adjacent fragments holding equal values are always merged, so two
// neighbouring fragments of a Map never hold the same value.
//
// Lookups are a binary search, and a mutation only copies the fragments it
// touches plus the slice tail it shifts.
type Map[V comparable] struct {
	extent uint64
	frags  []Fragment[V]
}

// NewMap returns an empty Map that accepts spans ending at or before extent.
func NewMap[V comparable](extent uint64) *Map[V] {
	return &Map[V]{extent: extent}
}

// Extent returns the exclusive upper bound of spans the map accepts.
func (m *Map[V]) Extent() uint64 { return m.extent }

// Len returns the number of fragments in the map.
func (m *Map[V]) Len() int { return len(m.frags) }

// Check returns ErrInvalidRange if s cannot be used with the map.
func (m *Map[V]) Check(s U64Span) error { return s.check(m.extent) }

// search returns the index of the first fragment that ends after x.
func (m *Map[V]) search(x uint64) int {
	return sort.Search(len(m.frags), func(i int) bool { return m.frags[i].Span.End > x })
}

// Insert stores v for every value of s, splitting any fragment that partially
// overlaps s and replacing the overlapped portion.
func (m *Map[V]) Insert(s U64Span, v V) error {
	return m.Update(s, func(V, bool) (V, bool) { return v, true })
}

// Remove deletes every value of s from the map, splitting any fragment that
// partially overlaps s.
func (m *Map[V]) Remove(s U64Span) error {
	return m.Update(s, func(old V, _ bool) (V, bool) { return old, false })
}

// Query returns every fragment overlapping s, in span order, each with its
// intersection with s.
func (m *Map[V]) Query(s U64Span) ([]Match[V], error) {
	if err := m.Check(s); err != nil {
		return nil, err
	}
	var out []Match[V]
	for i := m.search(s.Start); i < len(m.frags) && m.frags[i].Span.Start < s.End; i++ {
		f := m.frags[i]
		in, _ := f.Span.Intersect(s)
		out = append(out, Match[V]{Fragment: f, Intersection: in})
	}
	return out, nil
}

// Update calls f for every piece of s, and stores the value it returns.
//
// Pieces are the intersections of s with the stored fragments, and the gaps
// between them. For a gap f is called with the zero value and false. If f
// returns false the piece is removed from the map. Parts of overlapped
// fragments outside s keep their value.
func (m *Map[V]) Update(s U64Span, f func(old V, ok bool) (V, bool)) error {
	if err := m.Check(s); err != nil {
		return err
	}
	var out []Fragment[V]
	add := func(v V, start, end uint64) {
		if start >= end {
			return
		}
		if n := len(out); n > 0 && out[n-1].Span.End == start && out[n-1].Value == v {
			out[n-1].Span.End = end
			return
		}
		out = append(out, Fragment[V]{U64Span{start, end}, v})
	}
	apply := func(old V, ok bool, start, end uint64) {
		if v, keep := f(old, ok); keep {
			add(v, start, end)
		}
	}

	var zero V
	lo := m.search(s.Start)
	hi := lo
	at := s.Start
	for ; hi < len(m.frags) && m.frags[hi].Span.Start < s.End; hi++ {
		frag := m.frags[hi]
		if frag.Span.Start < at {
			add(frag.Value, frag.Span.Start, at)
		} else if at < frag.Span.Start {
			apply(zero, false, at, frag.Span.Start)
			at = frag.Span.Start
		}
		end := min(frag.Span.End, s.End)
		apply(frag.Value, true, at, end)
		at = end
		if frag.Span.End > s.End {
			add(frag.Value, s.End, frag.Span.End)
		}
	}
	if at < s.End {
		apply(zero, false, at, s.End)
	}

	// Join with the untouched neighbours.
	if lo > 0 {
		prev := m.frags[lo-1]
		if len(out) > 0 && prev.Span.End == out[0].Span.Start && prev.Value == out[0].Value {
			out[0].Span.Start = prev.Span.Start
			lo--
		}
	}
	if hi < len(m.frags) {
		next := m.frags[hi]
		if n := len(out); n > 0 && out[n-1].Span.End == next.Span.Start && out[n-1].Value == next.Value {
			out[n-1].Span.End = next.Span.End
			hi++
		}
	}
	m.frags = slices.Replace(m.frags, lo, hi, out...)
	return nil
}

// Fragments returns a copy of all the fragments of the map, in span order.
func (m *Map[V]) Fragments() []Fragment[V] {
	return slices.Clone(m.frags)
}

// Each calls f for every fragment in span order, until f returns false.
func (m *Map[V]) Each(f func(Fragment[V]) bool) {
	for _, frag := range m.frags {
		if !f(frag) {
			return
		}
	}
}

// Filter replaces the value of every fragment with the value returned by f,
// dropping fragments for which f returns false.
func (m *Map[V]) Filter(f func(V) (V, bool)) {
	out := m.frags[:0]
	for _, frag := range m.frags {
		v, keep := f(frag.Value)
		if !keep {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Span.End == frag.Span.Start && out[n-1].Value == v {
			out[n-1].Span.End = frag.Span.End
			continue
		}
		out = append(out, Fragment[V]{frag.Span, v})
	}
	clear(m.frags[len(out):])
	m.frags = out
}

// Clone returns a copy of the map. Values are copied, not deep-copied.
func (m *Map[V]) Clone() *Map[V] {
	return &Map[V]{extent: m.extent, frags: slices.Clone(m.frags)}
}

// Verify panics if the fragments are unsorted, overlapping, empty or outside
// the extent, or if two neighbours hold equal values.
func (m *Map[V]) Verify() {
	for i, frag := range m.frags {
		if frag.Span.check(m.extent) != nil {
			panic(fmt.Errorf("fragment %d has invalid span %v", i, frag.Span))
		}
		if i == 0 {
			continue
		}
		prev := m.frags[i-1]
		if prev.Span.End > frag.Span.Start {
			panic(fmt.Errorf("fragments %d %v and %d %v overlap", i-1, prev.Span, i, frag.Span))
		}
		if prev.Span.End == frag.Span.Start && prev.Value == frag.Value {
			panic(fmt.Errorf("fragments %d and %d are adjacent and equal", i-1, i))
		}
	}
}
