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

// Package interval provides half-open uint64 spans, sorted span lists and a
// generic map from non-overlapping spans to values.
package interval

import (
	"fmt"
	"math"

	"github.com/google/syncval/core/fault"
)

// ErrInvalidRange is returned when a span is empty, overflows, or lies outside
// the extent of the container it is used with.
const ErrInvalidRange = fault.Const("InvalidRange")

// Unbounded is the extent of a container that accepts any span.
const Unbounded = math.MaxUint64

// U64Span is a half-open interval [Start, End).
type U64Span struct {
	Start uint64 // the value at which the interval begins
	End   uint64 // the next value not included in the interval.
}

// U64Range is an interval specified by a beginning and size.
type U64Range struct {
	First uint64 // the first value in the interval
	Count uint64 // the count of values in the interval
}

// Span converts a U64Range to a U64Span, failing with ErrInvalidRange if the
// range is empty or overflows.
func (r U64Range) Span() (U64Span, error) {
	if r.Count == 0 || r.First+r.Count < r.First {
		return U64Span{}, ErrInvalidRange
	}
	return U64Span{Start: r.First, End: r.First + r.Count}, nil
}

// Range converts a U64Span to a U64Range.
func (s U64Span) Range() U64Range { return U64Range{First: s.Start, Count: s.End - s.Start} }

// Len returns the number of values in the span.
func (s U64Span) Len() uint64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Empty returns true if the span contains no values.
func (s U64Span) Empty() bool { return s.End <= s.Start }

// Overlaps returns true if s and o share at least one value.
func (s U64Span) Overlaps(o U64Span) bool { return s.Start < o.End && o.Start < s.End }

// Contains returns true if every value of o is in s.
func (s U64Span) Contains(o U64Span) bool { return s.Start <= o.Start && o.End <= s.End }

// Intersect returns the values common to s and o, and false if there are none.
func (s U64Span) Intersect(o U64Span) (U64Span, bool) {
	out := U64Span{Start: max(s.Start, o.Start), End: min(s.End, o.End)}
	return out, !out.Empty()
}

func (s U64Span) String() string { return fmt.Sprintf("[%#x-%#x)", s.Start, s.End) }

// check returns ErrInvalidRange if s is empty or ends beyond extent.
func (s U64Span) check(extent uint64) error {
	if s.Empty() || s.End > extent {
		return ErrInvalidRange
	}
	return nil
}
