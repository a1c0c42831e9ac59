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
	"slices"
	"sort"
)

// U64SpanList is a sorted list of non-overlapping, non-adjacent spans.
type U64SpanList []U64Span

// Intersect finds the spans in l that overlap s. It returns the index of the
// first one and the number of overlapping spans.
func (l U64SpanList) Intersect(s U64Span) (first, count int) {
	first = sort.Search(len(l), func(i int) bool { return l[i].End > s.Start })
	last := first
	for last < len(l) && l[last].Start < s.End {
		last++
	}
	return first, last - first
}

// Merge adds s to the list, joining it with every span it overlaps or touches.
func (l *U64SpanList) Merge(s U64Span) {
	if s.Empty() {
		return
	}
	list := *l
	// Include adjacent spans, so touching spans are joined.
	lo := sort.Search(len(list), func(i int) bool { return list[i].End >= s.Start })
	hi := lo
	for hi < len(list) && list[hi].Start <= s.End {
		s.Start = min(s.Start, list[hi].Start)
		s.End = max(s.End, list[hi].End)
		hi++
	}
	*l = slices.Replace(list, lo, hi, s)
}

// Remove strips the values of s from the list, splitting spans as needed.
func (l *U64SpanList) Remove(s U64Span) {
	list := *l
	first, count := list.Intersect(s)
	if count == 0 {
		return
	}
	var keep []U64Span
	if head := list[first]; head.Start < s.Start {
		keep = append(keep, U64Span{head.Start, s.Start})
	}
	if tail := list[first+count-1]; tail.End > s.End {
		keep = append(keep, U64Span{s.End, tail.End})
	}
	*l = slices.Replace(list, first, first+count, keep...)
}

// Covers returns true if every value of s is in the list.
func (l U64SpanList) Covers(s U64Span) bool {
	first, count := l.Intersect(s)
	return count == 1 && l[first].Contains(s)
}

// Total returns the number of values in all the spans of the list.
func (l U64SpanList) Total() uint64 {
	total := uint64(0)
	for _, s := range l {
		total += s.Len()
	}
	return total
}
