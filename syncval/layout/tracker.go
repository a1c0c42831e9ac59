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

// Package layout tracks the layouts of image subresources, and derives the
// layout transitions and attachment accesses of render passes.
package layout

import (
	"sync"

	"github.com/google/syncval/core/math/interval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/resource"
)

// State is the layout of a subresource and the tag of the transition that
// put it there.
type State struct {
	Layout api.Layout
	Tag    api.Tag
}

// Segment is a run of subresource keys sharing a State.
type Segment struct {
	Span  interval.U64Span
	State State
}

// Tracker holds the current layout of every image subresource that went
// through a layout transition. Subresources it holds nothing for are in
// api.LayoutUndefined.
type Tracker struct {
	mu     sync.RWMutex
	images map[resource.Handle]*interval.Map[State]
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{images: map[resource.Handle]*interval.Map[State]{}}
}

// Current returns the layouts of the keys of spans of image h, in key order.
func (t *Tracker) Current(h resource.Handle, spans interval.U64SpanList) []Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current(h, spans)
}

func (t *Tracker) current(h resource.Handle, spans interval.U64SpanList) []Segment {
	m := t.images[h]
	out := []Segment{}
	undefined := State{Layout: api.LayoutUndefined}
	for _, s := range spans {
		at := s.Start
		if m != nil {
			matches, _ := m.Query(s)
			for _, match := range matches {
				if at < match.Intersection.Start {
					out = append(out, Segment{interval.U64Span{Start: at, End: match.Intersection.Start}, undefined})
				}
				out = append(out, Segment{match.Intersection, match.Value})
				at = match.Intersection.End
			}
		}
		if at < s.End {
			out = append(out, Segment{interval.U64Span{Start: at, End: s.End}, undefined})
		}
	}
	return out
}

// Expect checks that the keys of spans of image h are in layout l for an
// access of kind k. Contents in api.LayoutUndefined are meaningless, so a
// read expecting it always mismatches. api.LayoutAny matches anything.
func (t *Tracker) Expect(h resource.Handle, spans interval.U64SpanList, l api.Layout, k api.AccessKind) []hazard.Finding {
	if l == api.LayoutAny {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if l == api.LayoutUndefined {
		if k.IsWrite() {
			return nil
		}
		return []hazard.Finding{{
			Kind:     hazard.LayoutMismatch,
			Overlap:  spans,
			Expected: l,
			Actual:   l,
			Message:  "read of undefined contents",
		}}
	}
	return mismatches(t.current(h, spans), l, "")
}

// Transition moves the keys of spans of image h from layout from to layout
// to at tag. If check is set, keys that are not in from are reported, unless
// from is api.LayoutUndefined which discards whatever was there.
func (t *Tracker) Transition(h resource.Handle, spans interval.U64SpanList, from, to api.Layout, tag api.Tag, check bool) []hazard.Finding {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []hazard.Finding
	if check && from != api.LayoutUndefined && from != api.LayoutAny {
		out = mismatches(t.current(h, spans), from, "transition from an unexpected layout")
	}
	m := t.images[h]
	if m == nil {
		m = interval.NewMap[State](interval.Unbounded)
		t.images[h] = m
	}
	for _, s := range spans {
		if to == api.LayoutUndefined {
			m.Remove(s)
			continue
		}
		m.Insert(s, State{Layout: to, Tag: tag})
	}
	if m.Len() == 0 {
		delete(t.images, h)
	}
	return out
}

// Forget drops everything known about image h.
func (t *Tracker) Forget(h resource.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.images, h)
}

// Images returns the number of images with a tracked layout.
func (t *Tracker) Images() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.images)
}

// mismatches returns a LayoutMismatch for every distinct state of segs that
// is not in layout l.
func mismatches(segs []Segment, l api.Layout, msg string) []hazard.Finding {
	var out []hazard.Finding
	index := map[State]int{}
	for _, seg := range segs {
		if seg.State.Layout == l {
			continue
		}
		i, ok := index[seg.State]
		if !ok {
			i = len(out)
			index[seg.State] = i
			out = append(out, hazard.Finding{
				Kind:     hazard.LayoutMismatch,
				PriorTag: seg.State.Tag,
				Expected: l,
				Actual:   seg.State.Layout,
				Message:  msg,
			})
		}
		out[i].Overlap.Merge(seg.Span)
	}
	return out
}
