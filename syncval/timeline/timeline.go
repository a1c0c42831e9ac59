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

// Package timeline holds the accesses made to one resource by one queue.
//
// A Timeline maps every key of the resource (see resource.Desc.Spans) to the
// hazard.AccessState of that key. Keys sharing a state are held as a single
// fragment, so the cost of an operation is proportional to the fragments it
// touches, not to the number of accesses ever made.
package timeline

import (
	"sort"
	"sync"

	"github.com/google/syncval/core/math/interval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
	"github.com/google/syncval/syncval/config"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/resource"
)

// Timeline is the access history of a resource on a queue.
// Queries may run concurrently with each other, but not with mutations.
type Timeline struct {
	mu       sync.RWMutex
	resource resource.Handle
	queue    api.QueueID
	states   *interval.Map[*hazard.AccessState]
}

// New returns an empty timeline for resource h on queue q, holding keys
// below extent.
func New(h resource.Handle, q api.QueueID, extent uint64) *Timeline {
	return &Timeline{
		resource: h,
		queue:    q,
		states:   interval.NewMap[*hazard.AccessState](extent),
	}
}

// Resource returns the resource of the timeline.
func (t *Timeline) Resource() resource.Handle { return t.resource }

// Queue returns the queue of the timeline.
func (t *Timeline) Queue() api.QueueID { return t.queue }

// Len returns the number of fragments of the timeline.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states.Len()
}

// Records returns the number of distinct records held by the timeline.
func (t *Timeline) Records() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := map[*api.AccessRecord]struct{}{}
	t.states.Each(func(f interval.Fragment[*hazard.AccessState]) bool {
		for _, r := range f.Value.Records() {
			seen[r] = struct{}{}
		}
		return true
	})
	return len(seen)
}

// Record checks the access rec to spans against the prior accesses of the
// timeline, then stores it. The access is stored whether or not hazards are
// found.
func (t *Timeline) Record(rec *api.AccessRecord, spans interval.U64SpanList, h hazard.Horizon) ([]hazard.Finding, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	findings, err := t.detect(spans, func(s *hazard.AccessState) []hazard.Finding {
		return hazard.Detect(s, rec, h)
	})
	if err != nil {
		return nil, err
	}
	var update func(*hazard.AccessState) *hazard.AccessState
	if rec.Kind.IsWrite() {
		// A write replaces everything, so every piece can share one state.
		written := (*hazard.AccessState)(nil).Record(rec)
		update = func(*hazard.AccessState) *hazard.AccessState { return written }
	} else {
		update = func(s *hazard.AccessState) *hazard.AccessState { return s.Record(rec) }
	}
	for _, s := range spans {
		if err := t.states.Update(s, memo(update)); err != nil {
			return nil, err
		}
	}
	t.verify()
	return findings, nil
}

// Check returns the hazards between the access rec, made by another queue,
// and the accesses of the timeline. The timeline is not modified.
func (t *Timeline) Check(rec *api.AccessRecord, spans interval.U64SpanList, h hazard.Horizon) ([]hazard.Finding, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.detect(spans, func(s *hazard.AccessState) []hazard.Finding {
		return hazard.DetectForeign(s, rec, t.queue, h)
	})
}

// CheckTransition returns the hazards between the layout transition of b
// over spans and the accesses of the timeline.
func (t *Timeline) CheckTransition(b hazard.Barrier, spans interval.U64SpanList, h hazard.Horizon) ([]hazard.Finding, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.detect(spans, func(s *hazard.AccessState) []hazard.Finding {
		return hazard.DetectTransition(s, b, h)
	})
}

// QueryOverlapping returns the records overlapping s, ordered by tag.
func (t *Timeline) QueryOverlapping(s interval.U64Span) ([]*api.AccessRecord, error) {
	matches, err := t.Fragments(s)
	if err != nil {
		return nil, err
	}
	seen := map[*api.AccessRecord]bool{}
	out := []*api.AccessRecord{}
	for _, m := range matches {
		for _, r := range m.Value.Records() {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

// Fragments returns the fragments of the timeline overlapping s.
func (t *Timeline) Fragments(s interval.U64Span) ([]interval.Match[*hazard.AccessState], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states.Query(s)
}

// Dependency is a barrier applied to some keys of the timeline.
type Dependency struct {
	Barrier hazard.Barrier
	// Spans holds the keys the barrier applies to. Nil means every key.
	Spans interval.U64SpanList
}

// Apply folds a set of dependencies into the timeline. The dependencies take
// effect together: each is evaluated against the state before any of them.
func (t *Timeline) Apply(deps []Dependency) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	whole := interval.U64Span{Start: 0, End: t.states.Extent()}
	if whole.Empty() {
		return nil
	}
	// Split the keys into segments where the same dependencies apply.
	cuts := []uint64{}
	for _, d := range deps {
		spans := d.Spans
		if spans == nil {
			spans = interval.U64SpanList{whole}
		}
		for _, s := range spans {
			cuts = append(cuts, s.Start, s.End)
		}
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i] < cuts[j] })

	for i := 1; i < len(cuts); i++ {
		seg := interval.U64Span{Start: cuts[i-1], End: cuts[i]}
		if seg.Empty() {
			continue
		}
		var bs []hazard.Barrier
		for _, d := range deps {
			if d.Spans == nil || d.Spans.Covers(seg) {
				bs = append(bs, d.Barrier)
			}
		}
		if len(bs) == 0 {
			continue
		}
		apply := func(s *hazard.AccessState) *hazard.AccessState { return s.Apply(bs) }
		if err := t.states.Update(seg, memo(apply)); err != nil {
			return err
		}
	}
	t.verify()
	return nil
}

// Trim removes the records that e, a host observed completion, covers. It
// returns the number of records removed.
func (t *Timeline) Trim(e barrier.Entry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := map[*api.AccessRecord]struct{}{}
	t.states.Filter(func(s *hazard.AccessState) (*hazard.AccessState, bool) {
		out, gone := s.Trim(e)
		for _, r := range gone {
			removed[r] = struct{}{}
		}
		return out, !out.Empty()
	})
	t.verify()
	return len(removed)
}

// Snapshot returns a copy of the timeline, as it is now.
func (t *Timeline) Snapshot() *Timeline {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Timeline{resource: t.resource, queue: t.queue, states: t.states.Clone()}
}

// Import merges a snapshot of the timeline of another queue into t. The
// dependency e, typically a semaphore wait, is applied to the snapshot before
// it is merged. Records h knows to have completed are dropped.
func (t *Timeline) Import(snap *Timeline, e barrier.Entry, h hazard.Horizon) error {
	snap.mu.RLock()
	defer snap.mu.RUnlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	bs := []hazard.Barrier{hazard.NewBarrier(e, nil)}
	imported := map[*hazard.AccessState]*hazard.AccessState{}
	for _, f := range snap.states.Fragments() {
		in, ok := imported[f.Value]
		if !ok {
			in = f.Value.Apply(bs)
			imported[f.Value] = in
		}
		merge := func(s *hazard.AccessState) *hazard.AccessState { return hazard.Merge(s, in, h) }
		if err := t.states.Update(f.Span, memo(merge)); err != nil {
			return err
		}
	}
	t.verify()
	return nil
}

func (t *Timeline) verify() {
	if config.CheckInvariants {
		t.states.Verify()
	}
}

// detect runs f over every fragment overlapping spans, joining the findings
// for the same prior record.
func (t *Timeline) detect(spans interval.U64SpanList, f func(*hazard.AccessState) []hazard.Finding) ([]hazard.Finding, error) {
	type key struct {
		kind  hazard.Kind
		prior *api.AccessRecord
	}
	var out []hazard.Finding
	index := map[key]int{}
	for _, s := range spans {
		matches, err := t.states.Query(s)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			for _, found := range f(m.Value) {
				k := key{found.Kind, found.Prior}
				i, ok := index[k]
				if !ok {
					i = len(out)
					index[k] = i
					out = append(out, found)
				}
				out[i].Overlap.Merge(m.Intersection)
			}
		}
	}
	return out, nil
}

// memo adapts f to interval.Map.Update. Pieces holding the same state are
// given the same new state, so they can merge again.
func memo(f func(*hazard.AccessState) *hazard.AccessState) func(*hazard.AccessState, bool) (*hazard.AccessState, bool) {
	seen := map[*hazard.AccessState]*hazard.AccessState{}
	return func(old *hazard.AccessState, _ bool) (*hazard.AccessState, bool) {
		out, ok := seen[old]
		if !ok {
			out = f(old)
			seen[old] = out
		}
		return out, !out.Empty()
	}
}
