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

package hazard

import (
	"github.com/google/syncval/syncval/api"
)

// Horizon is what the queue performing an access knows about the work of
// every queue.
type Horizon struct {
	// Queue is the queue performing the access.
	Queue api.QueueID
	// Host holds, per queue, the tag up to which the host observed completion
	// before the access was submitted.
	Host api.Clock
	// Known holds, per queue, the tag up to which that queue's work has been
	// imported into the timelines of Queue through semaphore waits.
	Known api.Clock
}

// Synced returns true if r completed before the access.
func (h Horizon) Synced(r *api.AccessRecord) bool { return h.Host.Synced(r.Queue, r.Tag) }

// unordered returns true if r, held by the timeline of queue owner, is work
// of owner that nothing orders with the access.
func (h Horizon) unordered(r *api.AccessRecord, owner api.QueueID) bool {
	return r.Queue == owner && r.Queue != h.Queue &&
		!h.Known.Synced(r.Queue, r.Tag) && !h.Synced(r)
}

// Detect returns the hazards between the access rec and the prior accesses
// of a fragment of the timeline of the queue performing rec.
//
// A read hazards with the last write unless the write was made visible to
// the stage and access of the read. A write hazards with every read since
// the last write that is not execution ordered before it. It also hazards
// with the last write unless the write was made visible to it, or, when
// there are reads since, execution ordered before it through them. Reads
// never hazard with reads. Records h knows to have completed are ignored.
func Detect(s *AccessState, rec *api.AccessRecord, h Horizon) []Finding {
	if s == nil {
		return nil
	}
	stages := rec.Stage.Concrete()
	w := s.Write
	if w != nil && h.Synced(w.Record) {
		w = nil
	}
	if !rec.Kind.IsWrite() {
		if w != nil && !w.Barriers.Covers(stages, rec.Access) {
			return []Finding{{Kind: ReadAfterWrite, Prior: w.Record}}
		}
		return nil
	}

	var out []Finding
	reads := false
	for _, r := range s.Reads {
		if h.Synced(r.Record) {
			continue
		}
		reads = true
		if stages&^r.Chain != 0 {
			out = append(out, Finding{Kind: WriteAfterRead, Prior: r.Record})
		}
	}
	if w != nil && !(reads && stages&^w.Chain == 0) && !w.Barriers.Covers(stages, rec.Access) {
		out = append(out, Finding{Kind: WriteAfterWrite, Prior: w.Record})
	}
	return out
}

// DetectTransition returns the hazards between the layout transition
// performed by b and the prior accesses of a fragment. A transition is a
// write that must be ordered after the prior accesses by the first scope of
// its own barrier.
func DetectTransition(s *AccessState, b Barrier, h Horizon) []Finding {
	if s == nil {
		return nil
	}
	var out []Finding
	for _, r := range s.Reads {
		if !h.Synced(r.Record) && !b.readInScope(r) {
			out = append(out, Finding{Kind: WriteAfterRead, Prior: r.Record})
		}
	}
	if w := s.Write; w != nil && !h.Synced(w.Record) && !b.writeInScope(w) {
		out = append(out, Finding{Kind: WriteAfterWrite, Prior: w.Record})
	}
	return out
}

// DetectForeign returns the hazards between the access rec and the prior
// accesses of a fragment of the timeline of another queue, owner. Barriers
// recorded on owner cannot order work of another queue, so any conflicting
// access of owner that is neither imported through a semaphore nor known
// complete is a hazard.
func DetectForeign(s *AccessState, rec *api.AccessRecord, owner api.QueueID, h Horizon) []Finding {
	if s == nil {
		return nil
	}
	var out []Finding
	if rec.Kind.IsWrite() {
		for _, r := range s.Reads {
			if h.unordered(r.Record, owner) {
				out = append(out, Finding{Kind: WriteAfterRead, Prior: r.Record})
			}
		}
	}
	if w := s.Write; w != nil && h.unordered(w.Record, owner) {
		k := ReadAfterWrite
		if rec.Kind.IsWrite() {
			k = WriteAfterWrite
		}
		out = append(out, Finding{Kind: k, Prior: w.Record})
	}
	return out
}
