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
	"sort"

	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
)

// allStages is the execution scope of a barrier that waits for everything.
var allStages = api.StageAllCommands.Source()

// WriteState is the last write to a fragment and the synchronization
// applied to it since.
type WriteState struct {
	Record *api.AccessRecord
	// Barriers holds the accesses the write has been made visible to.
	Barriers api.Scope
	// Chain holds the stages execution ordered after the write.
	Chain api.Stage
}

// ReadState is a read of a fragment performed after the last write.
type ReadState struct {
	Record *api.AccessRecord
	// Stages are the concrete stages the read was performed in.
	Stages api.Stage
	// Chain holds the stages execution ordered after the read.
	Chain api.Stage
}

// AccessState is the synchronization state of one fragment of a timeline:
// its last write and the reads since that write.
//
// AccessStates are never modified. Every operation returns a new state, or
// the receiver when nothing changed, so equal fragments of a timeline can
// share one state and stay merged. The nil *AccessState holds nothing.
type AccessState struct {
	Write *WriteState
	Reads []ReadState
}

// Empty returns true if the state holds no records.
func (s *AccessState) Empty() bool { return s == nil || (s.Write == nil && len(s.Reads) == 0) }

// Records returns the records of the state ordered by tag.
func (s *AccessState) Records() []*api.AccessRecord {
	if s == nil {
		return nil
	}
	out := make([]*api.AccessRecord, 0, len(s.Reads)+1)
	if s.Write != nil {
		out = append(out, s.Write.Record)
	}
	for _, r := range s.Reads {
		out = append(out, r.Record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Record returns the state after the access rec. A read joins the reads of
// the state, replacing earlier reads made in the same stages. A write or
// layout transition replaces everything.
func (s *AccessState) Record(rec *api.AccessRecord) *AccessState {
	if rec.Kind.IsWrite() {
		return &AccessState{Write: &WriteState{Record: rec}}
	}
	stages := rec.Stage.Concrete()
	out := &AccessState{}
	if s != nil {
		out.Write = s.Write
		out.Reads = make([]ReadState, 0, len(s.Reads)+1)
		for _, r := range s.Reads {
			if r.Stages&^stages != 0 {
				out.Reads = append(out.Reads, r)
			}
		}
	}
	out.Reads = append(out.Reads, ReadState{Record: rec, Stages: stages})
	return out
}

// Barrier is a dependency being applied to fragments, with the record of the
// layout transition it performs, if any.
type Barrier struct {
	Entry      barrier.Entry
	Transition *api.AccessRecord

	srcExec, dstExec   api.Stage
	srcScope, dstScope api.Scope
}

// NewBarrier returns the Barrier for e. transition must be set if e is a
// layout transition of the fragments it is applied to.
func NewBarrier(e barrier.Entry, transition *api.AccessRecord) Barrier {
	return Barrier{
		Entry:      e,
		Transition: transition,
		srcExec:    e.SrcExec(),
		dstExec:    e.DstExec(),
		srcScope:   e.SrcScope(),
		dstScope:   e.DstScope(),
	}
}

// writeInScope returns true if w is in the first scope of the barrier,
// either directly or through an earlier barrier it is chained with.
func (b *Barrier) writeInScope(w *WriteState) bool {
	if w.Chain&b.srcExec != 0 {
		return true
	}
	if w.Record.Kind == api.LayoutTransition {
		return b.srcExec&allStages == allStages
	}
	return b.srcScope.Includes(w.Record.Stage, w.Record.Access)
}

func (b *Barrier) readInScope(r ReadState) bool {
	return (r.Stages|r.Chain)&b.srcExec != 0
}

// Apply returns the state after the barriers bs, which take effect together.
// Every barrier is evaluated against s, so barriers of one set do not chain
// with each other. If one of the barriers is a layout transition, the
// transition becomes the last write.
func (s *AccessState) Apply(bs []Barrier) *AccessState {
	var transition *Barrier
	var barriers api.Scope
	var chain api.Stage
	for i := range bs {
		b := &bs[i]
		switch {
		case b.Transition != nil:
			transition = b
		case s != nil && s.Write != nil && b.writeInScope(s.Write):
		default:
			continue
		}
		barriers = barriers.Union(b.dstScope)
		chain |= b.dstExec
	}
	if transition != nil {
		return &AccessState{Write: &WriteState{Record: transition.Transition, Barriers: barriers, Chain: chain}}
	}
	if s == nil {
		return nil
	}

	changed := false
	out := &AccessState{Write: s.Write}
	if w := s.Write; w != nil {
		if b, c := w.Barriers.Union(barriers), w.Chain|chain; b != w.Barriers || c != w.Chain {
			out.Write = &WriteState{Record: w.Record, Barriers: b, Chain: c}
			changed = true
		}
	}
	if len(s.Reads) > 0 {
		out.Reads = make([]ReadState, len(s.Reads))
		for i, r := range s.Reads {
			chain := r.Chain
			for j := range bs {
				if bs[j].readInScope(r) {
					chain |= bs[j].dstExec
				}
			}
			if chain != r.Chain {
				r.Chain = chain
				changed = true
			}
			out.Reads[i] = r
		}
	}
	if !changed {
		return s
	}
	return out
}

// Trim returns the state without the records that e, a host observed
// completion, covers. It also returns the records removed.
func (s *AccessState) Trim(e barrier.Entry) (*AccessState, []*api.AccessRecord) {
	if s == nil {
		return nil, nil
	}
	srcExec, srcScope := e.SrcExec(), e.SrcScope()
	covered := func(r *api.AccessRecord) bool {
		return e.Completed.Synced(r.Queue, r.Tag) &&
			r.Stage.Concrete()&^srcExec == 0 &&
			srcScope.Covers(r.Stage, r.Access)
	}
	return s.filter(covered)
}

// Unsynced returns the state without the records h knows to have completed.
func (s *AccessState) Unsynced(h Horizon) *AccessState {
	out, _ := s.filter(h.Synced)
	return out
}

func (s *AccessState) filter(drop func(*api.AccessRecord) bool) (*AccessState, []*api.AccessRecord) {
	if s == nil {
		return nil, nil
	}
	var removed []*api.AccessRecord
	out := &AccessState{Write: s.Write}
	if s.Write != nil && drop(s.Write.Record) {
		removed = append(removed, s.Write.Record)
		out.Write = nil
	}
	for _, r := range s.Reads {
		if drop(r.Record) {
			removed = append(removed, r.Record)
		} else {
			out.Reads = append(out.Reads, r)
		}
	}
	switch {
	case len(removed) == 0:
		return s, nil
	case out.Empty():
		return nil, removed
	default:
		return out, removed
	}
}

// Merge returns the union of the local state of a fragment with the state
// imported from another queue. Records h knows to have completed are dropped
// first. The newer of the two writes is kept, with the reads of both states
// made after it.
func Merge(local, imported *AccessState, h Horizon) *AccessState {
	local, imported = local.Unsynced(h), imported.Unsynced(h)
	switch {
	case imported == nil:
		return local
	case local == nil:
		return imported
	}

	out := &AccessState{Write: local.Write}
	switch w := imported.Write; {
	case w == nil:
	case out.Write == nil || w.Record.Tag > out.Write.Record.Tag:
		out.Write = w
	case w.Record == out.Write.Record:
		out.Write = &WriteState{
			Record:   w.Record,
			Barriers: w.Barriers.Union(out.Write.Barriers),
			Chain:    w.Chain | out.Write.Chain,
		}
	}
	floor := api.Tag(0)
	if out.Write != nil {
		floor = out.Write.Record.Tag
	}

	index := map[*api.AccessRecord]int{}
	for _, reads := range [][]ReadState{local.Reads, imported.Reads} {
		for _, r := range reads {
			if r.Record.Tag <= floor {
				continue
			}
			if i, ok := index[r.Record]; ok {
				out.Reads[i].Chain |= r.Chain
				continue
			}
			index[r.Record] = len(out.Reads)
			out.Reads = append(out.Reads, r)
		}
	}
	sort.Slice(out.Reads, func(i, j int) bool { return out.Reads[i].Record.Tag < out.Reads[j].Record.Tag })
	return out
}
