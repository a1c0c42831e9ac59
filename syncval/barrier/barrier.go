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

// Package barrier describes execution and memory dependencies that have been
// recorded but not yet folded into a timeline.
package barrier

import (
	"bytes"
	"fmt"

	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/resource"
)

// Scope is where a dependency came from.
type Scope int

const (
	// WithinCommandBuffer dependencies come from pipeline barriers.
	WithinCommandBuffer Scope = iota
	// SubpassToSubpass dependencies come from render pass subpass
	// dependencies, including the external ones.
	SubpassToSubpass
	// QueueSubmissionBoundary dependencies come from semaphore waits and host
	// observed completion.
	QueueSubmissionBoundary
)

func (s Scope) String() string {
	switch s {
	case WithinCommandBuffer:
		return "WithinCommandBuffer"
	case SubpassToSubpass:
		return "SubpassToSubpass"
	case QueueSubmissionBoundary:
		return "QueueSubmissionBoundary"
	default:
		return fmt.Sprintf("Scope<%d>", int(s))
	}
}

// Entry is a single dependency.
//
// An entry with no Resource is a global memory barrier and applies to every
// resource of the queue. An image entry whose NewLayout differs from its
// OldLayout also transitions the layout of Range.
type Entry struct {
	SrcStage  api.Stage
	DstStage  api.Stage
	SrcAccess api.Access
	DstAccess api.Access

	Resource resource.Handle
	Range    resource.Range

	Scope Scope

	OldLayout api.Layout
	NewLayout api.Layout

	// Completed holds, for QueueSubmissionBoundary entries that stand for
	// host observed completion, the tag up to which each queue has finished.
	Completed api.Clock
}

// Memory returns a global memory barrier.
func Memory(src api.Stage, srcAccess api.Access, dst api.Stage, dstAccess api.Access) Entry {
	return Entry{SrcStage: src, SrcAccess: srcAccess, DstStage: dst, DstAccess: dstAccess}
}

// Execution returns an execution only dependency.
func Execution(src, dst api.Stage) Entry {
	return Entry{SrcStage: src, DstStage: dst}
}

// Buffer returns a buffer memory barrier.
func Buffer(h resource.Handle, r resource.Range, src api.Stage, srcAccess api.Access, dst api.Stage, dstAccess api.Access) Entry {
	e := Memory(src, srcAccess, dst, dstAccess)
	e.Resource, e.Range = h, r
	return e
}

// Image returns an image memory barrier, transitioning the range from old to
// new when they differ.
func Image(h resource.Handle, r resource.Range, src api.Stage, srcAccess api.Access, dst api.Stage, dstAccess api.Access, old, new api.Layout) Entry {
	e := Buffer(h, r, src, srcAccess, dst, dstAccess)
	e.OldLayout, e.NewLayout = old, new
	return e
}

// Global returns true if the entry applies to every resource.
func (e Entry) Global() bool { return e.Resource == 0 }

// IsTransition returns true if the entry changes the layout of an image.
func (e Entry) IsTransition() bool {
	return !e.Global() && e.NewLayout != api.LayoutAny && e.NewLayout != e.OldLayout
}

// SrcExec returns the stages of the first synchronization scope.
func (e Entry) SrcExec() api.Stage { return e.SrcStage.Source() }

// DstExec returns the stages of the second synchronization scope.
func (e Entry) DstExec() api.Stage { return e.DstStage.Destination() }

// SrcScope returns the first access scope.
func (e Entry) SrcScope() api.Scope { return api.NewScope(e.SrcExec(), e.SrcAccess) }

// DstScope returns the second access scope.
func (e Entry) DstScope() api.Scope { return api.NewScope(e.DstExec(), e.DstAccess) }

func (e Entry) String() string {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "%v/%v -> %v/%v", e.SrcStage, e.SrcAccess, e.DstStage, e.DstAccess)
	if !e.Global() {
		fmt.Fprintf(b, " on %v %v", e.Resource, e.Range)
	}
	if e.IsTransition() {
		fmt.Fprintf(b, " %v -> %v", e.OldLayout, e.NewLayout)
	}
	if e.Scope != WithinCommandBuffer {
		fmt.Fprintf(b, " (%v)", e.Scope)
	}
	return b.String()
}

// Set is a list of dependencies that take effect together: no entry of a set
// is ordered before another entry of the same set.
type Set []Entry

// Add appends entries to the set.
func (s *Set) Add(e ...Entry) { *s = append(*s, e...) }

// Global returns the global entries of the set.
func (s Set) Global() Set { return s.filter(Entry.Global) }

// For returns the entries of the set that apply to resource h, global
// entries included.
func (s Set) For(h resource.Handle) Set {
	return s.filter(func(e Entry) bool { return e.Global() || e.Resource == h })
}

// Transitions returns the layout transitions of the set.
func (s Set) Transitions() Set { return s.filter(Entry.IsTransition) }

// Resources returns the resources named by entries of the set, in the order
// they first appear.
func (s Set) Resources() []resource.Handle {
	seen := map[resource.Handle]bool{}
	out := []resource.Handle{}
	for _, e := range s {
		if !e.Global() && !seen[e.Resource] {
			seen[e.Resource] = true
			out = append(out, e.Resource)
		}
	}
	return out
}

func (s Set) filter(pred func(Entry) bool) Set {
	var out Set
	for _, e := range s {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
