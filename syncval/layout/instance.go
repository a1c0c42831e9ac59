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

package layout

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/google/syncval/core/math/interval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/resource"
)

// Binding is the image range bound to an attachment.
type Binding struct {
	Resource resource.Handle
	Range    resource.Range
	// Spans are the subresource keys of Range.
	Spans interval.U64SpanList
}

// Finding is a problem found by a render pass instance.
type Finding struct {
	// Attachment is the attachment the problem was found on, or Unused.
	Attachment int
	Resource   resource.Handle
	Range      resource.Range
	hazard.Finding
}

// Assumption is the layout a render pass takes an attachment to be in,
// whatever was tracked for it.
type Assumption struct {
	Binding
	Layout api.Layout
}

// Event is either an attachment access or a set of dependencies that take
// effect together.
type Event struct {
	Op       *api.Op
	Barriers barrier.Set
}

// Step is what a render pass instance does when it begins, moves to the next
// subpass or ends. Events are to be applied in order.
type Step struct {
	Findings []Finding
	Assume   []Assumption
	Events   []Event
	// Checked is set if the source layouts of the transitions of the step
	// have already been checked against the tracker.
	Checked bool
}

// Instance is a render pass being executed. It is created by Begin and is
// no longer usable once End has been called.
type Instance struct {
	rp       *RenderPass
	bindings []Binding
	layouts  []api.Layout
	subpass  int
	ended    bool
}

// Begin starts an instance of the render pass on the images of bindings,
// one per attachment. The declared initial layouts are checked against t.
// Begin returns a nil instance if the bindings do not match the attachments.
func (rp *RenderPass) Begin(t *Tracker, bindings []Binding) (*Instance, Step) {
	if len(bindings) != len(rp.attachments) {
		return nil, Step{Findings: []Finding{configError(hazard.InvalidAttachmentIndex,
			"render pass %q has %d attachments, %d bound", rp.name, len(rp.attachments), len(bindings))}}
	}
	i := &Instance{
		rp:       rp,
		bindings: append([]Binding(nil), bindings...),
		layouts:  make([]api.Layout, len(bindings)),
	}
	step := Step{Checked: true}
	for a, att := range rp.attachments {
		i.layouts[a] = att.InitialLayout
		if att.InitialLayout == api.LayoutUndefined {
			continue
		}
		b := bindings[a]
		unknown := interval.U64SpanList{}
		known := []Segment{}
		for _, seg := range t.Current(b.Resource, b.Spans) {
			if seg.State.Layout == api.LayoutUndefined {
				unknown.Merge(seg.Span)
			} else {
				known = append(known, seg)
			}
		}
		found := mismatches(known, att.InitialLayout, fmt.Sprintf("initial layout of attachment %d", a))
		if len(unknown) > 0 {
			found = append(found, hazard.Finding{
				Kind:     hazard.UnknownInitialLayout,
				Overlap:  unknown,
				Expected: att.InitialLayout,
				Actual:   api.LayoutUndefined,
				Message:  fmt.Sprintf("no layout known for attachment %d", a),
			})
		}
		for _, f := range found {
			step.Findings = append(step.Findings, Finding{Attachment: a, Resource: b.Resource, Range: b.Range, Finding: f})
		}
		if len(found) > 0 {
			step.Assume = append(step.Assume, Assumption{Binding: b, Layout: att.InitialLayout})
		}
	}
	i.enter(&step)
	return i, step
}

// RenderPass returns the render pass of the instance.
func (i *Instance) RenderPass() *RenderPass { return i.rp }

// Subpass returns the index of the current subpass.
func (i *Instance) Subpass() int { return i.subpass }

// Ended returns true once End has been called.
func (i *Instance) Ended() bool { return i.ended }

// Layout returns the layout attachment a is in.
func (i *Instance) Layout(a int) api.Layout { return i.layouts[a] }

// Next finishes the current subpass and starts the next one.
func (i *Instance) Next() Step {
	switch {
	case i.ended:
		return Step{Findings: []Finding{configError(hazard.RenderPassState, "render pass %q has ended", i.rp.name)}}
	case i.subpass+1 >= len(i.rp.subpasses):
		return Step{Findings: []Finding{configError(hazard.InvalidSubpassIndex,
			"render pass %q has no subpass after %d", i.rp.name, i.subpass)}}
	}
	step := Step{}
	i.leave(&step)
	i.subpass++
	i.enter(&step)
	return step
}

// End finishes the current subpass and moves every attachment to its final
// layout, whether or not a subpass used it.
func (i *Instance) End() Step {
	if i.ended {
		return Step{Findings: []Finding{configError(hazard.RenderPassState, "render pass %q has ended", i.rp.name)}}
	}
	step := Step{}
	if last := len(i.rp.subpasses) - 1; i.subpass != last {
		step.Findings = append(step.Findings, configError(hazard.RenderPassState,
			"render pass %q ended in subpass %d of %d", i.rp.name, i.subpass, last+1))
	}
	i.leave(&step)
	i.ended = true

	set := barrier.Set{}
	for _, d := range i.rp.dependencies {
		if d.Dst == External {
			set.Add(global(d))
		}
	}
	for a, att := range i.rp.attachments {
		from := i.layouts[a]
		if from == att.FinalLayout {
			continue
		}
		s := implicitEnd
		if last := i.rp.lastUse[a]; last != Unused {
			declared := i.rp.scope(func(d Dependency) bool { return d.Src == last && d.Dst == External })
			if declared.found {
				s = declared
			}
		}
		set.Add(i.transition(a, s, from, att.FinalLayout))
		i.layouts[a] = att.FinalLayout
	}
	if len(set) > 0 {
		step.Events = append(step.Events, Event{Barriers: set})
	}
	return step
}

// Ordered returns the dependencies that order op after the accesses made
// earlier in the subpass to the same attachment. Attachment accesses of a
// subpass happen in rasterization order.
func (i *Instance) Ordered(op api.Op) barrier.Set {
	if i.ended || op.Stage.Concrete()&attachmentStages == 0 {
		return nil
	}
	var out barrier.Set
	for _, a := range i.rp.subpasses[i.subpass].order {
		if i.bindings[a].Resource == op.Resource {
			out.Add(i.rasterOrder(a))
		}
	}
	return out
}

// enter starts the current subpass: the dependencies into it, the
// transitions into its layouts and the load operations of the attachments
// it uses first.
func (i *Instance) enter(step *Step) {
	rp, si := i.rp, i.subpass
	info := rp.subpasses[si]
	set := barrier.Set{}
	for _, d := range rp.dependencies {
		if d.Dst == si {
			set.Add(global(d))
		}
	}
	internal, external := rp.dependenciesInto(si, false), rp.dependenciesInto(si, true)
	if !external.found {
		external = implicitBegin
	}
	for _, a := range info.order {
		from, to := i.layouts[a], info.layouts[a]
		if from == to {
			continue
		}
		s := internal
		if rp.firstUse[a] == si {
			s = external
		}
		set.Add(i.transition(a, s, from, to))
		i.layouts[a] = to
	}
	if len(set) > 0 {
		step.Events = append(step.Events, Event{Barriers: set})
	}

	for _, a := range info.loadAttachments {
		stage, read, write := rp.loadStage(a)
		op := i.op(a, "load", api.Write, stage, write)
		if att := rp.attachments[a]; att.LoadOp == gputypes.LoadOpLoad {
			op.Kind, op.Access = api.Read, read
			if att.InitialLayout == api.LayoutUndefined {
				b := i.bindings[a]
				step.Findings = append(step.Findings, Finding{Attachment: a, Resource: b.Resource, Range: b.Range,
					Finding: hazard.Finding{
						Kind:     hazard.LayoutMismatch,
						Overlap:  b.Spans,
						Expected: api.LayoutUndefined,
						Actual:   api.LayoutUndefined,
						Message:  fmt.Sprintf("load of undefined contents of attachment %d", a),
					}})
			}
		}
		step.Events = append(step.Events, Event{Op: &op})
	}
	i.order(step, info.loadAttachments)
}

// leave finishes the current subpass: its resolves and the store operations
// of the attachments it uses last.
func (i *Instance) leave(step *Step) {
	rp := i.rp
	info := rp.subpasses[i.subpass]
	i.order(step, info.order)
	if len(info.resolves) > 0 {
		resolved := []int{}
		for _, pair := range info.resolves {
			src := i.op(pair[0], "resolve from", api.Read, api.StageColorAttachmentOutput, api.AccessColorAttachmentRead)
			dst := i.op(pair[1], "resolve to", api.Write, api.StageColorAttachmentOutput, api.AccessColorAttachmentWrite)
			step.Events = append(step.Events, Event{Op: &src}, Event{Op: &dst})
			resolved = append(resolved, pair[0], pair[1])
		}
		i.order(step, resolved)
	}
	for _, a := range info.storeAttachments {
		stage, access := rp.storeStage(a)
		op := i.op(a, "store", api.Write, stage, access)
		step.Events = append(step.Events, Event{Op: &op})
	}
}

// order appends the rasterization order dependencies of attachments.
func (i *Instance) order(step *Step, attachments []int) {
	if len(attachments) == 0 {
		return
	}
	set := make(barrier.Set, 0, len(attachments))
	for _, a := range attachments {
		set.Add(i.rasterOrder(a))
	}
	step.Events = append(step.Events, Event{Barriers: set})
}

func (i *Instance) rasterOrder(a int) barrier.Entry {
	b := i.bindings[a]
	return barrier.Image(b.Resource, b.Range,
		attachmentStages, attachmentWrites,
		attachmentStages, attachmentAccess,
		api.LayoutAny, api.LayoutAny)
}

func (i *Instance) transition(a int, s scope, from, to api.Layout) barrier.Entry {
	b := i.bindings[a]
	e := barrier.Image(b.Resource, b.Range, s.srcStage, s.srcAccess, s.dstStage, s.dstAccess, from, to)
	e.Scope = barrier.SubpassToSubpass
	return e
}

func (i *Instance) op(a int, what string, kind api.AccessKind, stage api.Stage, access api.Access) api.Op {
	b := i.bindings[a]
	return api.Op{
		Resource: b.Resource,
		Range:    b.Range,
		Kind:     kind,
		Stage:    stage,
		Access:   access,
		Label:    fmt.Sprintf("%s attachment %d of %q", what, a, i.rp.name),
	}
}

func global(d Dependency) barrier.Entry {
	e := barrier.Memory(d.SrcStage, d.SrcAccess, d.DstStage, d.DstAccess)
	e.Scope = barrier.SubpassToSubpass
	return e
}

func configError(k hazard.Kind, format string, args ...interface{}) Finding {
	return Finding{Attachment: Unused, Finding: hazard.Finding{Kind: k, Message: fmt.Sprintf(format, args...)}}
}
