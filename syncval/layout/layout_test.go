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

package layout_test

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/syncval/core/assert"
	"github.com/google/syncval/core/fault"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/core/math/interval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/layout"
	"github.com/google/syncval/syncval/resource"
)

var (
	image = resource.NewImage("target", gputypes.TextureFormatRGBA8Unorm, 1, 1)
	depth = resource.NewImage("depth", gputypes.TextureFormatDepth32Float, 1, 1)
)

func bind(h resource.Handle, d resource.Desc) layout.Binding {
	spans, err := d.Spans(d.Whole())
	if err != nil {
		panic(err)
	}
	return layout.Binding{Resource: h, Range: d.Whole(), Spans: spans}
}

func findingKinds(fs []layout.Finding) []hazard.Kind {
	out := []hazard.Kind{}
	for _, f := range fs {
		out = append(out, f.Kind)
	}
	return out
}

func errorKinds(err error) []hazard.Kind {
	var errs fault.List
	switch err := err.(type) {
	case nil:
		return []hazard.Kind{}
	case fault.List:
		errs = err
	default:
		errs = fault.List{err}
	}
	out := []hazard.Kind{}
	for _, e := range errs {
		out = append(out, e.(*hazard.Error).Kind)
	}
	return out
}

// transitions returns the layout transitions of a step, as "old->new".
func transitions(step layout.Step) []string {
	out := []string{}
	for _, e := range step.Events {
		for _, b := range e.Barriers.Transitions() {
			out = append(out, b.OldLayout.String()+"->"+b.NewLayout.String())
		}
	}
	return out
}

// ops returns the attachment accesses of a step.
func ops(step layout.Step) []api.Op {
	out := []api.Op{}
	for _, e := range step.Events {
		if e.Op != nil {
			out = append(out, *e.Op)
		}
	}
	return out
}

func TestTracker(t *testing.T) {
	ctx := log.Testing(t)
	tr := layout.NewTracker()
	all := interval.U64SpanList{{Start: 0, End: 8}}
	low := interval.U64SpanList{{Start: 0, End: 4}}

	segs := tr.Current(1, all)
	assert.For(ctx, "untracked").ThatSlice(segs).Equals([]layout.Segment{
		{Span: interval.U64Span{Start: 0, End: 8}, State: layout.State{Layout: api.LayoutUndefined}},
	})

	found := tr.Transition(1, low, api.LayoutUndefined, api.LayoutTransferDst, 3, true)
	assert.For(ctx, "from undefined").ThatSlice(found).IsEmpty()
	assert.For(ctx, "split").ThatSlice(tr.Current(1, all)).Equals([]layout.Segment{
		{Span: interval.U64Span{Start: 0, End: 4}, State: layout.State{Layout: api.LayoutTransferDst, Tag: 3}},
		{Span: interval.U64Span{Start: 4, End: 8}, State: layout.State{Layout: api.LayoutUndefined}},
	})

	found = tr.Expect(1, all, api.LayoutTransferDst, api.Write)
	assert.For(ctx, "expect mismatches").ThatInteger(len(found)).Equals(1)
	assert.For(ctx, "mismatch kind").That(found[0].Kind).Equals(hazard.LayoutMismatch)
	assert.For(ctx, "mismatch actual").That(found[0].Actual).Equals(api.LayoutUndefined)
	assert.For(ctx, "mismatch overlap").ThatSlice(found[0].Overlap).Equals(interval.U64SpanList{{Start: 4, End: 8}})

	assert.For(ctx, "expect match").ThatSlice(tr.Expect(1, low, api.LayoutTransferDst, api.Read)).IsEmpty()
	assert.For(ctx, "expect any").ThatSlice(tr.Expect(1, all, api.LayoutAny, api.Read)).IsEmpty()
	assert.For(ctx, "write undefined").ThatSlice(tr.Expect(1, all, api.LayoutUndefined, api.Write)).IsEmpty()
	assert.For(ctx, "read undefined").ThatInteger(len(tr.Expect(1, low, api.LayoutUndefined, api.Read))).Equals(1)

	found = tr.Transition(1, low, api.LayoutShaderReadOnly, api.LayoutGeneral, 4, true)
	assert.For(ctx, "wrong old layout").ThatInteger(len(found)).Equals(1)
	assert.For(ctx, "prior tag").That(found[0].Tag()).Equals(api.Tag(3))
	assert.For(ctx, "unchecked").ThatSlice(tr.Transition(1, low, api.LayoutShaderReadOnly, api.LayoutGeneral, 5, false)).IsEmpty()

	assert.For(ctx, "images").ThatInteger(tr.Images()).Equals(1)
	tr.Forget(1)
	assert.For(ctx, "forgotten").ThatInteger(tr.Images()).Equals(0)
}

func TestNewRenderPass(t *testing.T) {
	ctx := log.Testing(t)
	color := layout.Attachment{
		Format:        gputypes.TextureFormatRGBA8Unorm,
		LoadOp:        gputypes.LoadOpClear,
		StoreOp:       gputypes.StoreOpStore,
		InitialLayout: api.LayoutUndefined,
		FinalLayout:   api.LayoutShaderReadOnly,
	}
	ds := layout.Attachment{
		Format:        gputypes.TextureFormatDepth32Float,
		InitialLayout: api.LayoutUndefined,
		FinalLayout:   api.LayoutDepthStencilAttachment,
	}
	colorRef := layout.Reference{Attachment: 0, Layout: api.LayoutColorAttachment}
	for _, test := range []struct {
		name     string
		desc     layout.Desc
		expected []hazard.Kind
	}{
		{"valid", layout.Desc{
			Attachments: []layout.Attachment{color, ds},
			Subpasses: []layout.Subpass{{
				Color:        []layout.Reference{colorRef},
				DepthStencil: &layout.Reference{Attachment: 1, Layout: api.LayoutDepthStencilAttachment},
			}},
			Dependencies: []layout.Dependency{{Src: layout.External, Dst: 0}},
		}, []hazard.Kind{}},
		{"unused reference", layout.Desc{
			Attachments: []layout.Attachment{color},
			Subpasses:   []layout.Subpass{{Color: []layout.Reference{{Attachment: layout.Unused}}}},
		}, []hazard.Kind{}},
		{"attachment out of range", layout.Desc{
			Attachments: []layout.Attachment{color},
			Subpasses:   []layout.Subpass{{Color: []layout.Reference{{Attachment: 1, Layout: api.LayoutColorAttachment}}}},
		}, []hazard.Kind{hazard.InvalidAttachmentIndex}},
		{"color in read only layout", layout.Desc{
			Attachments: []layout.Attachment{color},
			Subpasses:   []layout.Subpass{{Color: []layout.Reference{{Attachment: 0, Layout: api.LayoutShaderReadOnly}}}},
		}, []hazard.Kind{hazard.IncompatibleLayout}},
		{"depth format as color", layout.Desc{
			Attachments: []layout.Attachment{ds},
			Subpasses:   []layout.Subpass{{Color: []layout.Reference{{Attachment: 0, Layout: api.LayoutColorAttachment}}}},
		}, []hazard.Kind{hazard.IncompatibleLayout}},
		{"two layouts in one subpass", layout.Desc{
			Attachments: []layout.Attachment{color},
			Subpasses: []layout.Subpass{{
				Input: []layout.Reference{{Attachment: 0, Layout: api.LayoutShaderReadOnly}},
				Color: []layout.Reference{colorRef},
			}},
		}, []hazard.Kind{hazard.IncompatibleLayout}},
		{"bad final layout", layout.Desc{
			Attachments: []layout.Attachment{{InitialLayout: api.LayoutUndefined, FinalLayout: api.LayoutUndefined}},
			Subpasses:   []layout.Subpass{{}},
		}, []hazard.Kind{hazard.IncompatibleLayout}},
		{"resolve count", layout.Desc{
			Attachments: []layout.Attachment{color, color},
			Subpasses: []layout.Subpass{{
				Resolve: []layout.Reference{{Attachment: 1, Layout: api.LayoutColorAttachment}},
			}},
		}, []hazard.Kind{hazard.InvalidAttachmentIndex}},
		{"no subpass", layout.Desc{}, []hazard.Kind{hazard.InvalidSubpassIndex}},
		{"dependency out of range", layout.Desc{
			Subpasses:    []layout.Subpass{{}},
			Dependencies: []layout.Dependency{{Src: 0, Dst: 1}},
		}, []hazard.Kind{hazard.InvalidSubpassIndex}},
		{"backwards dependency", layout.Desc{
			Subpasses:    []layout.Subpass{{}, {}},
			Dependencies: []layout.Dependency{{Src: 1, Dst: 0}, {Src: layout.External, Dst: layout.External}},
		}, []hazard.Kind{hazard.InvalidSubpassIndex, hazard.InvalidSubpassIndex}},
		{"every problem", layout.Desc{
			Attachments: []layout.Attachment{color},
			Subpasses: []layout.Subpass{{
				Color: []layout.Reference{{Attachment: 4, Layout: api.LayoutColorAttachment}},
				Input: []layout.Reference{{Attachment: 0, Layout: api.LayoutTransferSrc}},
			}},
			Dependencies: []layout.Dependency{{Src: 0, Dst: 3}},
		}, []hazard.Kind{hazard.IncompatibleLayout, hazard.InvalidAttachmentIndex, hazard.InvalidSubpassIndex}},
	} {
		ctx := log.Enter(ctx, test.name)
		rp, err := layout.NewRenderPass(test.desc)
		assert.For(ctx, "kinds").ThatSlice(errorKinds(err)).Equals(test.expected)
		assert.For(ctx, "render pass").ThatBoolean(rp != nil).Equals(err == nil)
	}
}

// singleColor is a render pass with one color attachment used in one
// subpass.
func singleColor(t testing.TB, initial, final api.Layout, load gputypes.LoadOp) *layout.RenderPass {
	rp, err := layout.NewRenderPass(layout.Desc{
		Name: "single",
		Attachments: []layout.Attachment{{
			Format:        gputypes.TextureFormatRGBA8Unorm,
			LoadOp:        load,
			StoreOp:       gputypes.StoreOpStore,
			InitialLayout: initial,
			FinalLayout:   final,
		}},
		Subpasses: []layout.Subpass{{
			Color: []layout.Reference{{Attachment: 0, Layout: api.LayoutColorAttachment}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return rp
}

func TestBeginUnknownInitialLayout(t *testing.T) {
	ctx := log.Testing(t)
	rp := singleColor(t, api.LayoutColorAttachment, api.LayoutColorAttachment, gputypes.LoadOpLoad)
	b := bind(1, image)

	tr := layout.NewTracker()
	inst, step := rp.Begin(tr, []layout.Binding{b})
	assert.For(ctx, "instance").That(inst).IsNotNil()
	assert.For(ctx, "unknown").ThatSlice(findingKinds(step.Findings)).Equals([]hazard.Kind{hazard.UnknownInitialLayout})
	assert.For(ctx, "class").That(step.Findings[0].Kind.Class()).Equals(hazard.Hazard)
	assert.For(ctx, "assumed").ThatInteger(len(step.Assume)).Equals(1)
	assert.For(ctx, "assumed layout").That(step.Assume[0].Layout).Equals(api.LayoutColorAttachment)

	// The image was moved to the initial layout by an earlier barrier.
	tr.Transition(1, b.Spans, api.LayoutUndefined, api.LayoutColorAttachment, 1, true)
	_, step = rp.Begin(tr, []layout.Binding{b})
	assert.For(ctx, "known").ThatSlice(step.Findings).IsEmpty()
	assert.For(ctx, "nothing assumed").ThatSlice(step.Assume).IsEmpty()
	assert.For(ctx, "no transitions").ThatSlice(transitions(step)).IsEmpty()
	assert.For(ctx, "checked").ThatBoolean(step.Checked).IsTrue()

	tr.Transition(1, b.Spans, api.LayoutColorAttachment, api.LayoutShaderReadOnly, 2, true)
	_, step = rp.Begin(tr, []layout.Binding{b})
	assert.For(ctx, "mismatch").ThatSlice(findingKinds(step.Findings)).Equals([]hazard.Kind{hazard.LayoutMismatch})
	assert.For(ctx, "expected").That(step.Findings[0].Expected).Equals(api.LayoutColorAttachment)
	assert.For(ctx, "actual").That(step.Findings[0].Actual).Equals(api.LayoutShaderReadOnly)

	// Undefined initial layouts discard whatever is there.
	undefined := singleColor(t, api.LayoutUndefined, api.LayoutColorAttachment, gputypes.LoadOpClear)
	_, step = undefined.Begin(tr, []layout.Binding{b})
	assert.For(ctx, "undefined").ThatSlice(step.Findings).IsEmpty()
	assert.For(ctx, "undefined transition").ThatSlice(transitions(step)).Equals([]string{"Undefined->ColorAttachment"})

	inst, step = rp.Begin(tr, nil)
	assert.For(ctx, "no bindings").That(inst).IsNil()
	assert.For(ctx, "binding count").ThatSlice(findingKinds(step.Findings)).Equals([]hazard.Kind{hazard.InvalidAttachmentIndex})
	assert.For(ctx, "config class").That(step.Findings[0].Kind.Class()).Equals(hazard.ConfigError)
}

func TestLoadStore(t *testing.T) {
	ctx := log.Testing(t)
	b := bind(1, image)
	tr := layout.NewTracker()
	for _, test := range []struct {
		name     string
		load     gputypes.LoadOp
		kind     api.AccessKind
		findings []hazard.Kind
	}{
		{"load", gputypes.LoadOpLoad, api.Read, []hazard.Kind{hazard.LayoutMismatch}},
		{"clear", gputypes.LoadOpClear, api.Write, []hazard.Kind{}},
		{"dont care", gputypes.LoadOpUndefined, api.Write, []hazard.Kind{}},
	} {
		ctx := log.Enter(ctx, test.name)
		rp := singleColor(t, api.LayoutUndefined, api.LayoutPresentSrc, test.load)
		inst, begin := rp.Begin(tr, []layout.Binding{b})
		assert.For(ctx, "findings").ThatSlice(findingKinds(begin.Findings)).Equals(test.findings)
		if len(begin.Findings) > 0 {
			assert.For(ctx, "message").ThatString(begin.Findings[0].Message).Contains("undefined contents")
			assert.For(ctx, "overlap").ThatSlice(begin.Findings[0].Overlap).Equals(b.Spans)
		}
		loads := ops(begin)
		assert.For(ctx, "loads").ThatInteger(len(loads)).Equals(1)
		assert.For(ctx, "load kind").That(loads[0].Kind).Equals(test.kind)
		assert.For(ctx, "load stage").That(loads[0].Stage).Equals(api.StageColorAttachmentOutput)

		end := inst.End()
		stores := ops(end)
		assert.For(ctx, "stores").ThatInteger(len(stores)).Equals(1)
		assert.For(ctx, "store kind").That(stores[0].Kind).Equals(api.Write)
		assert.For(ctx, "final").ThatSlice(transitions(end)).Equals([]string{"ColorAttachment->PresentSrc"})
		assert.For(ctx, "ended").ThatBoolean(inst.Ended()).IsTrue()
	}
}

func TestSubpasses(t *testing.T) {
	ctx := log.Testing(t)
	rp, err := layout.NewRenderPass(layout.Desc{
		Name: "deferred",
		Attachments: []layout.Attachment{
			{Format: gputypes.TextureFormatRGBA8Unorm, LoadOp: gputypes.LoadOpClear, StoreOp: gputypes.StoreOpDiscard,
				InitialLayout: api.LayoutUndefined, FinalLayout: api.LayoutShaderReadOnly},
			{Format: gputypes.TextureFormatRGBA8Unorm, LoadOp: gputypes.LoadOpClear, StoreOp: gputypes.StoreOpStore,
				InitialLayout: api.LayoutUndefined, FinalLayout: api.LayoutPresentSrc},
			{Format: gputypes.TextureFormatDepth32Float, LoadOp: gputypes.LoadOpClear, StoreOp: gputypes.StoreOpDiscard,
				InitialLayout: api.LayoutUndefined, FinalLayout: api.LayoutDepthStencilAttachment},
		},
		Subpasses: []layout.Subpass{
			{
				Color:        []layout.Reference{{Attachment: 0, Layout: api.LayoutColorAttachment}},
				DepthStencil: &layout.Reference{Attachment: 2, Layout: api.LayoutDepthStencilAttachment},
			},
			{
				Input: []layout.Reference{{Attachment: 0, Layout: api.LayoutShaderReadOnly}},
				Color: []layout.Reference{{Attachment: 1, Layout: api.LayoutColorAttachment}},
			},
		},
		Dependencies: []layout.Dependency{{
			Src: 0, Dst: 1,
			SrcStage: api.StageColorAttachmentOutput, SrcAccess: api.AccessColorAttachmentWrite,
			DstStage: api.StageFragmentShader, DstAccess: api.AccessInputAttachmentRead,
		}},
	})
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "subpasses").ThatInteger(rp.Subpasses()).Equals(2)

	tr := layout.NewTracker()
	bindings := []layout.Binding{bind(1, image), bind(2, image), bind(3, depth)}
	inst, begin := rp.Begin(tr, bindings)
	assert.For(ctx, "begin transitions").ThatSlice(transitions(begin)).Equals([]string{
		"Undefined->ColorAttachment", "Undefined->DepthStencilAttachment"})
	beginOps := ops(begin)
	assert.For(ctx, "begin loads").ThatInteger(len(beginOps)).Equals(2)
	assert.For(ctx, "depth load stage").That(beginOps[1].Stage).Equals(api.StageEarlyFragmentTests)

	next := inst.Next()
	assert.For(ctx, "subpass").ThatInteger(inst.Subpass()).Equals(1)
	assert.For(ctx, "next transitions").ThatSlice(transitions(next)).Equals([]string{
		"ColorAttachment->ShaderReadOnly", "Undefined->ColorAttachment"})
	for _, e := range next.Events {
		for _, b := range e.Barriers.Transitions() {
			if b.OldLayout == api.LayoutColorAttachment {
				assert.For(ctx, "guarded by dependency").That(b.SrcStage).Equals(api.StageColorAttachmentOutput)
				assert.For(ctx, "visible to input").That(b.DstAccess).Equals(api.AccessInputAttachmentRead)
			}
		}
	}
	// The depth attachment is last used by subpass 0 and attachment 1 is
	// first used by subpass 1.
	nextOps := ops(next)
	assert.For(ctx, "next ops").ThatInteger(len(nextOps)).Equals(2)
	assert.For(ctx, "depth store").That(nextOps[0].Resource).Equals(resource.Handle(3))
	assert.For(ctx, "depth store stage").That(nextOps[0].Stage).Equals(api.StageLateFragmentTests)
	assert.For(ctx, "color load").That(nextOps[1].Resource).Equals(resource.Handle(2))

	assert.For(ctx, "ordered").ThatInteger(len(inst.Ordered(api.Op{Resource: 2, Stage: api.StageColorAttachmentOutput}))).Equals(1)
	assert.For(ctx, "not attachment stage").ThatSlice(inst.Ordered(api.Op{Resource: 2, Stage: api.StageTransfer})).IsEmpty()
	assert.For(ctx, "not in subpass").ThatSlice(inst.Ordered(api.Op{Resource: 3, Stage: api.StageLateFragmentTests})).IsEmpty()

	past := inst.Next()
	assert.For(ctx, "past last").ThatSlice(findingKinds(past.Findings)).Equals([]hazard.Kind{hazard.InvalidSubpassIndex})

	end := inst.End()
	assert.For(ctx, "end findings").ThatSlice(end.Findings).IsEmpty()
	assert.For(ctx, "end transitions").ThatSlice(transitions(end)).Equals([]string{"ColorAttachment->PresentSrc"})
	assert.For(ctx, "final layout").That(inst.Layout(0)).Equals(api.LayoutShaderReadOnly)

	again := inst.End()
	assert.For(ctx, "ended").ThatSlice(findingKinds(again.Findings)).Equals([]hazard.Kind{hazard.RenderPassState})
}

func TestEndEarly(t *testing.T) {
	ctx := log.Testing(t)
	rp, err := layout.NewRenderPass(layout.Desc{
		Attachments: []layout.Attachment{{InitialLayout: api.LayoutUndefined, FinalLayout: api.LayoutGeneral}},
		Subpasses:   []layout.Subpass{{}, {}},
	})
	assert.For(ctx, "err").ThatError(err).Succeeded()
	inst, _ := rp.Begin(layout.NewTracker(), []layout.Binding{bind(1, image)})
	end := inst.End()
	assert.For(ctx, "state").ThatSlice(findingKinds(end.Findings)).Equals([]hazard.Kind{hazard.RenderPassState})
	// Attachments no subpass uses still reach their final layout.
	assert.For(ctx, "unused transition").ThatSlice(transitions(end)).Equals([]string{"Undefined->General"})
}
