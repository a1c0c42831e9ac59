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

package script

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/layout"
	"github.com/google/syncval/syncval/resource"
	"github.com/pkg/errors"
)

// parser converts the strings of a script, keeping the first error.
type parser struct {
	where string
	err   error
}

func (p *parser) fail(err error) {
	if p.err == nil && err != nil {
		p.err = errors.Wrap(err, p.where)
	}
}

func (p *parser) stage(s string) api.Stage {
	v, err := api.ParseStage(s)
	p.fail(err)
	return v
}

func (p *parser) access(s string) api.Access {
	v, err := api.ParseAccess(s)
	p.fail(err)
	return v
}

// layout parses a layout name. An empty name is api.LayoutAny.
func (p *parser) layout(s string) api.Layout {
	if s == "" {
		return api.LayoutAny
	}
	v, err := api.ParseLayout(s)
	p.fail(err)
	return v
}

func (p *parser) kind(s string) api.AccessKind {
	v, err := api.ParseAccessKind(s)
	p.fail(err)
	return v
}

func (p *parser) format(s string) gputypes.TextureFormat {
	if s == "" {
		return gputypes.TextureFormatUndefined
	}
	v, err := resource.ParseFormat(s)
	p.fail(err)
	return v
}

func (p *parser) aspects(s string) resource.Aspect {
	if s == "" {
		return 0
	}
	v, err := resource.ParseAspect(s)
	p.fail(err)
	return v
}

func (p *parser) loadOp(s string) gputypes.LoadOp {
	for op := gputypes.LoadOpUndefined; op <= gputypes.LoadOpClear; op++ {
		if strings.EqualFold(op.String(), s) {
			return op
		}
	}
	if s != "" {
		p.fail(fmt.Errorf("unknown load op %q", s))
	}
	return gputypes.LoadOpUndefined
}

func (p *parser) storeOp(s string) gputypes.StoreOp {
	for op := gputypes.StoreOpUndefined; op <= gputypes.StoreOpDiscard; op++ {
		if strings.EqualFold(op.String(), s) {
			return op
		}
	}
	if s != "" {
		p.fail(fmt.Errorf("unknown store op %q", s))
	}
	return gputypes.StoreOpUndefined
}

// Desc returns the resource description of r.
func (r Resource) Desc() (resource.Desc, error) {
	p := &parser{where: fmt.Sprintf("resource %d", r.Handle)}
	var d resource.Desc
	switch r.Kind {
	case "buffer":
		d = resource.NewBuffer(r.Name, r.Size)
	case "image":
		mips, layers := r.Mips, r.Layers
		if mips == 0 {
			mips = 1
		}
		if layers == 0 {
			layers = 1
		}
		d = resource.NewImage(r.Name, p.format(r.Format), mips, layers)
		d.Aspects = p.aspects(r.Aspects)
	default:
		p.fail(fmt.Errorf("unknown resource kind %q", r.Kind))
	}
	return d, p.err
}

// runner replays a script on a context.
type runner struct {
	c            *syncval.Context
	renderPasses map[string]*layout.RenderPass
	buffers      map[string]*syncval.CommandBuffer
}

// Run replays s on c, and returns the reports of every submission. Errors
// returned by c abort the run, with the reports gathered so far.
func Run(ctx context.Context, c *syncval.Context, s *Script) ([]hazard.Report, error) {
	r := &runner{
		c:            c,
		renderPasses: map[string]*layout.RenderPass{},
		buffers:      map[string]*syncval.CommandBuffer{},
	}
	for _, res := range s.Resources {
		d, err := res.Desc()
		if err != nil {
			return nil, err
		}
		if err := c.CreateResource(resource.Handle(res.Handle), d); err != nil {
			return nil, errors.Wrapf(err, "resource %d", res.Handle)
		}
	}
	for _, rp := range s.RenderPasses {
		if err := r.renderPass(rp); err != nil {
			return nil, err
		}
	}
	for _, cb := range s.CommandBuffers {
		if err := r.record(ctx, cb); err != nil {
			return nil, err
		}
	}
	out := []hazard.Report{}
	for i, step := range s.Steps {
		reports, err := r.step(ctx, step)
		out = append(out, reports...)
		if err != nil {
			return out, errors.Wrapf(err, "step %d", i)
		}
	}
	return out, nil
}

func (r *runner) renderPass(rp RenderPass) error {
	if _, dup := r.renderPasses[rp.Name]; dup {
		return fmt.Errorf("render pass %q declared twice", rp.Name)
	}
	p := &parser{where: fmt.Sprintf("render pass %q", rp.Name)}
	desc := layout.Desc{Name: rp.Name}
	for _, a := range rp.Attachments {
		desc.Attachments = append(desc.Attachments, layout.Attachment{
			Format:        p.format(a.Format),
			LoadOp:        p.loadOp(a.Load),
			StoreOp:       p.storeOp(a.Store),
			InitialLayout: p.layout(a.Initial),
			FinalLayout:   p.layout(a.Final),
		})
	}
	refs := func(in []Reference) []layout.Reference {
		out := make([]layout.Reference, len(in))
		for i, ref := range in {
			out[i] = layout.Reference{Attachment: ref.Attachment, Layout: p.layout(ref.Layout)}
		}
		return out
	}
	for _, sp := range rp.Subpasses {
		out := layout.Subpass{
			Input:   refs(sp.Input),
			Color:   refs(sp.Color),
			Resolve: refs(sp.Resolve),
		}
		if sp.DepthStencil != nil {
			out.DepthStencil = &refs([]Reference{*sp.DepthStencil})[0]
		}
		desc.Subpasses = append(desc.Subpasses, out)
	}
	for _, d := range rp.Dependencies {
		desc.Dependencies = append(desc.Dependencies, layout.Dependency{
			Src:       d.Src,
			Dst:       d.Dst,
			SrcStage:  p.stage(d.SrcStage),
			DstStage:  p.stage(d.DstStage),
			SrcAccess: p.access(d.SrcAccess),
			DstAccess: p.access(d.DstAccess),
		})
	}
	if p.err != nil {
		return p.err
	}
	built, err := layout.NewRenderPass(desc)
	if err != nil {
		return errors.Wrapf(err, "render pass %q", rp.Name)
	}
	r.renderPasses[rp.Name] = built
	return nil
}

// span returns the resource range of rng on resource h. Missing fields
// extend to the end of the resource, and a nil rng is the whole resource.
func (r *runner) span(h resource.Handle, rng *Range, p *parser) resource.Range {
	d, known := r.c.Resource(h)
	if rng == nil {
		if !known {
			return resource.Range{}
		}
		return d.Whole()
	}
	if !known || d.Kind == resource.Buffer {
		out := resource.Bytes(rng.Offset, rng.Size)
		if known && out.Size == 0 && out.Offset < d.Size {
			out.Size = d.Size - out.Offset
		}
		return out
	}
	out := resource.Subresources(p.aspects(rng.Aspects), rng.BaseMip, rng.MipCount, rng.BaseLayer, rng.LayerCount)
	if out.Aspects == 0 {
		out.Aspects = d.AspectMask()
	}
	if out.MipCount == 0 && out.BaseMip < d.MipLevels {
		out.MipCount = d.MipLevels - out.BaseMip
	}
	if out.LayerCount == 0 && out.BaseLayer < d.ArrayLayers {
		out.LayerCount = d.ArrayLayers - out.BaseLayer
	}
	return out
}

func (r *runner) record(ctx context.Context, in CommandBuffer) error {
	if _, dup := r.buffers[in.Name]; dup {
		return fmt.Errorf("command buffer %q declared twice", in.Name)
	}
	cb := syncval.NewCommandBuffer(in.Name)
	if err := cb.Begin(); err != nil {
		return err
	}
	for i, cmd := range in.Commands {
		if err := r.command(cb, cmd); err != nil {
			return errors.Wrapf(err, "command buffer %q command %d", in.Name, i)
		}
	}
	if err := cb.End(); err != nil {
		return errors.Wrapf(err, "command buffer %q", in.Name)
	}
	if err := cb.Err(); err != nil {
		log.W(ctx, "Command buffer %q recorded with errors: %v", in.Name, err)
	}
	r.buffers[in.Name] = cb
	return nil
}

func (r *runner) command(cb *syncval.CommandBuffer, cmd Command) error {
	p := &parser{where: cmd.Op}
	h := resource.Handle(cmd.Resource)
	switch cmd.Op {
	case "access":
		op := api.Op{
			Resource: h,
			Range:    r.span(h, cmd.Range, p),
			Kind:     p.kind(cmd.Kind),
			Stage:    p.stage(cmd.Stage),
			Access:   p.access(cmd.Access),
			Layout:   p.layout(cmd.Layout),
			Label:    cmd.Label,
		}
		if p.err == nil {
			cb.Record(op)
		}
	case "barrier":
		set := barrier.Set{}
		for _, e := range cmd.Entries {
			set.Add(r.entry(e, p))
		}
		if p.err == nil {
			cb.Barrier(set...)
		}
	case "transition":
		rng, from, to := r.span(h, cmd.Range, p), p.layout(cmd.From), p.layout(cmd.To)
		if p.err == nil {
			cb.LayoutTransition(h, rng, from, to)
		}
	case "begin_render_pass":
		rp, ok := r.renderPasses[cmd.RenderPass]
		if !ok {
			return fmt.Errorf("unknown render pass %q", cmd.RenderPass)
		}
		attachments := make([]syncval.Attachment, len(cmd.Attachments))
		for i, b := range cmd.Attachments {
			bh := resource.Handle(b.Resource)
			attachments[i] = syncval.Attachment{Resource: bh, Range: r.span(bh, b.Range, p)}
		}
		if p.err == nil {
			cb.BeginRenderPass(rp, attachments...)
		}
	case "next_subpass":
		cb.NextSubpass()
	case "end_render_pass":
		cb.EndRenderPass()
	case "execute":
		secondaries := make([]*syncval.CommandBuffer, len(cmd.CommandBuffers))
		for i, name := range cmd.CommandBuffers {
			s, ok := r.buffers[name]
			if !ok {
				return fmt.Errorf("unknown command buffer %q", name)
			}
			secondaries[i] = s
		}
		cb.ExecuteCommands(secondaries...)
	default:
		return fmt.Errorf("unknown command %q", cmd.Op)
	}
	return p.err
}

func (r *runner) entry(e Entry, p *parser) barrier.Entry {
	src, srcAccess := p.stage(e.SrcStage), p.access(e.SrcAccess)
	dst, dstAccess := p.stage(e.DstStage), p.access(e.DstAccess)
	if e.Resource == 0 {
		return barrier.Memory(src, srcAccess, dst, dstAccess)
	}
	h := resource.Handle(e.Resource)
	rng := r.span(h, e.Range, p)
	if d, ok := r.c.Resource(h); ok && d.Kind == resource.Buffer && e.OldLayout == "" && e.NewLayout == "" {
		return barrier.Buffer(h, rng, src, srcAccess, dst, dstAccess)
	}
	return barrier.Image(h, rng, src, srcAccess, dst, dstAccess, p.layout(e.OldLayout), p.layout(e.NewLayout))
}

func (r *runner) step(ctx context.Context, s Step) ([]hazard.Report, error) {
	set := 0
	for _, b := range []bool{s.Submit != nil, s.WaitFence != 0, s.QueueWaitIdle != nil, s.DeviceWaitIdle, s.Destroy != 0, s.Trim} {
		if b {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("a step does exactly one thing, got %d", set)
	}
	switch {
	case s.Submit != nil:
		sub, err := r.submission(*s.Submit)
		if err != nil {
			return nil, err
		}
		_, reports, err := r.c.Submit(ctx, sub)
		return reports, err
	case s.WaitFence != 0:
		return nil, r.c.WaitFence(ctx, syncval.FenceID(s.WaitFence))
	case s.QueueWaitIdle != nil:
		return nil, r.c.QueueWaitIdle(ctx, api.QueueID(*s.QueueWaitIdle))
	case s.DeviceWaitIdle:
		return nil, r.c.DeviceWaitIdle(ctx)
	case s.Destroy != 0:
		return nil, r.c.DestroyResource(ctx, resource.Handle(s.Destroy))
	default:
		log.D(ctx, "Trimmed %d records", r.c.Trim(ctx))
		return nil, nil
	}
}

func (r *runner) submission(in Submit) (syncval.Submission, error) {
	p := &parser{where: "submit"}
	sub := syncval.Submission{Queue: api.QueueID(in.Queue), Fence: syncval.FenceID(in.Fence)}
	for _, name := range in.CommandBuffers {
		cb, ok := r.buffers[name]
		if !ok {
			return sub, fmt.Errorf("unknown command buffer %q", name)
		}
		sub.CommandBuffers = append(sub.CommandBuffers, cb)
	}
	for _, w := range in.Waits {
		sub.Waits = append(sub.Waits, syncval.Wait{Semaphore: syncval.SemaphoreID(w.Semaphore), Stage: p.stage(w.Stage)})
	}
	for _, s := range in.Signals {
		sub.Signals = append(sub.Signals, syncval.SemaphoreID(s))
	}
	return sub, p.err
}

// Check returns an error unless the kinds of reports are those of expect, in
// any order.
func Check(reports []hazard.Report, expect []string) error {
	want := make([]string, 0, len(expect))
	for _, e := range expect {
		k, err := hazard.ParseKind(e)
		if err != nil {
			return err
		}
		want = append(want, k.String())
	}
	got := make([]string, 0, len(reports))
	for _, r := range reports {
		got = append(got, r.Kind.String())
	}
	sort.Strings(want)
	sort.Strings(got)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("got reports [%s], expected [%s]", strings.Join(got, ", "), strings.Join(want, ", "))
	}
	return nil
}
