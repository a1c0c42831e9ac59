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

package syncval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/syncval/core/log"
	"github.com/google/syncval/core/math/interval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
	"github.com/google/syncval/syncval/config"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/layout"
	"github.com/google/syncval/syncval/resource"
	"github.com/google/syncval/syncval/timeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// applier applies the commands of a submission to the timelines of its
// queue.
type applier struct {
	c    *Context
	q    *queue
	s    *submission
	h    hazard.Horizon
	inst *layout.Instance
	span trace.Span

	reports []hazard.Report
}

// apply applies submission s to queue q, and returns what it reports.
func (c *Context) apply(ctx context.Context, q *queue, s *submission) []hazard.Report {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "syncval.Apply", trace.WithAttributes(
		attribute.String("session", c.session),
		attribute.Int64("submission", int64(s.id)),
		attribute.Int64("queue", int64(q.id)),
		attribute.Int("command_buffers", len(s.buffers)),
	))
	defer span.End()

	a := &applier{
		c:    c,
		q:    q,
		s:    s,
		h:    hazard.Horizon{Queue: q.id, Host: s.host, Known: q.known},
		span: span,
	}
	a.waits(ctx)
	for _, events := range s.events {
		a.inst = nil
		for _, e := range events {
			a.event(ctx, e)
		}
	}
	a.signals(ctx)

	if f, ok := c.fences[s.fence]; ok && s.fence != 0 && f.sub == s.id {
		f.queue, f.tag, f.applied = q.id, q.last, true
	}
	s.last = q.last
	q.inflight = append(q.inflight, s)
	c.metrics.Submissions.WithLabelValues("applied").Inc()

	out := a.reports
	hazard.Sort(out)
	if limit := c.cfg.MaxReports; limit > 0 && len(out) > limit {
		dropped := len(out) - limit
		log.W(ctx, "Dropped %d of %d reports", dropped, len(out))
		c.metrics.Dropped.Add(float64(dropped))
		out = out[:limit]
	}
	for _, r := range out {
		c.metrics.Reports.WithLabelValues(r.Kind.String(), r.Class.String()).Inc()
		if c.sink != nil {
			c.sink.Report(ctx, r)
		}
	}
	span.SetAttributes(attribute.Int("reports", len(out)))
	span.SetStatus(codes.Ok, "")
	c.metrics.Apply.Observe(time.Since(start).Seconds())
	return out
}

// waits imports the work ordered before the semaphores waited on.
func (a *applier) waits(ctx context.Context) {
	c := a.c
	for _, w := range a.s.waits {
		sem := c.semaphores[w.Semaphore]
		stage := w.Stage
		if stage == 0 {
			stage = api.StageAllCommands
		}
		e := barrier.Entry{
			SrcStage:  api.StageAllCommands | api.StageHost,
			SrcAccess: api.AccessMemoryRead | api.AccessMemoryWrite,
			DstStage:  stage,
			DstAccess: api.AccessMemoryRead | api.AccessMemoryWrite,
			Scope:     barrier.QueueSubmissionBoundary,
		}
		for _, h := range sortedHandles(sem.snapshot) {
			d, ok := c.resources[h]
			if !ok {
				continue
			}
			if err := a.timeline(h, d).Import(sem.snapshot[h], e, a.h); err != nil {
				a.internal(ctx, err)
			}
		}
		a.q.known.Merge(sem.known)
		a.q.known.Advance(sem.queue, sem.tag)
		if config.DebugSync {
			log.D(ctx, "Waited for semaphore %d signalled by %v at #%d", w.Semaphore, sem.queue, sem.tag)
		}
		sem.signaled, sem.snapshot, sem.known = false, nil, nil
	}
}

// signals captures the timelines of the queue for the semaphores signalled.
func (a *applier) signals(ctx context.Context) {
	c, q := a.c, a.q
	for _, id := range a.s.signals {
		sem := c.semaphore(id)
		if sem.signaled {
			log.W(ctx, "Semaphore %d signalled again before being waited on", id)
		}
		snap := map[resource.Handle]*timeline.Timeline{}
		for h, byQueue := range c.timelines {
			if tl, ok := byQueue[q.id]; ok {
				snap[h] = tl.Snapshot()
			}
		}
		sem.signaled, sem.queue, sem.tag = true, q.id, q.last
		sem.snapshot, sem.known = snap, q.known.Clone()
	}
}

func (a *applier) event(ctx context.Context, e event) {
	loc := e.loc
	loc.Submission = uint64(a.s.id)
	switch e.kind {
	case opEvent:
		a.access(ctx, loc, e.op, true)
	case barrierEvent:
		a.barriers(ctx, loc, e.barriers, false)
	case beginRenderPassEvent:
		a.beginRenderPass(ctx, loc, e)
	case nextSubpassEvent:
		// A nil instance means the render pass failed to begin, which has
		// been reported already.
		if a.inst != nil {
			a.step(ctx, loc, a.inst.Next())
		}
	case endRenderPassEvent:
		if a.inst != nil {
			a.step(ctx, loc, a.inst.End())
			a.inst = nil
		}
	case errorEvent:
		a.configError(loc, 0, resource.Range{}, e.err.Kind, e.err.Message)
	}
}

// access checks op against the earlier accesses of every queue, then records
// it on the timeline of the queue. Inside a subpass, ordered attachment
// accesses are first made to follow the earlier ones.
func (a *applier) access(ctx context.Context, loc api.Locator, op api.Op, ordered bool) {
	c := a.c
	d, ok := c.resources[op.Resource]
	if !ok {
		a.configError(loc, op.Resource, op.Range, hazard.UnknownResource, fmt.Sprintf("%v is not a live resource", op.Resource))
		return
	}
	spans, err := d.Spans(op.Range)
	if err != nil {
		a.configError(loc, op.Resource, op.Range, hazard.InvalidRange, fmt.Sprintf("%v is out of %v %q", op.Range, d.Kind, d.Name))
		return
	}
	if ordered && a.inst != nil {
		if set := a.inst.Ordered(op); len(set) > 0 {
			a.barriers(ctx, loc, set, true)
		}
	}
	if op.Label != "" {
		loc.Label = op.Label
	}
	rec := &api.AccessRecord{
		Resource: op.Resource,
		Range:    op.Range,
		Kind:     op.Kind,
		Stage:    op.Stage,
		Access:   op.Access,
		Tag:      c.nextTag(),
		Queue:    a.q.id,
		Locator:  loc,
	}
	a.q.last = rec.Tag
	if config.DebugSync {
		log.D(ctx, "Access %v", rec)
	}

	if d.Kind == resource.Image {
		a.found(d, rec, c.layouts.Expect(op.Resource, spans, op.Layout, op.Kind))
	}
	a.foreign(ctx, op.Resource, d, func(tl *timeline.Timeline) ([]hazard.Finding, error) {
		return tl.Check(rec, spans, a.h)
	}, rec)
	found, err := a.timeline(op.Resource, d).Record(rec, spans, a.h)
	if err != nil {
		a.internal(ctx, err)
	}
	a.found(d, rec, found)
	c.metrics.Accesses.WithLabelValues(op.Kind.String()).Inc()
}

// barriers applies a set of dependencies that take effect together to the
// timelines of the queue. Layout transitions are checked and recorded first.
// If checked is set the source layouts of the transitions are not checked.
func (a *applier) barriers(ctx context.Context, loc api.Locator, set barrier.Set, checked bool) {
	c := a.c
	var globals []timeline.Dependency
	perResource := map[resource.Handle][]timeline.Dependency{}
	for _, e := range set {
		c.metrics.Barriers.Inc()
		if e.Global() {
			globals = append(globals, timeline.Dependency{Barrier: hazard.NewBarrier(e, nil)})
			continue
		}
		h := e.Resource
		d, ok := c.resources[h]
		if !ok {
			a.configError(loc, h, e.Range, hazard.UnknownResource, fmt.Sprintf("barrier on %v which is not a live resource", h))
			continue
		}
		spans, err := d.Spans(e.Range)
		if err != nil {
			a.configError(loc, h, e.Range, hazard.InvalidRange, fmt.Sprintf("barrier on %v is out of %v %q", e.Range, d.Kind, d.Name))
			continue
		}
		if !e.IsTransition() {
			if d.Kind == resource.Image && !checked && e.OldLayout != api.LayoutAny {
				rec := &api.AccessRecord{Resource: h, Range: e.Range, Kind: api.LayoutTransition, Tag: c.tag, Queue: a.q.id, Locator: loc}
				a.found(d, rec, c.layouts.Expect(h, spans, e.OldLayout, api.Write))
			}
			perResource[h] = append(perResource[h], timeline.Dependency{Barrier: hazard.NewBarrier(e, nil), Spans: spans})
			continue
		}
		if d.Kind != resource.Image {
			a.configError(loc, h, e.Range, hazard.IncompatibleLayout, fmt.Sprintf("layout transition of %v %q", d.Kind, d.Name))
			continue
		}

		rec := &api.AccessRecord{
			Resource: h,
			Range:    e.Range,
			Kind:     api.LayoutTransition,
			Tag:      c.nextTag(),
			Queue:    a.q.id,
			Locator:  loc,
		}
		a.q.last = rec.Tag
		b := hazard.NewBarrier(e, rec)
		if config.DebugSync {
			log.D(ctx, "Transition %v", e)
		}
		a.foreign(ctx, h, d, func(tl *timeline.Timeline) ([]hazard.Finding, error) {
			return tl.Check(rec, spans, a.h)
		}, rec)
		found, err := a.timeline(h, d).CheckTransition(b, spans, a.h)
		if err != nil {
			a.internal(ctx, err)
		}
		a.found(d, rec, found)
		a.found(d, rec, c.layouts.Transition(h, spans, e.OldLayout, e.NewLayout, rec.Tag, !checked))
		perResource[h] = append(perResource[h], timeline.Dependency{Barrier: b, Spans: spans})
		c.metrics.Accesses.WithLabelValues(api.LayoutTransition.String()).Inc()
	}

	for h, byQueue := range c.timelines {
		tl, ok := byQueue[a.q.id]
		if !ok {
			continue
		}
		deps := append(append([]timeline.Dependency(nil), globals...), perResource[h]...)
		if len(deps) == 0 {
			continue
		}
		if err := tl.Apply(deps); err != nil {
			a.internal(ctx, err)
		}
	}
}

func (a *applier) beginRenderPass(ctx context.Context, loc api.Locator, e event) {
	c := a.c
	bindings := make([]layout.Binding, len(e.attachments))
	for i, att := range e.attachments {
		d, ok := c.resources[att.Resource]
		switch {
		case !ok:
			a.configError(loc, att.Resource, att.Range, hazard.UnknownResource,
				fmt.Sprintf("attachment %d is bound to %v which is not a live resource", i, att.Resource))
			return
		case d.Kind != resource.Image:
			a.configError(loc, att.Resource, att.Range, hazard.InvalidAttachmentIndex,
				fmt.Sprintf("attachment %d is bound to %v %q", i, d.Kind, d.Name))
			return
		}
		spans, err := d.Spans(att.Range)
		if err != nil {
			a.configError(loc, att.Resource, att.Range, hazard.InvalidRange,
				fmt.Sprintf("attachment %d is bound to %v, out of %q", i, att.Range, d.Name))
			return
		}
		bindings[i] = layout.Binding{Resource: att.Resource, Range: att.Range, Spans: spans}
	}
	inst, step := e.renderPass.Begin(c.layouts, bindings)
	a.inst = inst
	a.step(ctx, loc, step)
}

// step applies what a render pass instance does as it begins, moves to the
// next subpass or ends.
func (a *applier) step(ctx context.Context, loc api.Locator, step layout.Step) {
	c := a.c
	for _, f := range step.Findings {
		d := c.resources[f.Resource]
		rec := &api.AccessRecord{Resource: f.Resource, Range: f.Range, Tag: c.tag, Queue: a.q.id, Locator: loc}
		a.found(d, rec, []hazard.Finding{f.Finding})
	}
	for _, as := range step.Assume {
		c.layouts.Transition(as.Resource, as.Spans, api.LayoutAny, as.Layout, c.tag, false)
	}
	for _, ev := range step.Events {
		if ev.Op != nil {
			a.access(ctx, loc, *ev.Op, false)
		} else {
			a.barriers(ctx, loc, ev.Barriers, step.Checked)
		}
	}
}

// foreign runs check on the timelines of resource h on the other queues,
// in queue order.
func (a *applier) foreign(ctx context.Context, h resource.Handle, d resource.Desc,
	check func(*timeline.Timeline) ([]hazard.Finding, error), rec *api.AccessRecord) {
	byQueue := a.c.timelines[h]
	queues := make([]api.QueueID, 0, len(byQueue))
	for q := range byQueue {
		if q != a.q.id {
			queues = append(queues, q)
		}
	}
	sort.Slice(queues, func(i, j int) bool { return queues[i] < queues[j] })
	for _, q := range queues {
		found, err := check(byQueue[q])
		if err != nil {
			a.internal(ctx, err)
			continue
		}
		a.found(d, rec, found)
	}
}

// timeline returns the timeline of resource h on the queue, creating it if
// needed.
func (a *applier) timeline(h resource.Handle, d resource.Desc) *timeline.Timeline {
	c := a.c
	byQueue, ok := c.timelines[h]
	if !ok {
		byQueue = map[api.QueueID]*timeline.Timeline{}
		c.timelines[h] = byQueue
	}
	tl, ok := byQueue[a.q.id]
	if !ok {
		tl = timeline.New(h, a.q.id, d.Extent())
		byQueue[a.q.id] = tl
		c.metrics.Timelines.Set(float64(c.countTimelines()))
	}
	return tl
}

// found turns the findings of rec into reports.
func (a *applier) found(d resource.Desc, rec *api.AccessRecord, findings []hazard.Finding) {
	for _, f := range findings {
		r := hazard.Report{
			Kind:     f.Kind,
			Class:    f.Kind.Class(),
			Session:  a.c.session,
			Resource: rec.Resource,
			Name:     d.Name,
			Queue:    a.q.id,
			RangeB:   rec.Range,
			TagA:     f.Tag(),
			TagB:     rec.Tag,
			LocatorB: rec.Locator,
			Overlap:  describe(d, f.Overlap),
			Expected: f.Expected,
			Actual:   f.Actual,
			Message:  f.Message,
		}
		if p := f.Prior; p != nil {
			r.RangeA, r.LocatorA = p.Range, p.Locator
			if p.Queue != a.q.id {
				msg := fmt.Sprintf("prior access on %v", p.Queue)
				if r.Message != "" {
					msg = r.Message + ", " + msg
				}
				r.Message = msg
			}
		}
		a.reports = append(a.reports, r)
	}
}

func (a *applier) configError(loc api.Locator, h resource.Handle, rng resource.Range, k hazard.Kind, msg string) {
	rec := &api.AccessRecord{Resource: h, Range: rng, Tag: a.c.tag, Queue: a.q.id, Locator: loc}
	a.found(a.c.resources[h], rec, []hazard.Finding{{Kind: k, Message: msg}})
}

// internal logs an error of the timelines. These only come from corrupted
// interval maps.
func (a *applier) internal(ctx context.Context, err error) {
	log.E(ctx, "Applying submission %d: %v", a.s.id, err)
	a.span.RecordError(err)
	a.span.SetStatus(codes.Error, err.Error())
}

func describe(d resource.Desc, spans interval.U64SpanList) string {
	if len(spans) == 0 {
		return ""
	}
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = d.Describe(s)
	}
	return strings.Join(parts, ", ")
}

func sortedHandles(m map[resource.Handle]*timeline.Timeline) []resource.Handle {
	out := make([]resource.Handle, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
