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

package syncval_test

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/syncval/core/assert"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
	"github.com/google/syncval/syncval/config"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/layout"
	"github.com/google/syncval/syncval/resource"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	buf resource.Handle = 1
	img resource.Handle = 2

	gfx     api.QueueID = 0
	compute api.QueueID = 1

	size = 64 * 1024
)

var (
	whole     = resource.Bytes(0, size)
	lowerHalf = resource.Bytes(0, size/2)
	upperHalf = resource.Bytes(size/2, size/2)
	allColor  = resource.Subresources(resource.AspectColor, 0, 1, 0, 1)
)

func newContext(ctx context.Context, t testing.TB, cfg config.Config, sink hazard.Sink) *syncval.Context {
	c := syncval.New(ctx, syncval.Options{Config: cfg, Sink: sink})
	if err := c.CreateResource(buf, resource.NewBuffer("staging", size)); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateResource(img, resource.NewImage("target", gputypes.TextureFormatRGBA8Unorm, 1, 1)); err != nil {
		t.Fatal(err)
	}
	return c
}

// record returns an executable command buffer holding what f records.
func record(t testing.TB, name string, f func(cb *syncval.CommandBuffer)) *syncval.CommandBuffer {
	cb := syncval.NewCommandBuffer(name)
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	f(cb)
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	return cb
}

func submit(t testing.TB, ctx context.Context, c *syncval.Context, sub syncval.Submission) []hazard.Report {
	_, reports, err := c.Submit(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	return reports
}

func kinds(reports []hazard.Report) []hazard.Kind {
	out := make([]hazard.Kind, len(reports))
	for i, r := range reports {
		out[i] = r.Kind
	}
	return out
}

func copyWrite(cb *syncval.CommandBuffer, r resource.Range) {
	cb.Access(buf, r, api.Write, api.StageTransfer, api.AccessTransferWrite)
}

func shaderRead(cb *syncval.CommandBuffer, r resource.Range) {
	cb.Access(buf, r, api.Read, api.StageComputeShader, api.AccessShaderRead)
}

func TestSingleQueue(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name   string
		record func(cb *syncval.CommandBuffer)
		expect []hazard.Kind
	}{
		{"read after write", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, whole)
			shaderRead(cb, whole)
		}, []hazard.Kind{hazard.ReadAfterWrite}},
		{"read after write with barrier", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, whole)
			cb.Barrier(barrier.Buffer(buf, whole,
				api.StageTransfer, api.AccessTransferWrite,
				api.StageComputeShader, api.AccessShaderRead))
			shaderRead(cb, whole)
		}, []hazard.Kind{}},
		{"barrier on another access", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, whole)
			cb.Barrier(barrier.Buffer(buf, whole,
				api.StageTransfer, api.AccessTransferWrite,
				api.StageComputeShader, api.AccessUniformRead))
			shaderRead(cb, whole)
		}, []hazard.Kind{hazard.ReadAfterWrite}},
		{"barrier on another range", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, whole)
			cb.Barrier(barrier.Buffer(buf, lowerHalf,
				api.StageTransfer, api.AccessTransferWrite,
				api.StageComputeShader, api.AccessShaderRead))
			shaderRead(cb, upperHalf)
		}, []hazard.Kind{hazard.ReadAfterWrite}},
		{"global barrier", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, whole)
			cb.Barrier(barrier.Memory(
				api.StageTransfer, api.AccessTransferWrite,
				api.StageComputeShader, api.AccessShaderRead))
			shaderRead(cb, whole)
		}, []hazard.Kind{}},
		{"disjoint ranges", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, lowerHalf)
			shaderRead(cb, upperHalf)
		}, []hazard.Kind{}},
		{"read after read", func(cb *syncval.CommandBuffer) {
			shaderRead(cb, whole)
			shaderRead(cb, whole)
		}, []hazard.Kind{}},
		{"write after read", func(cb *syncval.CommandBuffer) {
			shaderRead(cb, whole)
			copyWrite(cb, whole)
		}, []hazard.Kind{hazard.WriteAfterRead}},
		{"write after read with execution barrier", func(cb *syncval.CommandBuffer) {
			shaderRead(cb, whole)
			cb.Barrier(barrier.Execution(api.StageComputeShader, api.StageTransfer))
			copyWrite(cb, whole)
		}, []hazard.Kind{}},
		{"write after unsynchronized read of a write", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, whole)
			shaderRead(cb, whole)
			cb.Barrier(barrier.Execution(api.StageComputeShader, api.StageTransfer))
			copyWrite(cb, whole)
		}, []hazard.Kind{hazard.ReadAfterWrite, hazard.WriteAfterWrite}},
		{"write after write", func(cb *syncval.CommandBuffer) {
			copyWrite(cb, whole)
			copyWrite(cb, lowerHalf)
		}, []hazard.Kind{hazard.WriteAfterWrite}},
	} {
		ctx := log.Enter(ctx, test.name)
		c := newContext(ctx, t, config.Default(), nil)
		cb := record(t, "cb", test.record)
		got := submit(t, ctx, c, syncval.Submission{Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{cb}})
		assert.For(ctx, "kinds").ThatSlice(kinds(got)).Equals(test.expect)
	}
}

func TestReportDetails(t *testing.T) {
	ctx := log.Testing(t)
	sink := &hazard.Collector{}
	c := newContext(ctx, t, config.Default(), sink)
	cb := record(t, "upload", func(cb *syncval.CommandBuffer) {
		copyWrite(cb, whole)
		shaderRead(cb, whole)
	})
	id, got, err := c.Submit(ctx, syncval.Submission{Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{cb}})
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "reports").ThatSlice(got).IsLength(1)
	r := got[0]
	assert.For(ctx, "class").That(r.Class).Equals(hazard.Hazard)
	assert.For(ctx, "session").ThatString(r.Session).Equals(c.Session())
	assert.For(ctx, "resource").That(r.Resource).Equals(buf)
	assert.For(ctx, "name").ThatString(r.Name).Equals("staging")
	assert.For(ctx, "queue").That(r.Queue).Equals(gfx)
	assert.For(ctx, "ranges").That([]resource.Range{r.RangeA, r.RangeB}).DeepEquals([]resource.Range{whole, whole})
	assert.For(ctx, "tag order").ThatBoolean(r.TagA < r.TagB).IsTrue()
	assert.For(ctx, "prior").ThatInteger(r.LocatorA.Index).Equals(0)
	assert.For(ctx, "current").ThatInteger(r.LocatorB.Index).Equals(1)
	assert.For(ctx, "buffer").ThatString(r.LocatorB.CommandBuffer).Equals("upload")
	assert.For(ctx, "submission").That(r.LocatorB.Submission).Equals(uint64(id))
	assert.For(ctx, "sink").ThatSlice(sink.Reports()).DeepEquals(got)
	assert.For(ctx, "count").ThatInteger(sink.Count(hazard.ReadAfterWrite)).Equals(1)
}

func TestCrossQueue(t *testing.T) {
	ctx := log.Testing(t)
	writer := func() *syncval.CommandBuffer {
		return record(t, "writer", func(cb *syncval.CommandBuffer) { copyWrite(cb, whole) })
	}
	reader := func() *syncval.CommandBuffer {
		return record(t, "reader", func(cb *syncval.CommandBuffer) { shaderRead(cb, whole) })
	}

	{
		ctx := log.Enter(ctx, "unsynchronized")
		c := newContext(ctx, t, config.Default(), nil)
		assert.For(ctx, "write").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{writer()},
		})).IsEmpty()
		got := submit(t, ctx, c, syncval.Submission{Queue: compute, CommandBuffers: []*syncval.CommandBuffer{reader()}})
		assert.For(ctx, "kinds").ThatSlice(kinds(got)).Equals([]hazard.Kind{hazard.ReadAfterWrite})
		assert.For(ctx, "queue").That(got[0].Queue).Equals(compute)
		assert.For(ctx, "message").ThatString(got[0].Message).Contains(gfx.String())
	}

	{
		ctx := log.Enter(ctx, "semaphore")
		c := newContext(ctx, t, config.Default(), nil)
		assert.For(ctx, "write").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{writer()}, Signals: []syncval.SemaphoreID{1},
		})).IsEmpty()
		assert.For(ctx, "read").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue:          compute,
			CommandBuffers: []*syncval.CommandBuffer{reader()},
			Waits:          []syncval.Wait{{Semaphore: 1, Stage: api.StageComputeShader}},
		})).IsEmpty()
		// Nothing orders a later write on the first queue after either access.
		assert.For(ctx, "write again").ThatSlice(kinds(submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{writer()},
		}))).Equals([]hazard.Kind{hazard.WriteAfterWrite, hazard.WriteAfterRead})
	}

	{
		ctx := log.Enter(ctx, "wait before signal")
		c := newContext(ctx, t, config.Default(), nil)
		assert.For(ctx, "read").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue:          compute,
			CommandBuffers: []*syncval.CommandBuffer{reader()},
			Waits:          []syncval.Wait{{Semaphore: 1}},
		})).IsEmpty()
		assert.For(ctx, "pending").ThatInteger(c.Pending()).Equals(1)
		assert.For(ctx, "idle").ThatError(c.DeviceWaitIdle(ctx)).HasCause(syncval.ErrQueuePending)
		assert.For(ctx, "queue idle").ThatError(c.QueueWaitIdle(ctx, compute)).HasCause(syncval.ErrQueuePending)
		assert.For(ctx, "write").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{writer()}, Signals: []syncval.SemaphoreID{1},
		})).IsEmpty()
		assert.For(ctx, "released").ThatInteger(c.Pending()).Equals(0)
		assert.For(ctx, "idle").ThatError(c.DeviceWaitIdle(ctx)).Succeeded()
	}

	{
		ctx := log.Enter(ctx, "host wait")
		c := newContext(ctx, t, config.Default(), nil)
		submit(t, ctx, c, syncval.Submission{Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{writer()}})
		assert.For(ctx, "idle").ThatError(c.QueueWaitIdle(ctx, gfx)).Succeeded()
		assert.For(ctx, "read").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue: compute, CommandBuffers: []*syncval.CommandBuffer{reader()},
		})).IsEmpty()
	}
}

func TestLayoutTransitions(t *testing.T) {
	ctx := log.Testing(t)
	upload := func(cb *syncval.CommandBuffer) {
		cb.LayoutTransition(img, allColor, api.LayoutUndefined, api.LayoutTransferDst)
		cb.AccessImage(img, allColor, api.Write, api.StageTransfer, api.AccessTransferWrite, api.LayoutTransferDst)
	}
	sample := func(cb *syncval.CommandBuffer) {
		cb.AccessImage(img, allColor, api.Read, api.StageFragmentShader, api.AccessShaderRead, api.LayoutShaderReadOnly)
	}
	for _, test := range []struct {
		name   string
		record func(cb *syncval.CommandBuffer)
		expect []hazard.Kind
	}{
		{"upload then sample", func(cb *syncval.CommandBuffer) {
			upload(cb)
			cb.Barrier(barrier.Image(img, allColor,
				api.StageTransfer, api.AccessTransferWrite,
				api.StageFragmentShader, api.AccessShaderRead,
				api.LayoutTransferDst, api.LayoutShaderReadOnly))
			sample(cb)
		}, []hazard.Kind{}},
		{"missing barrier", func(cb *syncval.CommandBuffer) {
			upload(cb)
			sample(cb)
		}, []hazard.Kind{hazard.LayoutMismatch, hazard.ReadAfterWrite}},
		{"transition from the wrong layout", func(cb *syncval.CommandBuffer) {
			cb.LayoutTransition(img, allColor, api.LayoutTransferSrc, api.LayoutShaderReadOnly)
		}, []hazard.Kind{hazard.LayoutMismatch}},
		{"read of undefined contents", func(cb *syncval.CommandBuffer) {
			cb.AccessImage(img, allColor, api.Read, api.StageTransfer, api.AccessTransferRead, api.LayoutUndefined)
		}, []hazard.Kind{hazard.LayoutMismatch}},
		{"buffer transition", func(cb *syncval.CommandBuffer) {
			cb.LayoutTransition(buf, whole, api.LayoutUndefined, api.LayoutGeneral)
		}, []hazard.Kind{hazard.IncompatibleLayout}},
	} {
		ctx := log.Enter(ctx, test.name)
		c := newContext(ctx, t, config.Default(), nil)
		got := submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{record(t, "cb", test.record)},
		})
		assert.For(ctx, "kinds").ThatSlice(kinds(got)).Equals(test.expect)
	}
}

func TestRenderPass(t *testing.T) {
	ctx := log.Testing(t)
	rp, err := layout.NewRenderPass(layout.Desc{
		Name: "forward",
		Attachments: []layout.Attachment{{
			Format:        gputypes.TextureFormatRGBA8Unorm,
			LoadOp:        gputypes.LoadOpLoad,
			StoreOp:       gputypes.StoreOpStore,
			InitialLayout: api.LayoutColorAttachment,
			FinalLayout:   api.LayoutColorAttachment,
		}},
		Subpasses: []layout.Subpass{{
			Color: []layout.Reference{{Attachment: 0, Layout: api.LayoutColorAttachment}},
		}},
	})
	assert.For(ctx, "render pass").ThatError(err).Succeeded()

	c := newContext(ctx, t, config.Default(), nil)
	cb := record(t, "draw", func(cb *syncval.CommandBuffer) {
		cb.BeginRenderPass(rp, syncval.Attachment{Resource: img, Range: allColor})
		cb.AccessImage(img, allColor, api.Write, api.StageColorAttachmentOutput, api.AccessColorAttachmentWrite, api.LayoutColorAttachment)
		cb.EndRenderPass()
	})
	got := submit(t, ctx, c, syncval.Submission{Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{cb}, Fence: 1})
	assert.For(ctx, "kinds").ThatSlice(kinds(got)).Equals([]hazard.Kind{hazard.UnknownInitialLayout})
	assert.For(ctx, "expected").That(got[0].Expected).Equals(api.LayoutColorAttachment)
	assert.For(ctx, "actual").That(got[0].Actual).Equals(api.LayoutUndefined)
	assert.For(ctx, "resource").That(got[0].Resource).Equals(img)

	// The initial layout is assumed from then on.
	assert.For(ctx, "wait").ThatError(c.WaitFence(ctx, 1)).Succeeded()
	assert.For(ctx, "again").ThatSlice(submit(t, ctx, c, syncval.Submission{
		Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{cb},
	})).IsEmpty()

	// Layouts are tracked across command buffers, in submission order.
	prepare := record(t, "prepare", func(cb *syncval.CommandBuffer) {
		cb.LayoutTransition(img, allColor, api.LayoutUndefined, api.LayoutColorAttachment)
	})
	{
		ctx := log.Enter(ctx, "same submission")
		c := newContext(ctx, t, config.Default(), nil)
		assert.For(ctx, "kinds").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{prepare, cb},
		})).IsEmpty()
	}
	{
		ctx := log.Enter(ctx, "earlier submission")
		c := newContext(ctx, t, config.Default(), nil)
		assert.For(ctx, "prepare").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{prepare},
		})).IsEmpty()
		assert.For(ctx, "draw").ThatSlice(submit(t, ctx, c, syncval.Submission{
			Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{cb},
		})).IsEmpty()
	}
}

func TestResources(t *testing.T) {
	ctx := log.Testing(t)
	c := newContext(ctx, t, config.Default(), nil)
	assert.For(ctx, "reserved").ThatError(c.CreateResource(0, resource.NewBuffer("zero", 1))).HasCause(syncval.ErrReservedHandle)
	assert.For(ctx, "exists").ThatError(c.CreateResource(buf, resource.NewBuffer("again", 1))).HasCause(syncval.ErrResourceExists)
	assert.For(ctx, "empty").ThatError(c.CreateResource(3, resource.NewBuffer("empty", 0))).HasCause(syncval.ErrEmptyResource)

	cb := record(t, "cb", func(cb *syncval.CommandBuffer) {
		cb.Access(buf, resource.Bytes(size-4, 8), api.Read, api.StageTransfer, api.AccessTransferRead)
		cb.Access(7, resource.Bytes(0, 4), api.Read, api.StageTransfer, api.AccessTransferRead)
	})
	got := submit(t, ctx, c, syncval.Submission{Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{cb}})
	assert.For(ctx, "kinds").ThatSlice(kinds(got)).Equals([]hazard.Kind{hazard.InvalidRange, hazard.UnknownResource})
	assert.For(ctx, "class").That(got[0].Class).Equals(hazard.ConfigError)

	writer := record(t, "writer", func(cb *syncval.CommandBuffer) { copyWrite(cb, whole) })
	submit(t, ctx, c, syncval.Submission{Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{writer}})
	assert.For(ctx, "timeline").That(c.Timeline(buf, gfx)).IsNotNil()
	assert.For(ctx, "destroy").ThatError(c.DestroyResource(ctx, buf)).Succeeded()
	assert.For(ctx, "timeline gone").That(c.Timeline(buf, gfx)).IsNil()
	assert.For(ctx, "destroy twice").ThatError(c.DestroyResource(ctx, buf)).HasCause(syncval.ErrUnknownResource)
	assert.For(ctx, "destroyed").ThatSlice(kinds(submit(t, ctx, c, syncval.Submission{
		Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{writer},
	}))).Equals([]hazard.Kind{hazard.UnknownResource})
}

func TestFences(t *testing.T) {
	ctx := log.Testing(t)
	c := newContext(ctx, t, config.Default(), nil)
	assert.For(ctx, "unknown").ThatError(c.WaitFence(ctx, 9)).HasCause(syncval.ErrUnknownFence)

	cb := record(t, "cb", func(cb *syncval.CommandBuffer) { copyWrite(cb, whole) })
	submit(t, ctx, c, syncval.Submission{
		Queue:          gfx,
		CommandBuffers: []*syncval.CommandBuffer{cb},
		Waits:          []syncval.Wait{{Semaphore: 3}},
		Fence:          2,
	})
	assert.For(ctx, "pending").ThatError(c.WaitFence(ctx, 2)).HasCause(syncval.ErrNotSignaled)
	assert.For(ctx, "state").That(cb.State()).Equals(syncval.Pending)
}

func TestMaxReports(t *testing.T) {
	ctx := log.Testing(t)
	cfg := config.Default()
	cfg.MaxReports = 2
	c := newContext(ctx, t, cfg, nil)
	cb := record(t, "cb", func(cb *syncval.CommandBuffer) {
		for i := 0; i < 5; i++ {
			copyWrite(cb, whole)
		}
	})
	got := submit(t, ctx, c, syncval.Submission{Queue: gfx, CommandBuffers: []*syncval.CommandBuffer{cb}})
	assert.For(ctx, "kept").ThatSlice(kinds(got)).Equals([]hazard.Kind{hazard.WriteAfterWrite, hazard.WriteAfterWrite})
	assert.For(ctx, "first kept").ThatBoolean(got[0].TagB < got[1].TagB).IsTrue()
	assert.For(ctx, "dropped").That(testutil.ToFloat64(c.Metrics().Dropped)).Equals(2.0)
	assert.For(ctx, "counted").That(testutil.ToFloat64(
		c.Metrics().Reports.WithLabelValues("WriteAfterWrite", "Hazard"))).Equals(2.0)
}
