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

// Package syncval validates the synchronization of GPU work.
//
// A Context follows the resources, queues, semaphores and fences of a device.
// Commands are recorded into CommandBuffers, and submitted to queues with
// Context.Submit. Every access made by a submission is checked against the
// earlier accesses to the same resource range, on the same queue and on the
// others, and every access that is not ordered after a conflicting one by a
// barrier, a subpass dependency, a semaphore or a host wait is reported.
package syncval

import (
	"context"
	"sort"
	"sync"

	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/config"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/layout"
	"github.com/google/syncval/syncval/metrics"
	"github.com/google/syncval/syncval/resource"
	"github.com/google/syncval/syncval/timeline"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/google/syncval/syncval"

type (
	// SubmissionID identifies a submission. The first submission is 1.
	SubmissionID uint64
	// SemaphoreID identifies a binary semaphore.
	SemaphoreID uint64
	// FenceID identifies a fence. Fence 0 is no fence.
	FenceID uint64
)

// Options configures a Context.
type Options struct {
	Config config.Config
	// Sink receives every report. Reports are also returned by Submit.
	Sink hazard.Sink
	// Registerer is the registry the metrics of the context are registered
	// with. Metrics are collected but not registered if nil.
	Registerer prometheus.Registerer
	// TracerProvider overrides the global tracer provider.
	TracerProvider trace.TracerProvider
}

// Context validates the work submitted to the queues of a device. It is safe
// for concurrent use.
type Context struct {
	mu      sync.Mutex
	cfg     config.Config
	session string
	sink    hazard.Sink
	metrics *metrics.Metrics
	tracer  trace.Tracer

	resources  map[resource.Handle]resource.Desc
	timelines  map[resource.Handle]map[api.QueueID]*timeline.Timeline
	layouts    *layout.Tracker
	queues     map[api.QueueID]*queue
	semaphores map[SemaphoreID]*semaphore
	fences     map[FenceID]*fence

	// host holds the tag up to which the host observed each queue complete.
	host           api.Clock
	tag            api.Tag
	nextSubmission SubmissionID
}

type queue struct {
	id api.QueueID
	// known holds the tag up to which the work of other queues has been
	// imported into the timelines of this queue.
	known api.Clock
	// fifo holds the submissions not applied yet, in submission order.
	fifo []*submission
	// inflight holds the applied submissions the host has not seen complete.
	inflight []*submission
	last     api.Tag
}

type semaphore struct {
	signaled bool
	queue    api.QueueID
	tag      api.Tag
	snapshot map[resource.Handle]*timeline.Timeline
	known    api.Clock
}

type fence struct {
	queue   api.QueueID
	tag     api.Tag
	applied bool
	sub     SubmissionID
}

// New returns a new validation context.
func New(ctx context.Context, o Options) *Context {
	c := &Context{
		cfg:        o.Config,
		session:    uuid.New().String(),
		sink:       o.Sink,
		resources:  map[resource.Handle]resource.Desc{},
		timelines:  map[resource.Handle]map[api.QueueID]*timeline.Timeline{},
		layouts:    layout.NewTracker(),
		queues:     map[api.QueueID]*queue{},
		semaphores: map[SemaphoreID]*semaphore{},
		fences:     map[FenceID]*fence{},
		host:       api.Clock{},
	}
	var reg prometheus.Registerer
	if c.cfg.Metrics {
		reg = o.Registerer
	}
	c.metrics = metrics.New(reg)

	var tp trace.TracerProvider = noop.NewTracerProvider()
	if c.cfg.Tracing {
		tp = o.TracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
	}
	c.tracer = tp.Tracer(tracerName)

	log.I(ctx, "Validation session %s started", c.session)
	return c
}

// Session returns the identifier of the validation session, carried by every
// report.
func (c *Context) Session() string { return c.session }

// Metrics returns the collectors of the context.
func (c *Context) Metrics() *metrics.Metrics { return c.metrics }

// Layouts returns the tracker of the image layouts.
func (c *Context) Layouts() *layout.Tracker { return c.layouts }

// CreateResource registers resource h. Handle 0 is reserved.
func (c *Context) CreateResource(h resource.Handle, d resource.Desc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch _, exists := c.resources[h]; {
	case h == 0:
		return ErrReservedHandle
	case exists:
		return errors.Wrapf(ErrResourceExists, "creating %v", h)
	case d.Extent() == 0:
		return errors.Wrapf(ErrEmptyResource, "creating %v %q", h, d.Name)
	}
	c.resources[h] = d
	return nil
}

// Resource returns the description of resource h.
func (c *Context) Resource(h resource.Handle) (resource.Desc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.resources[h]
	return d, ok
}

// DestroyResource drops resource h and everything recorded about it.
func (c *Context) DestroyResource(ctx context.Context, h resource.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.resources[h]; !ok {
		return errors.Wrapf(ErrUnknownResource, "destroying %v", h)
	}
	delete(c.resources, h)
	delete(c.timelines, h)
	for _, s := range c.semaphores {
		delete(s.snapshot, h)
	}
	c.layouts.Forget(h)
	c.metrics.Timelines.Set(float64(c.countTimelines()))
	log.D(ctx, "Destroyed %v", h)
	return nil
}

// Timeline returns the timeline of resource h on queue q, or nil if nothing
// is recorded for it.
func (c *Context) Timeline(h resource.Handle, q api.QueueID) *timeline.Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timelines[h][q]
}

// Timelines returns every live timeline, by resource then queue.
func (c *Context) Timelines() []*timeline.Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []*timeline.Timeline{}
	for _, byQueue := range c.timelines {
		for _, tl := range byQueue {
			out = append(out, tl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Resource() != b.Resource() {
			return a.Resource() < b.Resource()
		}
		return a.Queue() < b.Queue()
	})
	return out
}

// Pending returns the number of submissions waiting on a semaphore.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending()
}

func (c *Context) pending() int {
	n := 0
	for _, q := range c.queues {
		n += len(q.fifo)
	}
	return n
}

func (c *Context) countTimelines() int {
	n := 0
	for _, byQueue := range c.timelines {
		n += len(byQueue)
	}
	return n
}

func (c *Context) queue(id api.QueueID) *queue {
	q, ok := c.queues[id]
	if !ok {
		q = &queue{id: id, known: api.Clock{}}
		c.queues[id] = q
	}
	return q
}

func (c *Context) semaphore(id SemaphoreID) *semaphore {
	s, ok := c.semaphores[id]
	if !ok {
		s = &semaphore{}
		c.semaphores[id] = s
	}
	return s
}

// sortedQueues returns the queues in identifier order.
func (c *Context) sortedQueues() []*queue {
	out := make([]*queue, 0, len(c.queues))
	for _, q := range c.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (c *Context) nextTag() api.Tag {
	c.tag++
	return c.tag
}
