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

	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
	"github.com/google/syncval/syncval/config"
	"github.com/google/syncval/syncval/hazard"
	"github.com/pkg/errors"
)

// Wait is a semaphore wait of a submission.
type Wait struct {
	Semaphore SemaphoreID
	// Stage holds the stages of the submission that wait for the semaphore.
	// Zero means every stage.
	Stage api.Stage
}

// Submission is a batch of command buffers submitted to a queue.
type Submission struct {
	Queue          api.QueueID
	CommandBuffers []*CommandBuffer
	Waits          []Wait
	// Signals are the semaphores signalled once the command buffers complete.
	Signals []SemaphoreID
	// Fence is signalled once the command buffers complete, if not zero.
	Fence FenceID
}

type submission struct {
	id      SubmissionID
	queue   api.QueueID
	buffers []*CommandBuffer
	events  [][]event
	waits   []Wait
	signals []SemaphoreID
	fence   FenceID
	// host is the host clock when the submission was made. Work the host had
	// seen complete by then is ordered before the whole submission.
	host api.Clock
	// last is the tag of the last command of the queue once applied.
	last api.Tag
}

// Submit submits work to a queue. A submission is applied to the timelines
// once every semaphore it waits on is signalled, after the submissions made
// to the same queue before it. Submit returns the reports of every
// submission it applied, which may include earlier submissions released by
// the semaphores this one signals.
func (c *Context) Submit(ctx context.Context, sub Submission) (SubmissionID, []hazard.Report, error) {
	for _, cb := range sub.CommandBuffers {
		if cb == nil {
			return 0, nil, errors.Wrap(ErrNotExecutable, "submitting a nil command buffer")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := &submission{
		queue:   sub.Queue,
		buffers: append([]*CommandBuffer(nil), sub.CommandBuffers...),
		waits:   append([]Wait(nil), sub.Waits...),
		signals: append([]SemaphoreID(nil), sub.Signals...),
		fence:   sub.Fence,
		host:    c.host.Clone(),
	}
	// Nothing is left pending unless every command buffer can be submitted.
	prev := make([]State, 0, len(s.buffers))
	for _, cb := range s.buffers {
		events, st, err := cb.submitted()
		if err != nil {
			for i := len(prev) - 1; i >= 0; i-- {
				s.buffers[i].unsubmitted(prev[i])
			}
			return 0, nil, err
		}
		prev = append(prev, st)
		s.events = append(s.events, events)
	}
	c.nextSubmission++
	s.id = c.nextSubmission
	if s.fence != 0 {
		c.fences[s.fence] = &fence{queue: s.queue, sub: s.id}
	}
	q := c.queue(s.queue)
	q.fifo = append(q.fifo, s)
	c.metrics.Submissions.WithLabelValues("submitted").Inc()

	ctx = log.V{"submission": s.id, "queue": s.queue}.Bind(ctx)
	reports := c.schedule(ctx)
	if n := len(q.fifo); n > 0 && q.fifo[n-1] == s {
		log.D(ctx, "Submission waits on a semaphore")
	}
	return s.id, reports, nil
}

// schedule applies every submission that is ready, until none is.
func (c *Context) schedule(ctx context.Context) []hazard.Report {
	var out []hazard.Report
	for progress := true; progress; {
		progress = false
		for _, q := range c.sortedQueues() {
			for len(q.fifo) > 0 && c.ready(q.fifo[0]) {
				s := q.fifo[0]
				q.fifo = q.fifo[1:]
				out = append(out, c.apply(ctx, q, s)...)
				progress = true
			}
		}
	}
	c.metrics.Pending.Set(float64(c.pending()))
	return out
}

func (c *Context) ready(s *submission) bool {
	for _, w := range s.waits {
		if sem, ok := c.semaphores[w.Semaphore]; !ok || !sem.signaled {
			return false
		}
	}
	return true
}

// WaitFence tells the context the host waited for fence f. Every access of
// the submission of f, and of the work ordered before it, is complete.
func (c *Context) WaitFence(ctx context.Context, f FenceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fe, ok := c.fences[f]
	switch {
	case !ok:
		return errors.Wrapf(ErrUnknownFence, "waiting for fence %d", f)
	case !fe.applied:
		return errors.Wrapf(ErrNotSignaled, "fence %d of submission %d", f, fe.sub)
	}
	c.complete(ctx, fe.queue, fe.tag)
	return nil
}

// QueueWaitIdle tells the context the host waited for queue id to be idle.
func (c *Context) QueueWaitIdle(ctx context.Context, id api.QueueID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[id]
	if !ok {
		return nil
	}
	if len(q.fifo) > 0 {
		return errors.Wrapf(ErrQueuePending, "%d submissions on %v", len(q.fifo), id)
	}
	c.complete(ctx, id, q.last)
	return nil
}

// DeviceWaitIdle tells the context the host waited for every queue to be
// idle.
func (c *Context) DeviceWaitIdle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.pending(); n > 0 {
		return errors.Wrapf(ErrQueuePending, "%d submissions", n)
	}
	for _, q := range c.sortedQueues() {
		c.host.Advance(q.id, q.last)
	}
	c.retire(ctx)
	return nil
}

// Trim removes from the timelines the records the host has seen complete.
// It returns the number of records removed.
func (c *Context) Trim(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trim(ctx)
}

func (c *Context) complete(ctx context.Context, q api.QueueID, tag api.Tag) {
	c.host.Advance(q, tag)
	c.retire(ctx)
}

// retire moves the submissions the host has seen complete out of flight,
// then trims if enabled.
func (c *Context) retire(ctx context.Context) {
	for _, q := range c.queues {
		kept := q.inflight[:0]
		for _, s := range q.inflight {
			if s.last != 0 && !c.host.Synced(q.id, s.last) {
				kept = append(kept, s)
				continue
			}
			for _, cb := range s.buffers {
				cb.retired()
			}
			c.metrics.Submissions.WithLabelValues("retired").Inc()
		}
		q.inflight = kept
	}
	if c.cfg.Trim {
		c.trim(ctx)
	}
}

// bound returns the clock of the host waits every submission not applied yet
// was made after. Records ordered before it cannot take part in a report.
func (c *Context) bound() api.Clock {
	out := c.host.Clone()
	for _, q := range c.queues {
		for _, s := range q.fifo {
			for id, tag := range out {
				switch t, ok := s.host[id]; {
				case !ok:
					delete(out, id)
				case t < tag:
					out[id] = t
				}
			}
		}
	}
	return out
}

func (c *Context) trim(ctx context.Context) int {
	bound := c.bound()
	if len(bound) == 0 {
		return 0
	}
	e := barrier.Entry{
		SrcStage:  api.StageAllCommands | api.StageHost,
		SrcAccess: api.AccessMemoryRead | api.AccessMemoryWrite,
		DstStage:  api.StageHost,
		Scope:     barrier.QueueSubmissionBoundary,
		Completed: bound,
	}
	removed := 0
	for h, byQueue := range c.timelines {
		for q, tl := range byQueue {
			removed += tl.Trim(e)
			c.metrics.Fragments.Observe(float64(tl.Len()))
			if c.cfg.DropDrained && tl.Len() == 0 {
				delete(byQueue, q)
			}
		}
		if len(byQueue) == 0 {
			delete(c.timelines, h)
		}
	}
	for _, s := range c.semaphores {
		for _, tl := range s.snapshot {
			tl.Trim(e)
		}
	}
	c.metrics.Trimmed.Add(float64(removed))
	c.metrics.Timelines.Set(float64(c.countTimelines()))
	if config.DebugTrim {
		log.D(ctx, "Trimmed %d records up to %v", removed, bound)
	}
	return removed
}
