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
	"fmt"
	"sync"

	"github.com/google/syncval/core/fault"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/barrier"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/layout"
	"github.com/google/syncval/syncval/resource"
	"github.com/pkg/errors"
)

// State is the lifecycle state of a command buffer.
type State int

const (
	Initial State = iota
	Recording
	Executable
	Pending
	Retired
)

func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case Recording:
		return "Recording"
	case Executable:
		return "Executable"
	case Pending:
		return "Pending"
	case Retired:
		return "Retired"
	default:
		return fmt.Sprintf("State<%d>", int(s))
	}
}

// Attachment is the image range bound to a render pass attachment.
type Attachment struct {
	Resource resource.Handle
	Range    resource.Range
}

type eventKind int

const (
	opEvent eventKind = iota
	barrierEvent
	beginRenderPassEvent
	nextSubpassEvent
	endRenderPassEvent
	errorEvent
)

// event is a recorded command, applied when the command buffer is submitted.
type event struct {
	kind        eventKind
	loc         api.Locator
	op          api.Op
	barriers    barrier.Set
	renderPass  *layout.RenderPass
	attachments []Attachment
	err         *hazard.Error
}

// CommandBuffer records the accesses and dependencies of a sequence of
// commands. Recording touches no state shared with the validation context,
// so distinct command buffers can be recorded in parallel.
type CommandBuffer struct {
	mu           sync.Mutex
	name         string
	state        State
	events       []event
	inRenderPass bool
	pending      int
	errs         fault.List
}

// NewCommandBuffer returns a new command buffer in the Initial state.
func NewCommandBuffer(name string) *CommandBuffer {
	return &CommandBuffer{name: name}
}

// Name returns the name given to the command buffer.
func (cb *CommandBuffer) Name() string { return cb.name }

// State returns the current state of the command buffer.
func (cb *CommandBuffer) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.events)
}

// Err returns the problems found while recording, or nil.
func (cb *CommandBuffer) Err() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.errs.Err()
}

// Begin starts recording, dropping anything recorded before.
func (cb *CommandBuffer) Begin() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case Recording:
		return errors.Wrapf(ErrNotExecutable, "beginning %s twice", cb.name)
	case Pending:
		return errors.Wrapf(ErrBufferPending, "beginning %s", cb.name)
	}
	cb.reset()
	cb.state = Recording
	return nil
}

// End finishes recording. A render pass left open is reported when the
// command buffer is submitted.
func (cb *CommandBuffer) End() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != Recording {
		return errors.Wrapf(ErrNotRecording, "ending %s in state %v", cb.name, cb.state)
	}
	if cb.inRenderPass {
		cb.fail(hazard.RenderPassState, "command buffer ended inside a render pass")
		cb.inRenderPass = false
	}
	cb.state = Executable
	return nil
}

// Reset drops everything recorded and returns to the Initial state.
func (cb *CommandBuffer) Reset() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == Pending {
		return errors.Wrapf(ErrBufferPending, "resetting %s", cb.name)
	}
	cb.reset()
	return nil
}

func (cb *CommandBuffer) reset() {
	cb.state = Initial
	cb.events = nil
	cb.inRenderPass = false
	cb.errs = nil
}

// Record records the access op.
func (cb *CommandBuffer) Record(op api.Op) {
	cb.add(event{kind: opEvent, op: op}, op.Label)
}

// Access records an access to a range of a resource.
func (cb *CommandBuffer) Access(h resource.Handle, r resource.Range, kind api.AccessKind, stage api.Stage, access api.Access) {
	cb.Record(api.Op{Resource: h, Range: r, Kind: kind, Stage: stage, Access: access})
}

// AccessImage records an access to image subresources that must be in
// layout l.
func (cb *CommandBuffer) AccessImage(h resource.Handle, r resource.Range, kind api.AccessKind, stage api.Stage, access api.Access, l api.Layout) {
	cb.Record(api.Op{Resource: h, Range: r, Kind: kind, Stage: stage, Access: access, Layout: l})
}

// Barrier records a pipeline barrier. The entries take effect together.
func (cb *CommandBuffer) Barrier(entries ...barrier.Entry) {
	set := append(barrier.Set(nil), entries...)
	cb.add(event{kind: barrierEvent, barriers: set}, "barrier")
}

// LayoutTransition records a transition of image subresources from layout
// from to layout to, ordered after every prior command and before every
// later one.
func (cb *CommandBuffer) LayoutTransition(h resource.Handle, r resource.Range, from, to api.Layout) {
	e := barrier.Image(h, r,
		api.StageAllCommands, api.AccessMemoryWrite,
		api.StageAllCommands, api.AccessMemoryRead|api.AccessMemoryWrite,
		from, to)
	cb.add(event{kind: barrierEvent, barriers: barrier.Set{e}}, "layout transition")
}

// BeginRenderPass starts an instance of rp, with one attachment per
// attachment of rp.
func (cb *CommandBuffer) BeginRenderPass(rp *layout.RenderPass, attachments ...Attachment) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.recording("begin render pass") {
		return
	}
	if cb.inRenderPass {
		cb.fail(hazard.RenderPassState, "render pass %q begun inside a render pass", rp.Name())
		return
	}
	cb.inRenderPass = true
	cb.push(event{
		kind:        beginRenderPassEvent,
		renderPass:  rp,
		attachments: append([]Attachment(nil), attachments...),
	}, "begin render pass "+rp.Name())
}

// NextSubpass moves the current render pass to its next subpass.
func (cb *CommandBuffer) NextSubpass() {
	cb.renderPassEvent(nextSubpassEvent, "next subpass")
}

// EndRenderPass ends the current render pass.
func (cb *CommandBuffer) EndRenderPass() {
	cb.renderPassEvent(endRenderPassEvent, "end render pass")
}

func (cb *CommandBuffer) renderPassEvent(kind eventKind, label string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case !cb.recording(label):
	case !cb.inRenderPass:
		cb.fail(hazard.RenderPassState, "%s outside of a render pass", label)
	default:
		cb.push(event{kind: kind}, label)
		cb.inRenderPass = kind != endRenderPassEvent
	}
}

// ExecuteCommands records the commands of the secondary command buffers,
// in order. Their commands keep the name and index they were recorded with.
func (cb *CommandBuffer) ExecuteCommands(secondaries ...*CommandBuffer) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.recording("execute commands") {
		return
	}
	for _, s := range secondaries {
		if s == cb {
			cb.errs.Collect(errors.Errorf("%s cannot execute itself", cb.name))
			continue
		}
		s.mu.Lock()
		if s.state != Executable && s.state != Pending && s.state != Retired {
			cb.errs.Collect(errors.Wrapf(ErrNotExecutable, "executing %s in state %v", s.name, s.state))
		} else {
			cb.events = append(cb.events, s.events...)
		}
		s.mu.Unlock()
	}
}

func (cb *CommandBuffer) add(e event, label string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.recording(label) {
		cb.push(e, label)
	}
}

// push appends e. cb.mu must be held.
func (cb *CommandBuffer) push(e event, label string) {
	e.loc = api.Locator{CommandBuffer: cb.name, Index: len(cb.events), Label: label}
	cb.events = append(cb.events, e)
}

// recording returns true if cb is recording, and records the misuse if not.
func (cb *CommandBuffer) recording(what string) bool {
	if cb.state == Recording {
		return true
	}
	cb.errs.Collect(errors.Wrapf(ErrNotRecording, "%s on %s in state %v", what, cb.name, cb.state))
	return false
}

// fail records a configuration error, reported when the command buffer is
// submitted.
func (cb *CommandBuffer) fail(k hazard.Kind, format string, args ...interface{}) {
	err := hazard.Errorf(k, format, args...)
	cb.errs.Collect(err)
	cb.push(event{kind: errorEvent, err: err}, k.String())
}

// submitted marks cb as pending and returns its commands and the state it
// was in.
func (cb *CommandBuffer) submitted() ([]event, State, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	prev := cb.state
	switch prev {
	case Executable, Pending, Retired:
	default:
		return nil, prev, errors.Wrapf(ErrNotExecutable, "submitting %s in state %v", cb.name, prev)
	}
	cb.state = Pending
	cb.pending++
	return cb.events, prev, nil
}

// unsubmitted undoes a call to submitted that returned prev, for a
// submission that was rejected.
func (cb *CommandBuffer) unsubmitted(prev State) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.pending--
	cb.state = prev
}

// retired is called when a submission of cb is known to have completed.
func (cb *CommandBuffer) retired() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.pending > 0 {
		cb.pending--
	}
	if cb.pending == 0 && cb.state == Pending {
		cb.state = Retired
	}
}
