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

// Package api holds the vocabulary shared by the validation engine:
// pipeline stages, memory accesses, image layouts, attachment roles, order
// tags and the access records built from them.
package api

import (
	"fmt"

	"github.com/google/syncval/syncval/resource"
)

// Tag is a global order stamp. Every applied event gets a tag greater than
// every event applied before it.
type Tag uint64

// QueueID identifies a queue.
type QueueID uint32

func (q QueueID) String() string { return fmt.Sprintf("queue<%d>", uint32(q)) }

// Locator identifies the recorded command an access came from.
type Locator struct {
	// CommandBuffer is the name of the command buffer holding the command.
	CommandBuffer string
	// Index is the position of the command in the command buffer.
	Index int
	// Submission is the submission that applied the command, 0 if none.
	Submission uint64
	// Label optionally describes the command, e.g. "vkCmdCopyBuffer".
	Label string
}

func (l Locator) String() string {
	out := fmt.Sprintf("%s[%d]", l.CommandBuffer, l.Index)
	if l.Label != "" {
		out += " " + l.Label
	}
	if l.Submission != 0 {
		out += fmt.Sprintf(" (submit %d)", l.Submission)
	}
	return out
}

// AccessRecord is one access to a range of a resource.
// Records are never modified once created.
type AccessRecord struct {
	Resource resource.Handle
	Range    resource.Range
	Kind     AccessKind
	Stage    Stage
	Access   Access
	Tag      Tag
	Queue    QueueID
	Locator  Locator
}

func (r *AccessRecord) String() string {
	if r.Kind == LayoutTransition {
		return fmt.Sprintf("#%d %v %v %v on %v at %v", r.Tag, r.Kind, r.Resource, r.Range, r.Queue, r.Locator)
	}
	return fmt.Sprintf("#%d %v %v %v %v/%v on %v at %v", r.Tag, r.Kind, r.Resource, r.Range,
		r.Stage, r.Access, r.Queue, r.Locator)
}

// Op is an access, as recorded before it is given a tag and a queue.
type Op struct {
	Resource resource.Handle
	Range    resource.Range
	Kind     AccessKind
	Stage    Stage
	Access   Access
	// Layout is the layout the image must be in, LayoutAny if the access does
	// not depend on the layout.
	Layout Layout
	Label  string
}

func (o Op) String() string {
	out := fmt.Sprintf("%v %v %v %v/%v", o.Kind, o.Resource, o.Range, o.Stage, o.Access)
	if o.Layout != LayoutAny {
		out += " in " + o.Layout.String()
	}
	return out
}
