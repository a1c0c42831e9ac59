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

package api

import (
	"sort"
	"strings"
)

const numStageBits = 14

// Scope is a memory access scope: for each stage, the accesses it covers.
// Unlike a pair of stage and access masks, a Scope does not mix up the
// accesses of one barrier with the stages of another.
type Scope [numStageBits]Access

// NewScope returns the scope of the accesses in access performed by the
// stages. stages must already be expanded, see Stage.Source and
// Stage.Destination. Accesses a stage cannot perform are left out.
func NewScope(stages Stage, access Access) Scope {
	out := Scope{}
	access = access.Expand()
	for rest := stages & concreteStages; rest != 0; rest &= rest - 1 {
		s := rest & -rest
		out[stageIndex(s)] = access & supported[s]
	}
	return out
}

// Union returns the accesses covered by either s or o.
func (s Scope) Union(o Scope) Scope {
	for i := range s {
		s[i] |= o[i]
	}
	return s
}

// Covers returns true if every access in access, performed in every stage of
// stage, is in the scope.
func (s Scope) Covers(stage Stage, access Access) bool {
	access = access.Expand()
	for rest := stage.Concrete(); rest != 0; rest &= rest - 1 {
		if access&^s[stageIndex(rest&-rest)] != 0 {
			return false
		}
	}
	return true
}

// Includes returns true if any access in access, performed in any stage of
// stage, is in the scope.
func (s Scope) Includes(stage Stage, access Access) bool {
	access = access.Expand()
	for rest := stage.Concrete(); rest != 0; rest &= rest - 1 {
		if access&s[stageIndex(rest&-rest)] != 0 {
			return true
		}
	}
	return false
}

// Empty returns true if the scope covers nothing.
func (s Scope) Empty() bool { return s == Scope{} }

func (s Scope) String() string {
	var parts []string
	for i, a := range s {
		if a != 0 {
			parts = append(parts, Stage(1<<i).String()+":"+a.String())
		}
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Clock is a vector clock: for each queue, the tag up to which the work of
// that queue is known to have completed and become visible.
type Clock map[QueueID]Tag

// Synced returns true if the access with tag on queue q is covered by the
// clock.
func (c Clock) Synced(q QueueID, tag Tag) bool {
	t, ok := c[q]
	return ok && tag <= t
}

// Advance raises the entry of q to tag, if it is lower.
func (c Clock) Advance(q QueueID, tag Tag) {
	if t, ok := c[q]; !ok || t < tag {
		c[q] = tag
	}
}

// Merge raises every entry of c to the matching entry of o.
func (c Clock) Merge(o Clock) {
	for q, t := range o {
		c.Advance(q, t)
	}
}

// Clone returns a copy of c.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for q, t := range c {
		out[q] = t
	}
	return out
}

// Queues returns the queues of the clock in ascending order.
func (c Clock) Queues() []QueueID {
	out := make([]QueueID, 0, len(c))
	for q := range c {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
