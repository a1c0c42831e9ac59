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
	"fmt"
	"math/bits"
	"strings"
)

// Stage is a bitmask of pipeline stages.
type Stage uint32

const (
	StageTopOfPipe Stage = 1 << iota
	StageDrawIndirect
	StageVertexInput
	StageVertexShader
	StageEarlyFragmentTests
	StageFragmentShader
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
	StageHost
	StageAllGraphics
	StageAllCommands

	StageNone Stage = 0
)

var stageNames = []string{
	"TopOfPipe",
	"DrawIndirect",
	"VertexInput",
	"VertexShader",
	"EarlyFragmentTests",
	"FragmentShader",
	"LateFragmentTests",
	"ColorAttachmentOutput",
	"ComputeShader",
	"Transfer",
	"BottomOfPipe",
	"Host",
	"AllGraphics",
	"AllCommands",
}

const (
	// graphicsStages are the stages of the graphics pipeline, in logical order.
	graphicsStages = StageDrawIndirect | StageVertexInput | StageVertexShader |
		StageEarlyFragmentTests | StageFragmentShader | StageLateFragmentTests |
		StageColorAttachmentOutput

	// queueStages are the stages executed by a queue.
	queueStages = graphicsStages | StageComputeShader | StageTransfer

	// concreteStages are the stages that accesses are performed in.
	concreteStages = queueStages | StageHost

	// pseudoStages only select other stages.
	pseudoStages = StageTopOfPipe | StageBottomOfPipe | StageAllGraphics | StageAllCommands
)

// pipelines lists the logical orderings of the concrete stages.
var pipelines = [][]Stage{
	{StageDrawIndirect, StageVertexInput, StageVertexShader, StageEarlyFragmentTests,
		StageFragmentShader, StageLateFragmentTests, StageColorAttachmentOutput},
	{StageDrawIndirect, StageComputeShader},
	{StageTransfer},
	{StageHost},
}

// earlier and later hold, per concrete stage, the logically earlier and later
// stages of every pipeline the stage belongs to.
var earlier, later = func() (e, l map[Stage]Stage) {
	e, l = map[Stage]Stage{}, map[Stage]Stage{}
	for _, p := range pipelines {
		for i, s := range p {
			for _, o := range p[:i] {
				e[s] |= o
			}
			for _, o := range p[i+1:] {
				l[s] |= o
			}
		}
	}
	return e, l
}()

func (s Stage) String() string {
	if s == StageNone {
		return "None"
	}
	var parts []string
	for i, name := range stageNames {
		if s&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if rest := s &^ (1<<len(stageNames) - 1); rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseStage parses a '|' separated list of stage names.
func ParseStage(str string) (Stage, error) {
	if strings.EqualFold(str, "None") || str == "" {
		return StageNone, nil
	}
	out := StageNone
	for _, part := range strings.Split(str, "|") {
		i := lookup(stageNames, part)
		if i < 0 {
			return StageNone, fmt.Errorf("unknown stage %q", part)
		}
		out |= 1 << i
	}
	return out, nil
}

// Concrete replaces the pseudo stages AllGraphics and AllCommands with the
// stages they stand for, and drops TopOfPipe and BottomOfPipe.
// An access recorded in no stage is treated as happening in all of them.
func (s Stage) Concrete() Stage {
	out := s & concreteStages
	if s&StageAllCommands != 0 {
		out |= queueStages
	}
	if s&StageAllGraphics != 0 {
		out |= graphicsStages
	}
	if out == StageNone {
		return queueStages
	}
	return out
}

// Source returns the first synchronization scope of a barrier with the source
// stage mask s: the stages named, all logically earlier stages, with
// BottomOfPipe selecting all queue stages and TopOfPipe selecting none.
func (s Stage) Source() Stage {
	out := s & concreteStages
	if s&(StageAllCommands|StageBottomOfPipe) != 0 {
		out |= queueStages
	}
	if s&StageAllGraphics != 0 {
		out |= graphicsStages
	}
	return out | out.each(earlier)
}

// Destination returns the second synchronization scope of a barrier with the
// destination stage mask s: the stages named, all logically later stages,
// with TopOfPipe selecting all queue stages and BottomOfPipe selecting none.
func (s Stage) Destination() Stage {
	out := s & concreteStages
	if s&(StageAllCommands|StageTopOfPipe) != 0 {
		out |= queueStages
	}
	if s&StageAllGraphics != 0 {
		out |= graphicsStages
	}
	return out | out.each(later)
}

func (s Stage) each(m map[Stage]Stage) Stage {
	out := StageNone
	for rest := s; rest != 0; rest &= rest - 1 {
		out |= m[rest&-rest]
	}
	return out
}

// Count returns the number of stages in the mask.
func (s Stage) Count() int { return bits.OnesCount32(uint32(s)) }

// stageIndex returns the position of a single concrete stage in scope arrays.
func stageIndex(s Stage) int { return bits.TrailingZeros32(uint32(s)) }

func lookup(names []string, name string) int {
	name = strings.TrimSpace(name)
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
