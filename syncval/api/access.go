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
	"strings"
)

// Access is a bitmask of memory access types.
type Access uint32

const (
	AccessIndirectCommandRead Access = 1 << iota
	AccessIndexRead
	AccessVertexAttributeRead
	AccessUniformRead
	AccessInputAttachmentRead
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
	AccessMemoryRead
	AccessMemoryWrite

	AccessNone Access = 0
)

var accessNames = []string{
	"IndirectCommandRead",
	"IndexRead",
	"VertexAttributeRead",
	"UniformRead",
	"InputAttachmentRead",
	"ShaderRead",
	"ShaderWrite",
	"ColorAttachmentRead",
	"ColorAttachmentWrite",
	"DepthStencilAttachmentRead",
	"DepthStencilAttachmentWrite",
	"TransferRead",
	"TransferWrite",
	"HostRead",
	"HostWrite",
	"MemoryRead",
	"MemoryWrite",
}

const (
	// AccessReads are all the read accesses.
	AccessReads = AccessIndirectCommandRead | AccessIndexRead | AccessVertexAttributeRead |
		AccessUniformRead | AccessInputAttachmentRead | AccessShaderRead |
		AccessColorAttachmentRead | AccessDepthStencilAttachmentRead | AccessTransferRead |
		AccessHostRead

	// AccessWrites are all the write accesses.
	AccessWrites = AccessShaderWrite | AccessColorAttachmentWrite |
		AccessDepthStencilAttachmentWrite | AccessTransferWrite | AccessHostWrite
)

// supported lists the accesses each concrete stage can perform.
var supported = map[Stage]Access{
	StageDrawIndirect:          AccessIndirectCommandRead,
	StageVertexInput:           AccessIndexRead | AccessVertexAttributeRead,
	StageVertexShader:          AccessUniformRead | AccessShaderRead | AccessShaderWrite,
	StageEarlyFragmentTests:    AccessDepthStencilAttachmentRead | AccessDepthStencilAttachmentWrite,
	StageFragmentShader:        AccessUniformRead | AccessShaderRead | AccessShaderWrite | AccessInputAttachmentRead,
	StageLateFragmentTests:     AccessDepthStencilAttachmentRead | AccessDepthStencilAttachmentWrite,
	StageColorAttachmentOutput: AccessColorAttachmentRead | AccessColorAttachmentWrite,
	StageComputeShader:         AccessUniformRead | AccessShaderRead | AccessShaderWrite,
	StageTransfer:              AccessTransferRead | AccessTransferWrite,
	StageHost:                  AccessHostRead | AccessHostWrite,
}

// Supported returns the accesses that can be performed in any of the stages s.
func Supported(s Stage) Access {
	out := AccessNone
	if s == StageNone {
		return out
	}
	for rest := s.Concrete(); rest != 0; rest &= rest - 1 {
		out |= supported[rest&-rest]
	}
	return out
}

// Expand replaces MemoryRead and MemoryWrite with the accesses they stand for.
func (a Access) Expand() Access {
	out := a &^ (AccessMemoryRead | AccessMemoryWrite)
	if a&AccessMemoryRead != 0 {
		out |= AccessReads
	}
	if a&AccessMemoryWrite != 0 {
		out |= AccessWrites
	}
	return out
}

// Writes returns true if any of the accesses write memory.
func (a Access) Writes() bool { return a.Expand()&AccessWrites != 0 }

func (a Access) String() string {
	if a == AccessNone {
		return "None"
	}
	var parts []string
	for i, name := range accessNames {
		if a&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseAccess parses a '|' separated list of access names.
func ParseAccess(str string) (Access, error) {
	if strings.EqualFold(str, "None") || str == "" {
		return AccessNone, nil
	}
	out := AccessNone
	for _, part := range strings.Split(str, "|") {
		i := lookup(accessNames, part)
		if i < 0 {
			return AccessNone, fmt.Errorf("unknown access %q", part)
		}
		out |= 1 << i
	}
	return out, nil
}

// AccessKind is the kind of operation an access performs.
type AccessKind int

const (
	Read AccessKind = iota
	Write
	LayoutTransition
)

func (k AccessKind) String() string {
	switch k {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case LayoutTransition:
		return "LayoutTransition"
	default:
		return fmt.Sprintf("AccessKind<%d>", int(k))
	}
}

// ParseAccessKind parses the name of an access kind.
func ParseAccessKind(str string) (AccessKind, error) {
	for _, k := range []AccessKind{Read, Write, LayoutTransition} {
		if strings.EqualFold(k.String(), str) {
			return k, nil
		}
	}
	return Read, fmt.Errorf("unknown access kind %q", str)
}

// IsWrite returns true for kinds that modify memory.
// Layout transitions rewrite the image contents.
func (k AccessKind) IsWrite() bool {
	switch k {
	case Write, LayoutTransition:
		return true
	default:
		return false
	}
}
