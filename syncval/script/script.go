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

// Package script describes GPU workloads as JSON documents, and replays them
// on a validation context.
package script

import (
	"encoding/json"
	"io"
	"os"

	"github.com/google/syncval/syncval/config"
	"github.com/pkg/errors"
)

// Script is a workload: the resources and render passes of a device, the
// command buffers recorded for it, and the steps submitting them.
type Script struct {
	// Config overrides the configuration of the context the script runs on.
	Config         *config.Config  `json:"config,omitempty"`
	Resources      []Resource      `json:"resources"`
	RenderPasses   []RenderPass    `json:"render_passes,omitempty"`
	CommandBuffers []CommandBuffer `json:"command_buffers"`
	Steps          []Step          `json:"steps"`
	// Expect lists the kinds of the reports the script should produce, if set.
	Expect []string `json:"expect,omitempty"`
}

// Resource describes a buffer or an image.
type Resource struct {
	Handle uint64 `json:"handle"`
	Name   string `json:"name,omitempty"`
	// Kind is "buffer" or "image".
	Kind    string `json:"kind"`
	Size    uint64 `json:"size,omitempty"`
	Format  string `json:"format,omitempty"`
	Mips    uint32 `json:"mips,omitempty"`
	Layers  uint32 `json:"layers,omitempty"`
	Aspects string `json:"aspects,omitempty"`
}

// Range is a byte range of a buffer, or a subresource range of an image. A
// missing range is the whole resource.
type Range struct {
	Offset     uint64 `json:"offset,omitempty"`
	Size       uint64 `json:"size,omitempty"`
	Aspects    string `json:"aspects,omitempty"`
	BaseMip    uint32 `json:"base_mip,omitempty"`
	MipCount   uint32 `json:"mip_count,omitempty"`
	BaseLayer  uint32 `json:"base_layer,omitempty"`
	LayerCount uint32 `json:"layer_count,omitempty"`
}

type Attachment struct {
	Format  string `json:"format"`
	Load    string `json:"load"`
	Store   string `json:"store"`
	Initial string `json:"initial"`
	Final   string `json:"final"`
}

type Reference struct {
	Attachment int    `json:"attachment"`
	Layout     string `json:"layout"`
}

type Subpass struct {
	Input        []Reference `json:"input,omitempty"`
	Color        []Reference `json:"color,omitempty"`
	Resolve      []Reference `json:"resolve,omitempty"`
	DepthStencil *Reference  `json:"depth_stencil,omitempty"`
}

// Dependency is a subpass dependency. Subpass -1 is outside the render pass.
type Dependency struct {
	Src       int    `json:"src"`
	Dst       int    `json:"dst"`
	SrcStage  string `json:"src_stage"`
	DstStage  string `json:"dst_stage"`
	SrcAccess string `json:"src_access,omitempty"`
	DstAccess string `json:"dst_access,omitempty"`
}

type RenderPass struct {
	Name         string       `json:"name"`
	Attachments  []Attachment `json:"attachments"`
	Subpasses    []Subpass    `json:"subpasses"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Entry is a barrier entry. A zero resource makes a global memory barrier.
type Entry struct {
	Resource  uint64 `json:"resource,omitempty"`
	Range     *Range `json:"range,omitempty"`
	SrcStage  string `json:"src_stage"`
	SrcAccess string `json:"src_access,omitempty"`
	DstStage  string `json:"dst_stage"`
	DstAccess string `json:"dst_access,omitempty"`
	OldLayout string `json:"old_layout,omitempty"`
	NewLayout string `json:"new_layout,omitempty"`
}

type Binding struct {
	Resource uint64 `json:"resource"`
	Range    *Range `json:"range,omitempty"`
}

// Command is a recorded command. Op selects the fields that apply:
//
//	access             Resource, Range, Kind, Stage, Access, Layout, Label
//	barrier            Entries
//	transition         Resource, Range, From, To
//	begin_render_pass  RenderPass, Attachments
//	next_subpass
//	end_render_pass
//	execute            CommandBuffers
type Command struct {
	Op             string    `json:"op"`
	Resource       uint64    `json:"resource,omitempty"`
	Range          *Range    `json:"range,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Stage          string    `json:"stage,omitempty"`
	Access         string    `json:"access,omitempty"`
	Layout         string    `json:"layout,omitempty"`
	Label          string    `json:"label,omitempty"`
	Entries        []Entry   `json:"entries,omitempty"`
	From           string    `json:"from,omitempty"`
	To             string    `json:"to,omitempty"`
	RenderPass     string    `json:"render_pass,omitempty"`
	Attachments    []Binding `json:"attachments,omitempty"`
	CommandBuffers []string  `json:"command_buffers,omitempty"`
}

// CommandBuffer is recorded once, and may be submitted or executed by name
// any number of times after.
type CommandBuffer struct {
	Name     string    `json:"name"`
	Commands []Command `json:"commands"`
}

type Wait struct {
	Semaphore uint64 `json:"semaphore"`
	Stage     string `json:"stage,omitempty"`
}

type Submit struct {
	Queue          uint32   `json:"queue"`
	CommandBuffers []string `json:"command_buffers"`
	Waits          []Wait   `json:"waits,omitempty"`
	Signals        []uint64 `json:"signals,omitempty"`
	Fence          uint64   `json:"fence,omitempty"`
}

// Step is one of a submission, a host wait, the destruction of a resource
// or a trim.
type Step struct {
	Submit         *Submit `json:"submit,omitempty"`
	WaitFence      uint64  `json:"wait_fence,omitempty"`
	QueueWaitIdle  *uint32 `json:"queue_wait_idle,omitempty"`
	DeviceWaitIdle bool    `json:"device_wait_idle,omitempty"`
	Destroy        uint64  `json:"destroy,omitempty"`
	Trim           bool    `json:"trim,omitempty"`
}

// Load decodes a script. Unknown fields are errors.
func Load(r io.Reader) (*Script, error) {
	d := json.NewDecoder(r)
	d.DisallowUnknownFields()
	s := &Script{}
	if err := d.Decode(s); err != nil {
		return nil, errors.Wrap(err, "decoding script")
	}
	return s, nil
}

// LoadFile decodes the script at path.
func LoadFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return s, nil
}
