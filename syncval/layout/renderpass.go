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

package layout

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/google/syncval/core/fault"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/resource"
)

const (
	// External is the subpass index standing for the commands outside the
	// render pass in a Dependency.
	External = -1
	// Unused is the attachment index of a Reference to no attachment.
	Unused = -1
)

// Attachment describes an attachment of a render pass.
type Attachment struct {
	Format  gputypes.TextureFormat
	LoadOp  gputypes.LoadOp
	StoreOp gputypes.StoreOp
	// InitialLayout is the layout the attachment must be in when the render
	// pass begins. LayoutUndefined discards the contents.
	InitialLayout api.Layout
	// FinalLayout is the layout the attachment is left in when the render
	// pass ends.
	FinalLayout api.Layout
}

// Reference is the use of an attachment by a subpass.
type Reference struct {
	Attachment int
	Layout     api.Layout
}

// Subpass lists the attachments used by a subpass.
type Subpass struct {
	Input []Reference
	Color []Reference
	// Resolve is empty, or holds one reference per color attachment.
	Resolve      []Reference
	DepthStencil *Reference
}

// Dependency is an execution and memory dependency between two subpasses,
// or between a subpass and the commands outside the render pass.
type Dependency struct {
	Src, Dst             int
	SrcStage, DstStage   api.Stage
	SrcAccess, DstAccess api.Access
}

// Desc describes a render pass.
type Desc struct {
	Name         string
	Attachments  []Attachment
	Subpasses    []Subpass
	Dependencies []Dependency
}

// subpassInfo is what a subpass does to the attachments.
type subpassInfo struct {
	// layouts holds the layout of every attachment used by the subpass.
	layouts map[int]api.Layout
	// order lists the attachments used by the subpass, by index.
	order []int
	// loadAttachments are the attachments first used by the subpass and
	// storeAttachments the ones last used by it.
	loadAttachments  []int
	storeAttachments []int
	// resolves pairs color attachments with their resolve attachment.
	resolves [][2]int
}

// RenderPass is a validated render pass description. It is immutable, and
// can be used by any number of render pass instances.
type RenderPass struct {
	name         string
	attachments  []Attachment
	dependencies []Dependency
	subpasses    []subpassInfo
	firstUse     []int
	lastUse      []int
	depth        []bool
}

// NewRenderPass validates desc and returns the render pass it describes.
// Every problem found is returned as a *hazard.Error in a fault.List.
func NewRenderPass(desc Desc) (*RenderPass, error) {
	errs := fault.List{}
	n := len(desc.Attachments)
	rp := &RenderPass{
		name:         desc.Name,
		attachments:  append([]Attachment(nil), desc.Attachments...),
		dependencies: append([]Dependency(nil), desc.Dependencies...),
		subpasses:    make([]subpassInfo, len(desc.Subpasses)),
		firstUse:     make([]int, n),
		lastUse:      make([]int, n),
		depth:        make([]bool, n),
	}
	for i, a := range desc.Attachments {
		rp.firstUse[i], rp.lastUse[i] = Unused, Unused
		rp.depth[i] = resource.FormatAspects(a.Format)&(resource.AspectDepth|resource.AspectStencil) != 0
		if a.InitialLayout == api.LayoutAny {
			errs.Collect(hazard.Errorf(hazard.IncompatibleLayout, "attachment %d has no initial layout", i))
		}
		if !api.FinalLayoutAllowed(a.FinalLayout) {
			errs.Collect(hazard.Errorf(hazard.IncompatibleLayout, "attachment %d cannot end in layout %v", i, a.FinalLayout))
		}
	}
	if len(desc.Subpasses) == 0 {
		errs.Collect(hazard.Errorf(hazard.InvalidSubpassIndex, "render pass has no subpass"))
	}

	for si, sp := range desc.Subpasses {
		info := &rp.subpasses[si]
		info.layouts = map[int]api.Layout{}
		ref := func(role api.Role, i int, r Reference) bool {
			where := fmt.Sprintf("subpass %d %v reference %d", si, role, i)
			a := r.Attachment
			switch {
			case a == Unused:
				return false
			case a < 0 || a >= n:
				errs.Collect(hazard.Errorf(hazard.InvalidAttachmentIndex, "%s: attachment %d is not in [0, %d)", where, a, n))
				return false
			case !role.Allows(r.Layout):
				errs.Collect(hazard.Errorf(hazard.IncompatibleLayout, "%s: layout %v is not one of %v", where, r.Layout, api.RoleLayouts[role]))
				return false
			}
			if f := desc.Attachments[a].Format; f != gputypes.TextureFormatUndefined {
				if isDepth := rp.depth[a]; (role == api.RoleDepthStencil) != isDepth && role != api.RoleInput {
					errs.Collect(hazard.Errorf(hazard.IncompatibleLayout, "%s: attachment %d has format %v", where, a, f))
					return false
				}
			} else if role == api.RoleDepthStencil {
				rp.depth[a] = true
			}
			if prev, ok := info.layouts[a]; ok {
				if prev != r.Layout {
					errs.Collect(hazard.Errorf(hazard.IncompatibleLayout, "%s: attachment %d is already used in layout %v", where, a, prev))
					return false
				}
				return true
			}
			info.layouts[a] = r.Layout
			info.order = append(info.order, a)
			if rp.firstUse[a] == Unused {
				rp.firstUse[a] = si
			}
			rp.lastUse[a] = si
			return true
		}
		for i, r := range sp.Input {
			ref(api.RoleInput, i, r)
		}
		for i, r := range sp.Color {
			ref(api.RoleColor, i, r)
		}
		if sp.DepthStencil != nil {
			ref(api.RoleDepthStencil, 0, *sp.DepthStencil)
		}
		if len(sp.Resolve) != 0 && len(sp.Resolve) != len(sp.Color) {
			errs.Collect(hazard.Errorf(hazard.InvalidAttachmentIndex, "subpass %d has %d resolve attachments for %d color attachments",
				si, len(sp.Resolve), len(sp.Color)))
			continue
		}
		for i, r := range sp.Resolve {
			if ref(api.RoleResolve, i, r) && sp.Color[i].Attachment != Unused {
				info.resolves = append(info.resolves, [2]int{sp.Color[i].Attachment, r.Attachment})
			}
		}
	}

	valid := func(s int) bool { return s == External || (s >= 0 && s < len(desc.Subpasses)) }
	for i, d := range desc.Dependencies {
		switch {
		case !valid(d.Src) || !valid(d.Dst):
			errs.Collect(hazard.Errorf(hazard.InvalidSubpassIndex, "dependency %d: subpasses %d -> %d are not in [0, %d)",
				i, d.Src, d.Dst, len(desc.Subpasses)))
		case d.Src == External && d.Dst == External:
			errs.Collect(hazard.Errorf(hazard.InvalidSubpassIndex, "dependency %d: both subpasses are external", i))
		case d.Src != External && d.Dst != External && d.Src > d.Dst:
			errs.Collect(hazard.Errorf(hazard.InvalidSubpassIndex, "dependency %d: subpass %d cannot depend on later subpass %d", i, d.Dst, d.Src))
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	for a := range rp.attachments {
		if si := rp.firstUse[a]; si != Unused {
			rp.subpasses[si].loadAttachments = append(rp.subpasses[si].loadAttachments, a)
		}
		if si := rp.lastUse[a]; si != Unused {
			rp.subpasses[si].storeAttachments = append(rp.subpasses[si].storeAttachments, a)
		}
	}
	return rp, nil
}

// Name returns the name of the render pass.
func (rp *RenderPass) Name() string { return rp.name }

// Attachments returns the number of attachments of the render pass.
func (rp *RenderPass) Attachments() int { return len(rp.attachments) }

// Subpasses returns the number of subpasses of the render pass.
func (rp *RenderPass) Subpasses() int { return len(rp.subpasses) }

// scope is the union of the dependencies selected by a query.
type scope struct {
	srcStage, dstStage   api.Stage
	srcAccess, dstAccess api.Access
	found                bool
}

func (rp *RenderPass) scope(match func(Dependency) bool) scope {
	out := scope{}
	for _, d := range rp.dependencies {
		if match(d) {
			out.srcStage |= d.SrcStage
			out.dstStage |= d.DstStage
			out.srcAccess |= d.SrcAccess
			out.dstAccess |= d.DstAccess
			out.found = true
		}
	}
	return out
}

var (
	attachmentStages = api.StageEarlyFragmentTests | api.StageLateFragmentTests | api.StageColorAttachmentOutput
	attachmentWrites = api.AccessColorAttachmentWrite | api.AccessDepthStencilAttachmentWrite
	attachmentAccess = attachmentWrites | api.AccessColorAttachmentRead | api.AccessDepthStencilAttachmentRead

	// implicitBegin orders nothing before the transitions into the first
	// layout of an attachment, when no dependency from External is declared.
	implicitBegin = scope{
		srcStage:  api.StageTopOfPipe,
		dstStage:  api.StageAllCommands,
		dstAccess: attachmentAccess | api.AccessInputAttachmentRead,
	}
	// implicitEnd orders the attachment writes before the transitions into
	// the final layout, when no dependency to External is declared.
	implicitEnd = scope{
		srcStage:  attachmentStages,
		srcAccess: attachmentWrites,
		dstStage:  api.StageBottomOfPipe,
	}
)

// dependenciesInto returns the union of the dependencies from the subpasses
// before si into si, or from External if external is set.
func (rp *RenderPass) dependenciesInto(si int, external bool) scope {
	return rp.scope(func(d Dependency) bool { return d.Dst == si && (d.Src == External) == external })
}

// loadStage returns the stage and accesses of the load operation of
// attachment a.
func (rp *RenderPass) loadStage(a int) (api.Stage, api.Access, api.Access) {
	if rp.depth[a] {
		return api.StageEarlyFragmentTests, api.AccessDepthStencilAttachmentRead, api.AccessDepthStencilAttachmentWrite
	}
	return api.StageColorAttachmentOutput, api.AccessColorAttachmentRead, api.AccessColorAttachmentWrite
}

// storeStage returns the stage and access of the store operation of
// attachment a.
func (rp *RenderPass) storeStage(a int) (api.Stage, api.Access) {
	if rp.depth[a] {
		return api.StageLateFragmentTests, api.AccessDepthStencilAttachmentWrite
	}
	return api.StageColorAttachmentOutput, api.AccessColorAttachmentWrite
}
