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

// Layout is the layout of an image subresource.
type Layout int

const (
	// LayoutAny is the layout of an access that expects nothing in particular,
	// such as any buffer access.
	LayoutAny Layout = iota
	// LayoutUndefined is the initial layout of every subresource. Contents in
	// this layout are discarded.
	LayoutUndefined
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPreinitialized
	LayoutPresentSrc
)

var layoutNames = []string{
	"Any",
	"Undefined",
	"General",
	"ColorAttachment",
	"DepthStencilAttachment",
	"DepthStencilReadOnly",
	"ShaderReadOnly",
	"TransferSrc",
	"TransferDst",
	"Preinitialized",
	"PresentSrc",
}

func (l Layout) String() string {
	if l < 0 || int(l) >= len(layoutNames) {
		return fmt.Sprintf("Layout<%d>", int(l))
	}
	return layoutNames[l]
}

// ParseLayout parses the name of a layout.
func ParseLayout(str string) (Layout, error) {
	if i := lookup(layoutNames, str); i >= 0 {
		return Layout(i), nil
	}
	return LayoutAny, fmt.Errorf("unknown layout %q", str)
}

// Role is the way a render pass subpass uses an attachment.
type Role int

const (
	RoleColor Role = iota
	RoleResolve
	RoleInput
	RoleDepthStencil
)

func (r Role) String() string {
	switch r {
	case RoleColor:
		return "Color"
	case RoleResolve:
		return "Resolve"
	case RoleInput:
		return "Input"
	case RoleDepthStencil:
		return "DepthStencil"
	default:
		return fmt.Sprintf("Role<%d>", int(r))
	}
}

// RoleLayouts is the table of layouts an attachment may be in for each role.
var RoleLayouts = map[Role][]Layout{
	RoleColor:        {LayoutColorAttachment, LayoutGeneral},
	RoleResolve:      {LayoutColorAttachment, LayoutGeneral},
	RoleInput:        {LayoutShaderReadOnly, LayoutDepthStencilReadOnly, LayoutGeneral},
	RoleDepthStencil: {LayoutDepthStencilAttachment, LayoutDepthStencilReadOnly, LayoutGeneral},
}

// Allows returns true if an attachment used with role r may be in layout l.
func (r Role) Allows(l Layout) bool {
	for _, allowed := range RoleLayouts[r] {
		if allowed == l {
			return true
		}
	}
	return false
}

// FinalLayoutAllowed returns true if l can be the layout an attachment is left
// in at the end of a render pass.
func FinalLayoutAllowed(l Layout) bool {
	switch l {
	case LayoutAny, LayoutUndefined, LayoutPreinitialized:
		return false
	default:
		return true
	}
}

// Layouts lists the layouts with a name, for help text.
func Layouts() string { return strings.Join(layoutNames[1:], ", ") }
