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

package hazard

import (
	"fmt"
	"strings"
)

// Kind is the classification of a report.
type Kind int

const (
	ReadAfterWrite Kind = iota
	WriteAfterRead
	WriteAfterWrite
	LayoutMismatch
	UnknownInitialLayout

	InvalidRange
	InvalidAttachmentIndex
	InvalidSubpassIndex
	IncompatibleLayout
	UnknownResource
	RenderPassState
)

var kindNames = []string{
	"ReadAfterWrite",
	"WriteAfterRead",
	"WriteAfterWrite",
	"LayoutMismatch",
	"UnknownInitialLayout",
	"InvalidRange",
	"InvalidAttachmentIndex",
	"InvalidSubpassIndex",
	"IncompatibleLayout",
	"UnknownResource",
	"RenderPassState",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind<%d>", int(k))
	}
	return kindNames[k]
}

// ParseKind parses the name of a kind.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hazard kind %q", s)
}

// Class returns whether k is a hazard or a configuration error.
func (k Kind) Class() Class {
	switch k {
	case ReadAfterWrite, WriteAfterRead, WriteAfterWrite, LayoutMismatch, UnknownInitialLayout:
		return Hazard
	case InvalidRange, InvalidAttachmentIndex, InvalidSubpassIndex, IncompatibleLayout,
		UnknownResource, RenderPassState:
		return ConfigError
	default:
		panic(fmt.Errorf("unknown kind %d", int(k)))
	}
}

// Class separates hazards, which the engine recovers from, from
// configuration errors, which make the operation being validated meaningless.
type Class int

const (
	Hazard Class = iota
	ConfigError
)

func (c Class) String() string {
	switch c {
	case Hazard:
		return "Hazard"
	case ConfigError:
		return "ConfigError"
	default:
		return fmt.Sprintf("Class<%d>", int(c))
	}
}

// Error is a configuration error found while building a description, such
// as a render pass.
type Error struct {
	Kind    Kind
	Message string
}

// Errorf returns a new Error of kind k.
func Errorf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return fmt.Sprintf("%v: %s", e.Kind, e.Message) }
