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

// Package resource describes the buffers and images whose accesses are
// validated, and maps their ranges onto the linear key space used by
// interval maps.
//
// Buffer keys are byte offsets. Image keys number subresources: every
// (aspect, mip level, array layer) triple is one key, ordered by aspect, then
// mip level, then layer, so a range of layers within one mip is contiguous.
package resource

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/google/syncval/core/math/interval"
)

// Handle is an opaque identifier of a buffer or image.
// The zero Handle refers to no resource.
type Handle uint64

func (h Handle) String() string { return fmt.Sprintf("res<%d>", uint64(h)) }

// Kind is the kind of a resource.
type Kind int

const (
	// Buffer resources are addressed by byte ranges.
	Buffer Kind = iota
	// Image resources are addressed by subresource ranges.
	Image
)

func (k Kind) String() string {
	switch k {
	case Buffer:
		return "Buffer"
	case Image:
		return "Image"
	default:
		return fmt.Sprintf("Kind<%d>", int(k))
	}
}

// Aspect is a bitmask of image aspects.
type Aspect uint8

const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil

	numAspects = 3
)

var aspectNames = []string{"Color", "Depth", "Stencil"}

func (a Aspect) String() string {
	if a == 0 {
		return "None"
	}
	var parts []string
	for i, name := range aspectNames {
		if a&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseAspect parses a '|' separated list of aspect names.
func ParseAspect(s string) (Aspect, error) {
	out := Aspect(0)
	for _, part := range strings.Split(s, "|") {
		found := false
		for i, name := range aspectNames {
			if strings.EqualFold(strings.TrimSpace(part), name) {
				out |= 1 << i
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown aspect %q", part)
		}
	}
	return out, nil
}

// index returns the position of a single aspect bit.
func (a Aspect) index() uint64 {
	for i := 0; i < numAspects; i++ {
		if a == 1<<i {
			return uint64(i)
		}
	}
	panic(fmt.Errorf("%v is not a single aspect", a))
}

// lastFormat is the last texture format known to gputypes.
const lastFormat = gputypes.TextureFormatASTC12x12UnormSrgb

// ParseFormat returns the texture format named s, case insensitively.
func ParseFormat(s string) (gputypes.TextureFormat, error) {
	for f := gputypes.TextureFormatUndefined; f <= lastFormat; f++ {
		if name := f.String(); name != "Unknown" && strings.EqualFold(name, s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown texture format %q", s)
}

// FormatAspects returns the aspects held by images of format f.
func FormatAspects(f gputypes.TextureFormat) Aspect {
	switch f {
	case gputypes.TextureFormatUndefined:
		return 0
	case gputypes.TextureFormatDepth16Unorm,
		gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth32Float:
		return AspectDepth
	case gputypes.TextureFormatStencil8:
		return AspectStencil
	case gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32FloatStencil8:
		return AspectDepth | AspectStencil
	default:
		return AspectColor
	}
}

// Desc describes a resource.
type Desc struct {
	Name string
	Kind Kind

	// Size is the size in bytes of a buffer.
	Size uint64

	// Format, MipLevels and ArrayLayers describe an image.
	Format      gputypes.TextureFormat
	MipLevels   uint32
	ArrayLayers uint32
	// Aspects overrides the aspects derived from Format when not zero.
	Aspects Aspect
}

// NewBuffer returns the description of a buffer of size bytes.
func NewBuffer(name string, size uint64) Desc {
	return Desc{Name: name, Kind: Buffer, Size: size}
}

// NewImage returns the description of an image.
func NewImage(name string, format gputypes.TextureFormat, mips, layers uint32) Desc {
	return Desc{Name: name, Kind: Image, Format: format, MipLevels: mips, ArrayLayers: layers}
}

// AspectMask returns the aspects of an image.
func (d Desc) AspectMask() Aspect {
	if d.Aspects != 0 {
		return d.Aspects
	}
	return FormatAspects(d.Format)
}

// Extent returns the size of the key space of the resource.
func (d Desc) Extent() uint64 {
	if d.Kind == Buffer {
		return d.Size
	}
	return numAspects * uint64(d.MipLevels) * uint64(d.ArrayLayers)
}

// Whole returns the range covering the entire resource.
func (d Desc) Whole() Range {
	if d.Kind == Buffer {
		return Bytes(0, d.Size)
	}
	return Subresources(d.AspectMask(), 0, d.MipLevels, 0, d.ArrayLayers)
}

func (d Desc) key(aspect Aspect, mip, layer uint32) uint64 {
	return (aspect.index()*uint64(d.MipLevels)+uint64(mip))*uint64(d.ArrayLayers) + uint64(layer)
}

// Subresource returns the image subresource identified by key.
func (d Desc) Subresource(key uint64) Subresource {
	layers, mips := uint64(d.ArrayLayers), uint64(d.MipLevels)
	return Subresource{
		Aspect: 1 << (key / (layers * mips)),
		Mip:    uint32(key / layers % mips),
		Layer:  uint32(key % layers),
	}
}

// Spans returns the sorted keys covered by r. It fails with
// interval.ErrInvalidRange if r is empty or exceeds the resource.
func (d Desc) Spans(r Range) (interval.U64SpanList, error) {
	if d.Kind == Buffer {
		s, err := interval.U64Range{First: r.Offset, Count: r.Size}.Span()
		if err != nil || s.End > d.Size {
			return nil, interval.ErrInvalidRange
		}
		return interval.U64SpanList{s}, nil
	}
	aspects := d.AspectMask()
	if r.Aspects == 0 || r.Aspects&^aspects != 0 ||
		r.MipCount == 0 || uint64(r.BaseMip)+uint64(r.MipCount) > uint64(d.MipLevels) ||
		r.LayerCount == 0 || uint64(r.BaseLayer)+uint64(r.LayerCount) > uint64(d.ArrayLayers) {
		return nil, interval.ErrInvalidRange
	}
	out := interval.U64SpanList{}
	for i := 0; i < numAspects; i++ {
		aspect := Aspect(1 << i)
		if r.Aspects&aspect == 0 {
			continue
		}
		for mip := r.BaseMip; mip < r.BaseMip+r.MipCount; mip++ {
			start := d.key(aspect, mip, r.BaseLayer)
			out.Merge(interval.U64Span{Start: start, End: start + uint64(r.LayerCount)})
		}
	}
	return out, nil
}

// Describe returns a human readable form of the keys of s.
func (d Desc) Describe(s interval.U64Span) string {
	if d.Kind == Buffer || s.Empty() {
		return s.String()
	}
	first, last := d.Subresource(s.Start), d.Subresource(s.End-1)
	if first == last {
		return first.String()
	}
	return fmt.Sprintf("%v..%v", first, last)
}

// Range is a range of a resource: a byte range for buffers, or a subresource
// range for images.
type Range struct {
	Offset uint64
	Size   uint64

	Aspects    Aspect
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

// Bytes returns the buffer range [offset, offset+size).
func Bytes(offset, size uint64) Range { return Range{Offset: offset, Size: size} }

// Subresources returns an image subresource range.
func Subresources(aspects Aspect, baseMip, mipCount, baseLayer, layerCount uint32) Range {
	return Range{
		Aspects:    aspects,
		BaseMip:    baseMip,
		MipCount:   mipCount,
		BaseLayer:  baseLayer,
		LayerCount: layerCount,
	}
}

// IsImage returns true if r is a subresource range.
func (r Range) IsImage() bool { return r.Aspects != 0 }

func (r Range) String() string {
	if !r.IsImage() {
		return fmt.Sprintf("[%d, %d)", r.Offset, r.Offset+r.Size)
	}
	return fmt.Sprintf("%v mips [%d, %d) layers [%d, %d)", r.Aspects,
		r.BaseMip, r.BaseMip+r.MipCount, r.BaseLayer, r.BaseLayer+r.LayerCount)
}

// Subresource identifies a single image subresource.
type Subresource struct {
	Aspect Aspect
	Mip    uint32
	Layer  uint32
}

// Range returns the range holding only s.
func (s Subresource) Range() Range { return Subresources(s.Aspect, s.Mip, 1, s.Layer, 1) }

func (s Subresource) String() string {
	return fmt.Sprintf("%v mip %d layer %d", s.Aspect, s.Mip, s.Layer)
}
