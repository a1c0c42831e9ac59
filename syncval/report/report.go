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

// Package report renders the reports of a validation session.
//
// Reports are written as text for people, or as a list of protobuf Structs,
// in the protobuf JSON mapping or the binary wire format, for tools.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/golang/protobuf/jsonpb"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/resource"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Format is an output format for reports.
type Format int

const (
	Text Format = iota
	JSON
	Proto
)

func (f Format) String() string {
	switch f {
	case Text:
		return "text"
	case JSON:
		return "json"
	case Proto:
		return "proto"
	default:
		return ""
	}
}

// Choose sets f to the Format v. It lets a Format be used as a flag.
func (f *Format) Choose(v interface{}) { *f = v.(Format) }

// Summary counts reports.
type Summary struct {
	Hazards      int
	ConfigErrors int
	ByKind       map[hazard.Kind]int
}

// Summarize counts the reports by class and kind.
func Summarize(reports []hazard.Report) Summary {
	s := Summary{ByKind: map[hazard.Kind]int{}}
	for _, r := range reports {
		s.add(r.Kind)
	}
	return s
}

func (s *Summary) add(k hazard.Kind) {
	if k.Class() == hazard.ConfigError {
		s.ConfigErrors++
	} else {
		s.Hazards++
	}
	s.ByKind[k]++
}

// Total returns the number of reports counted.
func (s Summary) Total() int { return s.Hazards + s.ConfigErrors }

func (s Summary) String() string {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "%d %s, %d %s", s.Hazards, plural(s.Hazards, "hazard"), s.ConfigErrors, plural(s.ConfigErrors, "configuration error"))
	kinds := make([]hazard.Kind, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for i, k := range kinds {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%v: %d", k, s.ByKind[k])
		if i == len(kinds)-1 {
			b.WriteString(")")
		}
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}

// ToStruct converts a report to a protobuf Struct.
func ToStruct(r hazard.Report) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"kind":     r.Kind.String(),
		"class":    r.Class.String(),
		"session":  r.Session,
		"resource": uint64(r.Resource),
		"queue":    uint64(r.Queue),
		"access":   access(r.TagB, r.LocatorB, r.RangeB),
		"text":     r.String(),
	}
	if r.Name != "" {
		fields["name"] = r.Name
	}
	if r.Overlap != "" {
		fields["overlap"] = r.Overlap
	}
	if r.TagA != 0 {
		fields["prior"] = access(r.TagA, r.LocatorA, r.RangeA)
	}
	if r.Expected != api.LayoutAny || r.Actual != api.LayoutAny {
		fields["expected"] = r.Expected.String()
		fields["actual"] = r.Actual.String()
	}
	if r.Message != "" {
		fields["message"] = r.Message
	}
	return structpb.NewStruct(fields)
}

func access(tag api.Tag, l api.Locator, r resource.Range) map[string]interface{} {
	out := map[string]interface{}{
		"tag":            uint64(tag),
		"command_buffer": l.CommandBuffer,
		"index":          l.Index,
		"range":          r.String(),
	}
	if l.Submission != 0 {
		out["submission"] = l.Submission
	}
	if l.Label != "" {
		out["label"] = l.Label
	}
	return out
}

// ToList converts reports to a protobuf ListValue of Structs.
func ToList(reports []hazard.Report) (*structpb.ListValue, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(reports))}
	for i, r := range reports {
		s, err := ToStruct(r)
		if err != nil {
			return nil, errors.Wrapf(err, "converting report %d", i)
		}
		list.Values[i] = structpb.NewStructValue(s)
	}
	return list, nil
}

// Write writes the reports to w in format f. Text output ends with a summary.
func Write(w io.Writer, f Format, reports []hazard.Report) error {
	if f == Text {
		for _, r := range reports {
			if _, err := fmt.Fprintln(w, r.String()); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintln(w, Summarize(reports))
		return err
	}
	list, err := ToList(reports)
	if err != nil {
		return err
	}
	return writeList(w, f, list)
}

func writeList(w io.Writer, f Format, list *structpb.ListValue) error {
	switch f {
	case JSON:
		m := jsonpb.Marshaler{Indent: "  "}
		if err := m.Marshal(w, list); err != nil {
			return errors.Wrap(err, "encoding reports")
		}
		_, err := io.WriteString(w, "\n")
		return err
	case Proto:
		data, err := proto.Marshal(list)
		if err != nil {
			return errors.Wrap(err, "encoding reports")
		}
		_, err = w.Write(data)
		return err
	default:
		return errors.Errorf("cannot write reports as %v", f)
	}
}

// Read reads reports written by Write in format JSON or Proto.
func Read(r io.Reader, f Format) (*structpb.ListValue, error) {
	list := &structpb.ListValue{}
	switch f {
	case JSON:
		if err := jsonpb.Unmarshal(r, list); err != nil {
			return nil, errors.Wrap(err, "decoding reports")
		}
	case Proto:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if err := proto.Unmarshal(data, list); err != nil {
			return nil, errors.Wrap(err, "decoding reports")
		}
	default:
		return nil, errors.Errorf("cannot read reports as %v", f)
	}
	return list, nil
}

// Explain writes the reports of list as text, followed by their summary.
func Explain(w io.Writer, list *structpb.ListValue) error {
	s := Summary{ByKind: map[hazard.Kind]int{}}
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		k, err := hazard.ParseKind(fields["kind"].GetStringValue())
		if err != nil {
			return errors.Wrapf(err, "report %d", i)
		}
		s.add(k)
		if _, err := fmt.Fprintln(w, fields["text"].GetStringValue()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, s)
	return err
}
