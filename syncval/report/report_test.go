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

package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/syncval/core/assert"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/report"
	"github.com/google/syncval/syncval/resource"
)

var reports = []hazard.Report{
	{
		Kind:     hazard.ReadAfterWrite,
		Class:    hazard.Hazard,
		Session:  "session",
		Resource: 1,
		Name:     "staging",
		RangeA:   resource.Bytes(0, 256),
		RangeB:   resource.Bytes(128, 256),
		TagA:     1,
		TagB:     2,
		LocatorA: api.Locator{CommandBuffer: "upload", Index: 0, Submission: 1},
		LocatorB: api.Locator{CommandBuffer: "upload", Index: 1, Submission: 1, Label: "dispatch"},
		Overlap:  "[128, 256)",
	},
	{
		Kind:     hazard.LayoutMismatch,
		Class:    hazard.Hazard,
		Resource: 2,
		TagB:     3,
		Expected: api.LayoutShaderReadOnly,
		Actual:   api.LayoutTransferDst,
	},
	{
		Kind:    hazard.InvalidRange,
		Class:   hazard.ConfigError,
		Message: "out of range",
	},
}

func TestSummary(t *testing.T) {
	ctx := log.Testing(t)
	s := report.Summarize(reports)
	assert.For(ctx, "hazards").ThatInteger(s.Hazards).Equals(2)
	assert.For(ctx, "errors").ThatInteger(s.ConfigErrors).Equals(1)
	assert.For(ctx, "total").ThatInteger(s.Total()).Equals(3)
	assert.For(ctx, "text").ThatString(s.String()).Equals(
		"2 hazards, 1 configuration error (ReadAfterWrite: 1, LayoutMismatch: 1, InvalidRange: 1)")
	assert.For(ctx, "empty").ThatString(report.Summarize(nil).String()).Equals("0 hazards, 0 configuration errors")
}

func TestStruct(t *testing.T) {
	ctx := log.Testing(t)
	s, err := report.ToStruct(reports[0])
	assert.For(ctx, "err").ThatError(err).Succeeded()
	fields := s.GetFields()
	assert.For(ctx, "kind").ThatString(fields["kind"].GetStringValue()).Equals("ReadAfterWrite")
	assert.For(ctx, "resource").That(fields["resource"].GetNumberValue()).Equals(1.0)
	assert.For(ctx, "name").ThatString(fields["name"].GetStringValue()).Equals("staging")
	prior := fields["prior"].GetStructValue().GetFields()
	assert.For(ctx, "prior tag").That(prior["tag"].GetNumberValue()).Equals(1.0)
	access := fields["access"].GetStructValue().GetFields()
	assert.For(ctx, "label").ThatString(access["label"].GetStringValue()).Equals("dispatch")
	_, hasLayouts := fields["expected"]
	assert.For(ctx, "no layouts").ThatBoolean(hasLayouts).IsFalse()

	s, err = report.ToStruct(reports[1])
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "expected").ThatString(s.GetFields()["expected"].GetStringValue()).Equals("ShaderReadOnly")
	_, hasPrior := s.GetFields()["prior"]
	assert.For(ctx, "no prior").ThatBoolean(hasPrior).IsFalse()
}

func TestExplain(t *testing.T) {
	ctx := log.Testing(t)
	text := &bytes.Buffer{}
	assert.For(ctx, "text").ThatError(report.Write(text, report.Text, reports)).Succeeded()
	assert.For(ctx, "lines").ThatInteger(strings.Count(text.String(), "\n")).Equals(len(reports) + 1)

	for _, f := range []report.Format{report.JSON, report.Proto} {
		ctx := log.Enter(ctx, f.String())
		encoded := &bytes.Buffer{}
		assert.For(ctx, "write").ThatError(report.Write(encoded, f, reports)).Succeeded()
		list, err := report.Read(encoded, f)
		assert.For(ctx, "read").ThatError(err).Succeeded()
		assert.For(ctx, "count").ThatSlice(list.GetValues()).IsLength(len(reports))
		explained := &bytes.Buffer{}
		assert.For(ctx, "explain").ThatError(report.Explain(explained, list)).Succeeded()
		assert.For(ctx, "same text").ThatString(explained.String()).Equals(text.String())
	}

	_, err := report.Read(&bytes.Buffer{}, report.Text)
	assert.For(ctx, "read text").ThatError(err).Failed()
}
