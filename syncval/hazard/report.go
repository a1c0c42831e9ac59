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
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/syncval/core/log"
	"github.com/google/syncval/core/math/interval"
	"github.com/google/syncval/syncval/api"
	"github.com/google/syncval/syncval/resource"
)

// Finding is a problem found by one of the detectors, before it is turned
// into a Report.
type Finding struct {
	Kind Kind
	// Prior is the earlier access taking part in the hazard, if any.
	Prior *api.AccessRecord
	// PriorTag is the tag of the earlier event, when there is no record, such
	// as the last layout transition of a subresource.
	PriorTag api.Tag
	// Overlap holds the keys of the resource the problem was found on.
	Overlap interval.U64SpanList
	// Expected and Actual are the layouts of a layout finding.
	Expected api.Layout
	Actual   api.Layout
	Message  string
}

// Tag returns the tag of the earlier event of the finding.
func (f Finding) Tag() api.Tag {
	if f.Prior != nil {
		return f.Prior.Tag
	}
	return f.PriorTag
}

// Report is a hazard or configuration error, as seen by diagnostic consumers.
//
// The A side is the earlier access and the B side is the access that
// exposed the problem. Configuration errors only have a B side.
type Report struct {
	Kind     Kind
	Class    Class
	Session  string
	Resource resource.Handle
	// Name is the name of the resource, if it was described with one.
	Name  string
	Queue api.QueueID

	RangeA   resource.Range
	RangeB   resource.Range
	TagA     api.Tag
	TagB     api.Tag
	LocatorA api.Locator
	LocatorB api.Locator
	// Overlap describes the part of the resource the problem was found on.
	Overlap string

	Expected api.Layout
	Actual   api.Layout
	Message  string
}

func (r Report) String() string {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "%v %v on %v", r.Class, r.Kind, r.Resource)
	if r.Name != "" {
		fmt.Fprintf(b, " %q", r.Name)
	}
	if r.Overlap != "" {
		fmt.Fprintf(b, " %s", r.Overlap)
	}
	fmt.Fprintf(b, " %v", r.Queue)
	if r.TagA != 0 {
		fmt.Fprintf(b, ": #%d at %v", r.TagA, r.LocatorA)
		if r.RangeA != (resource.Range{}) {
			fmt.Fprintf(b, " %v", r.RangeA)
		}
		fmt.Fprint(b, " then")
	} else {
		fmt.Fprint(b, ":")
	}
	fmt.Fprintf(b, " #%d at %v", r.TagB, r.LocatorB)
	if r.RangeB != (resource.Range{}) {
		fmt.Fprintf(b, " %v", r.RangeB)
	}
	if r.Expected != api.LayoutAny || r.Actual != api.LayoutAny {
		fmt.Fprintf(b, " expected %v, got %v", r.Expected, r.Actual)
	}
	if r.Message != "" {
		fmt.Fprintf(b, " (%s)", r.Message)
	}
	return b.String()
}

// Sort orders reports by the tag of their B side, then A side, then kind.
func Sort(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		switch {
		case a.TagB != b.TagB:
			return a.TagB < b.TagB
		case a.TagA != b.TagA:
			return a.TagA < b.TagA
		default:
			return a.Kind < b.Kind
		}
	})
}

// Sink receives the reports of a validation context.
type Sink interface {
	Report(ctx context.Context, r Report)
}

// SinkFunc is a function that implements Sink.
type SinkFunc func(ctx context.Context, r Report)

// Report calls f.
func (f SinkFunc) Report(ctx context.Context, r Report) { f(ctx, r) }

// Collector is a Sink that keeps every report it is given.
type Collector struct {
	mu      sync.Mutex
	reports []Report
}

// Report appends r to the collected reports.
func (c *Collector) Report(ctx context.Context, r Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

// Reports returns a copy of the collected reports.
func (c *Collector) Reports() []Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Report(nil), c.reports...)
}

// Count returns the number of collected reports of the given kind.
func (c *Collector) Count(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.reports {
		if r.Kind == k {
			n++
		}
	}
	return n
}

// LogSink is a Sink that logs hazards as warnings and configuration errors
// as errors.
var LogSink = SinkFunc(func(ctx context.Context, r Report) {
	ctx = log.V{
		"kind":     r.Kind,
		"resource": r.Resource,
		"queue":    r.Queue,
	}.Bind(ctx)
	if r.Class == ConfigError {
		log.E(ctx, "%v", r)
		return
	}
	log.W(ctx, "%v", r)
})

// Broadcast returns a Sink that forwards reports to all of sinks.
func Broadcast(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, r Report) {
		for _, s := range sinks {
			s.Report(ctx, r)
		}
	})
}
