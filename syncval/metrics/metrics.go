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

// Package metrics holds the Prometheus collectors of a validation context.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "syncval"

// Metrics are the collectors updated by a validation context.
type Metrics struct {
	Submissions *prometheus.CounterVec
	Accesses    *prometheus.CounterVec
	Barriers    prometheus.Counter
	Reports     *prometheus.CounterVec
	Dropped     prometheus.Counter
	Trimmed     prometheus.Counter
	Timelines   prometheus.Gauge
	Fragments   prometheus.Histogram
	Pending     prometheus.Gauge
	Apply       prometheus.Histogram
}

// New returns a new set of collectors, registered with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Queue submissions, by state reached",
		}, []string{"state"}),
		Accesses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accesses_total",
			Help:      "Accesses recorded into timelines, by kind",
		}, []string{"kind"}),
		Barriers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barriers_total",
			Help:      "Barrier entries applied to timelines",
		}),
		Reports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Hazards and configuration errors reported, by kind and class",
		}, []string{"kind", "class"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_dropped_total",
			Help:      "Reports past the per submission limit",
		}),
		Trimmed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trimmed_records_total",
			Help:      "Access records removed by trimming",
		}),
		Timelines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timelines",
			Help:      "Live (resource, queue) timelines",
		}),
		Fragments: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timeline_fragments",
			Help:      "Fragments of the timelines left after a trim",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		Pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_submissions",
			Help:      "Submissions waiting on a semaphore signal",
		}),
		Apply: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_seconds",
			Help:      "Time spent applying a submission to the timelines",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~0.3s
		}),
	}
}
