// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report scheduling activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Dispatched counts the real tasks handed to a peer.
	Dispatched *prometheus.CounterVec

	// RoundTrips counts the replies consumed.
	RoundTrips *prometheus.CounterVec

	// TaskSeconds observes the time between dispatch and consumption.
	TaskSeconds *prometheus.HistogramVec
}

// MustNewMetrics constructs a Metrics instance registered with the given
// registerer.  Registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ensemble",
				Subsystem: "scheduler",
				Name:      "dispatched_total",
				Help:      "Number of tasks dispatched to a peer.",
			},
			[]string{"phase"},
		),
		RoundTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ensemble",
				Subsystem: "scheduler",
				Name:      "round_trips_total",
				Help:      "Number of task replies consumed.",
			},
			[]string{"phase"},
		),
		TaskSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ensemble",
				Subsystem: "scheduler",
				Name:      "task_seconds",
				Help:      "Time between dispatching a task and consuming its reply.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"phase"},
		),
	}
	reg.MustRegister(m.Dispatched, m.RoundTrips, m.TaskSeconds)
	return m
}

func (m *Metrics) dispatched(phase string) {
	if m == nil {
		return
	}
	m.Dispatched.WithLabelValues(phase).Inc()
}

func (m *Metrics) consumed(phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RoundTrips.WithLabelValues(phase).Inc()
	m.TaskSeconds.WithLabelValues(phase).Observe(elapsed.Seconds())
}
