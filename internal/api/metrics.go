// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the server.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	steps    *prometheus.CounterVec
	active   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movielab_pipeline_runs_total",
				Help: "Pipeline runs by final status.",
			},
			[]string{"status"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movielab_pipeline_steps_total",
				Help: "Completed pipeline steps by kind.",
			},
			[]string{"step"},
		),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "movielab_pipeline_runs_active",
			Help: "Pipeline runs currently executing.",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.runs, m.steps, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RunStarted counts a run that was accepted.
func (m *Metrics) RunStarted() {
	m.active.Inc()
}

// Observe is a progress listener feeding the pipeline collectors.
func (m *Metrics) Observe(event model.ProgressEvent) {
	switch event.Status {
	case model.RunRunning:
		if event.Kind != "" {
			m.steps.WithLabelValues(event.Kind).Inc()
		}
	case model.RunSucceeded, model.RunFailed:
		m.runs.WithLabelValues(event.Status).Inc()
		m.active.Dec()
	}
}

// RunRejected undoes RunStarted for a run the runner refused.
func (m *Metrics) RunRejected() {
	m.active.Dec()
}
