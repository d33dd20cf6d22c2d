// Copyright 2026 The Cadenza Authors
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

// Package observability exports engine execution metrics in Prometheus
// format. The engine records through a *Metrics handle; a nil handle
// disables collection entirely.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	fallbackTotal *prometheus.CounterVec
}

// NewMetrics registers the engine collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		runsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "runs_total",
			Help:      "Workflow runs by terminal status.",
		}, []string{"module", "status"}),
		runDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "cadenza",
			Name:      "run_duration_seconds",
			Help:      "Wall time of whole workflow runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		stepsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "steps_total",
			Help:      "Executed steps by capability and terminal status.",
		}, []string{"capability", "status"}),
		stepDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cadenza",
			Name:      "step_duration_seconds",
			Help:      "Wall time of individual steps, all attempts included.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"capability"}),
		retriesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "step_retries_total",
			Help:      "Retry attempts by capability.",
		}, []string{"capability"}),
		fallbackTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "step_fallbacks_total",
			Help:      "Fallback invocations by capability and outcome.",
		}, []string{"capability", "outcome"}),
	}
}

// ObserveRun records one finished workflow run.
func (m *Metrics) ObserveRun(module, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(module, status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// ObserveStep records one step reaching a terminal status.
func (m *Metrics) ObserveStep(capability, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(capability, status).Inc()
	m.stepDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (m *Metrics) RecordRetry(capability string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(capability).Inc()
}

// RecordFallback records one fallback invocation and its outcome.
func (m *Metrics) RecordFallback(capability, outcome string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(capability, outcome).Inc()
}
