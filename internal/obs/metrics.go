/*
Copyright 2025 The ShardQL Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a small metric set for a process hosting one or more pipeline
// handles (§10/§11). The embed package neither creates nor updates it; a
// hosting process that wants these metrics wires them itself. It carries its
// own registry so tests and multiple embedding-surface instances in the
// same process don't collide on prometheus's default global registry.
type Metrics struct {
	registry *prometheus.Registry

	TurnsRun       prometheus.Counter
	RequestsIssued *prometheus.CounterVec
	ItemsPerTurn   prometheus.Histogram
	LiveHandles    prometheus.Gauge
}

// NewMetrics builds a Metrics set registered against a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,
		TurnsRun: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "shardql",
			Subsystem: "queryengine",
			Name:      "turns_run_total",
			Help:      "Number of Pipeline.Run turns executed.",
		}),
		RequestsIssued: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardql",
			Subsystem: "queryengine",
			Name:      "data_requests_issued_total",
			Help:      "Number of DataRequests issued, by producer strategy.",
		}, []string{"strategy"}),
		ItemsPerTurn: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "shardql",
			Subsystem: "queryengine",
			Name:      "items_per_turn",
			Help:      "Number of items emitted per Pipeline.Run turn.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		LiveHandles: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "shardql",
			Subsystem: "queryengine",
			Name:      "live_handles",
			Help:      "Number of pipeline handles currently held open by the embedding surface.",
		}),
	}
}

// Registry returns the registry Metrics is registered against, so a host
// process can serve it alongside its own metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
