/*
Copyright 2025 The llm-d Authors

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

// Package metrics holds the Prometheus collectors for the farm. Collectors are
// registered on the controller-runtime registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	Namespace = "farm"

	// --- Subsystems ---
	AdmissionSubsystem  = "admission"
	DispatcherSubsystem = "dispatcher"
	PoolSubsystem       = "pool"

	// --- Label values for scaling direction ---
	DirectionUp   = "up"
	DirectionDown = "down"
)

var (
	ReasonLabels    = []string{"reason"}
	DirectionLabels = []string{"direction"}
	WorkerLabels    = []string{"worker"}
)

// Counters without a breakdown are label-less vectors so Reset can clear them.

// --- Admission Metrics ---
var (
	requestsAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: AdmissionSubsystem,
			Name:      "requests_admitted_total",
			Help:      "Counter of requests admitted to the queue.",
		},
		nil,
	)

	requestsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: AdmissionSubsystem,
			Name:      "requests_rejected_total",
			Help:      "Counter of requests denied at admission, broken out by reason.",
		},
		ReasonLabels,
	)

	queueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: AdmissionSubsystem,
			Name:      "queue_size",
			Help:      "Requests waiting in the admission queue.",
		},
	)

	queueUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: AdmissionSubsystem,
			Name:      "queue_utilization_percent",
			Help:      "Admission queue size as a percentage of its capacity.",
		},
	)
)

// --- Dispatcher Metrics ---
var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DispatcherSubsystem,
			Name:      "cycles_total",
			Help:      "Counter of simulation cycles advanced.",
		},
		nil,
	)

	requestsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DispatcherSubsystem,
			Name:      "requests_completed_total",
			Help:      "Counter of requests retired by workers.",
		},
		nil,
	)

	requestsDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DispatcherSubsystem,
			Name:      "requests_discarded_total",
			Help:      "Counter of in-flight requests lost when a worker was removed.",
		},
		nil,
	)

	systemUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: DispatcherSubsystem,
			Name:      "system_utilization_percent",
			Help:      "Mean utilization of active workers.",
		},
	)
)

// --- Pool Metrics ---
var (
	scalingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PoolSubsystem,
			Name:      "scaling_events_total",
			Help:      "Counter of pool resize events, broken out by direction.",
		},
		DirectionLabels,
	)

	poolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: PoolSubsystem,
			Name:      "workers",
			Help:      "Workers in the pool.",
		},
	)

	activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: PoolSubsystem,
			Name:      "active_workers",
			Help:      "Active workers in the pool.",
		},
	)

	workerLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: PoolSubsystem,
			Name:      "worker_load",
			Help:      "Requests resident on each worker.",
		},
		WorkerLabels,
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register(customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		metrics.Registry.MustRegister(requestsAdmitted)
		metrics.Registry.MustRegister(requestsRejected)
		metrics.Registry.MustRegister(queueSize)
		metrics.Registry.MustRegister(queueUtilization)

		metrics.Registry.MustRegister(cyclesTotal)
		metrics.Registry.MustRegister(requestsCompleted)
		metrics.Registry.MustRegister(requestsDiscarded)
		metrics.Registry.MustRegister(systemUtilization)

		metrics.Registry.MustRegister(scalingEvents)
		metrics.Registry.MustRegister(poolSize)
		metrics.Registry.MustRegister(activeWorkers)
		metrics.Registry.MustRegister(workerLoad)

		for _, collector := range customCollectors {
			metrics.Registry.MustRegister(collector)
		}
	})
}

// Reset clears every metric. Used between tests and between runs.
func Reset() {
	requestsAdmitted.Reset()
	requestsRejected.Reset()
	queueSize.Set(0)
	queueUtilization.Set(0)

	cyclesTotal.Reset()
	requestsCompleted.Reset()
	requestsDiscarded.Reset()
	systemUtilization.Set(0)

	scalingEvents.Reset()
	poolSize.Set(0)
	activeWorkers.Set(0)
	workerLoad.Reset()
}
