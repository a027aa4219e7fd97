package metrics

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// FarmState is the per-cycle view recorded into gauges.
type FarmState struct {
	PoolSize          int
	ActiveWorkers     int
	QueueSize         int
	SystemUtilization float64
	QueueUtilization  float64
	// WorkerLoads is keyed by worker id.
	WorkerLoads map[int]int
}

func RecordAdmitted() {
	requestsAdmitted.WithLabelValues().Inc()
}

// RecordRejected counts a denial under its low-cardinality reason label.
func RecordRejected(reason string) {
	requestsRejected.WithLabelValues(reason).Inc()
}

func RecordCompleted(n int) {
	if n > 0 {
		requestsCompleted.WithLabelValues().Add(float64(n))
	}
}

func RecordDiscarded(n int) {
	if n > 0 {
		requestsDiscarded.WithLabelValues().Add(float64(n))
	}
}

func RecordScalingEvent(direction string) {
	scalingEvents.WithLabelValues(direction).Inc()
}

// RecordCycle advances the cycle counter and refreshes every gauge. Workers
// missing from state.WorkerLoads are dropped from the worker_load series.
func RecordCycle(state FarmState) {
	cyclesTotal.WithLabelValues().Inc()
	poolSize.Set(float64(state.PoolSize))
	activeWorkers.Set(float64(state.ActiveWorkers))
	queueSize.Set(float64(state.QueueSize))
	queueUtilization.Set(state.QueueUtilization)
	systemUtilization.Set(state.SystemUtilization)

	workerLoad.Reset()
	for id, load := range state.WorkerLoads {
		workerLoad.WithLabelValues(strconv.Itoa(id)).Set(float64(load))
	}
}

// WriteText writes every metric family gathered from g in the Prometheus text
// exposition format. A nil gatherer selects the controller-runtime registry.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	if g == nil {
		g = metrics.Registry
	}
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
