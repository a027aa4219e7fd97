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

package collector

// Farm metric names recorded once per sampled cycle.
const (
	MetricPoolSize          = "pool_size"
	MetricActiveWorkers     = "active_workers"
	MetricQueueSize         = "queue_size"
	MetricSystemUtilization = "system_utilization"
	MetricQueueUtilization  = "queue_utilization"
	MetricCompleted         = "completed"
	MetricDiscarded         = "discarded"
)

// FarmMetrics lists every metric a DispatcherSource produces.
var FarmMetrics = []string{
	MetricPoolSize,
	MetricActiveWorkers,
	MetricQueueSize,
	MetricSystemUtilization,
	MetricQueueUtilization,
	MetricCompleted,
	MetricDiscarded,
}

// Reader provides read-only access to recorded series.
type Reader interface {
	// TimeSeries returns the series for metric, or nil if nothing was recorded.
	TimeSeries(metric string) *TimeSeries

	// Aggregated reduces the points of metric recorded within the last
	// window cycles. A window of 0 covers the whole run.
	Aggregated(metric string, aggType AggregationType, window int) (float64, error)

	// LatestValue returns the most recent value of metric, or 0.
	LatestValue(metric string) float64

	// Snapshot returns the latest value of every metric.
	Snapshot() *Snapshot
}

// Writer records samples.
type Writer interface {
	Record(cycle int, values []MetricValue)
}

// MetricValue is one named sample.
type MetricValue struct {
	Metric string
	Value  float64
}

// Snapshot is a point-in-time copy of the latest recorded values.
type Snapshot struct {
	// Cycle is the cycle of the most recent sample.
	Cycle int

	// Values maps metric name to its latest value.
	Values map[string]float64
}
