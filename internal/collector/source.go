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

import (
	"context"

	"github.com/llm-d/llm-d-farm-simulator/internal/dispatcher"
)

// Source produces samples for the Recorder.
type Source interface {
	// Name returns the source name for logging.
	Name() string

	// Collect returns the current cycle and the values sampled at it.
	Collect(ctx context.Context) (int, []MetricValue, error)
}

// SnapshotProvider is satisfied by *dispatcher.Dispatcher.
type SnapshotProvider interface {
	Snapshot() dispatcher.Snapshot
}

// DispatcherSource samples the farm counters from a dispatcher snapshot.
type DispatcherSource struct {
	provider SnapshotProvider
}

func NewDispatcherSource(p SnapshotProvider) *DispatcherSource {
	return &DispatcherSource{provider: p}
}

func (s *DispatcherSource) Name() string {
	return "dispatcher"
}

func (s *DispatcherSource) Collect(_ context.Context) (int, []MetricValue, error) {
	snap := s.provider.Snapshot()
	return snap.Cycle, []MetricValue{
		{Metric: MetricPoolSize, Value: float64(snap.PoolSize)},
		{Metric: MetricActiveWorkers, Value: float64(snap.ActiveWorkers)},
		{Metric: MetricQueueSize, Value: float64(snap.QueueSize)},
		{Metric: MetricSystemUtilization, Value: snap.SystemUtilization},
		{Metric: MetricQueueUtilization, Value: snap.QueueUtilization},
		{Metric: MetricCompleted, Value: float64(snap.TotalProcessed)},
		{Metric: MetricDiscarded, Value: float64(snap.Discarded)},
	}, nil
}
