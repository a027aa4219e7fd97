package collector

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-farm-simulator/internal/logging"
)

// Recorder keeps one bounded series per metric.
type Recorder struct {
	buffers   map[string]*TimeSeriesBuffer
	maxPoints int
	lastCycle int
}

var _ Reader = (*Recorder)(nil)
var _ Writer = (*Recorder)(nil)

// NewRecorder creates a Recorder keeping at most maxPoints samples per metric
// (0 = unlimited).
func NewRecorder(maxPoints int) *Recorder {
	return &Recorder{
		buffers:   make(map[string]*TimeSeriesBuffer),
		maxPoints: maxPoints,
	}
}

// Record appends values at cycle.
func (r *Recorder) Record(cycle int, values []MetricValue) {
	for _, v := range values {
		b, ok := r.buffers[v.Metric]
		if !ok {
			b = NewTimeSeriesBuffer(v.Metric, 0, r.maxPoints)
			r.buffers[v.Metric] = b
		}
		b.Add(cycle, v.Value)
	}
	r.lastCycle = cycle
}

// CollectFrom samples src and records the result.
func (r *Recorder) CollectFrom(ctx context.Context, src Source) error {
	cycle, values, err := src.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect from %s: %w", src.Name(), err)
	}
	r.Record(cycle, values)
	ctrl.LoggerFrom(ctx).V(logging.TRACE).Info("Recorded sample", "source", src.Name(), "cycle", cycle, "metrics", len(values))
	return nil
}

func (r *Recorder) TimeSeries(metric string) *TimeSeries {
	b, ok := r.buffers[metric]
	if !ok {
		return nil
	}
	return b.Series
}

func (r *Recorder) Aggregated(metric string, aggType AggregationType, window int) (float64, error) {
	ts := r.TimeSeries(metric)
	if ts == nil {
		return 0, nil
	}
	return Aggregate(ts.InWindow(r.lastCycle, window), aggType)
}

func (r *Recorder) LatestValue(metric string) float64 {
	ts := r.TimeSeries(metric)
	if ts == nil {
		return 0
	}
	return ts.LatestValue()
}

func (r *Recorder) Snapshot() *Snapshot {
	values := make(map[string]float64, len(r.buffers))
	for name, b := range r.buffers {
		values[name] = b.Series.LatestValue()
	}
	return &Snapshot{Cycle: r.lastCycle, Values: values}
}

// Summary computes every standard aggregation for every recorded metric over
// the whole run, keyed by metric then aggregation.
func (r *Recorder) Summary() (map[string]map[AggregationType]float64, error) {
	out := make(map[string]map[AggregationType]float64, len(r.buffers))
	for name := range r.buffers {
		aggs := make(map[AggregationType]float64, len(StandardAggregations))
		for _, agg := range StandardAggregations {
			v, err := r.Aggregated(name, agg, 0)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate %s %s: %w", name, agg, err)
			}
			aggs[agg] = v
		}
		out[name] = aggs
	}
	return out, nil
}
