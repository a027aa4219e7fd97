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
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
)

// AggregationType defines supported aggregation functions.
type AggregationType string

const (
	// Basic aggregations
	AggSum   AggregationType = "sum"
	AggAvg   AggregationType = "avg"
	AggMax   AggregationType = "max"
	AggMin   AggregationType = "min"
	AggCount AggregationType = "count"

	// Percentile aggregations
	AggP50 AggregationType = "p50"
	AggP90 AggregationType = "p90"
	AggP95 AggregationType = "p95"
	AggP99 AggregationType = "p99"

	// Rate and delta aggregations
	AggRate  AggregationType = "rate"
	AggDelta AggregationType = "delta"
	AggLast  AggregationType = "last"
)

var percentiles = map[AggregationType]float64{
	AggP50: 50,
	AggP90: 90,
	AggP95: 95,
	AggP99: 99,
}

// DataPoint is a single sample taken at the end of a cycle.
type DataPoint struct {
	Cycle int
	Value float64
}

// TimeSeries represents a sequence of data points ordered by cycle.
// Note: This type is not thread-safe.
type TimeSeries struct {
	// Metric is the name of the metric.
	Metric string

	// Points are the data points in cycle order.
	Points []DataPoint
}

// NewTimeSeries creates an empty TimeSeries for metric.
func NewTimeSeries(metric string) *TimeSeries {
	return &TimeSeries{
		Metric: metric,
		Points: make([]DataPoint, 0),
	}
}

// AddPoint adds a data point to the time series.
func (ts *TimeSeries) AddPoint(cycle int, value float64) {
	ts.Points = append(ts.Points, DataPoint{
		Cycle: cycle,
		Value: value,
	})
}

// Latest returns the most recent data point, or nil if empty.
func (ts *TimeSeries) Latest() *DataPoint {
	if len(ts.Points) == 0 {
		return nil
	}
	return &ts.Points[len(ts.Points)-1]
}

// LatestValue returns the most recent value, or 0 if empty.
func (ts *TimeSeries) LatestValue() float64 {
	if len(ts.Points) == 0 {
		return 0
	}
	return ts.Points[len(ts.Points)-1].Value
}

// InWindow returns data points where now - window <= cycle <= now.
// A window of 0 or less selects every point up to now.
func (ts *TimeSeries) InWindow(now, window int) []DataPoint {
	var result []DataPoint
	for _, p := range ts.Points {
		if p.Cycle > now {
			continue
		}
		if window > 0 && p.Cycle < now-window {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Prune removes data points older than now - retention.
func (ts *TimeSeries) Prune(now, retention int) {
	cutoff := now - retention
	kept := ts.Points[:0]
	for _, p := range ts.Points {
		if p.Cycle >= cutoff {
			kept = append(kept, p)
		}
	}
	ts.Points = kept
}

// TimeSeriesBuffer is a bounded buffer for storing time-series data.
// Note: This type is not thread-safe.
type TimeSeriesBuffer struct {
	// Series is the underlying time series.
	Series *TimeSeries

	// Retention is how many cycles of data to keep (0 = unlimited).
	Retention int

	// MaxPoints is the maximum number of points to store (0 = unlimited).
	MaxPoints int
}

// NewTimeSeriesBuffer creates a new buffer with the specified retention.
func NewTimeSeriesBuffer(metric string, retention, maxPoints int) *TimeSeriesBuffer {
	return &TimeSeriesBuffer{
		Series:    NewTimeSeries(metric),
		Retention: retention,
		MaxPoints: maxPoints,
	}
}

// Add adds a data point and prunes old data.
func (b *TimeSeriesBuffer) Add(cycle int, value float64) {
	b.Series.AddPoint(cycle, value)
	b.prune(cycle)
}

// prune removes old data points based on retention and max points.
func (b *TimeSeriesBuffer) prune(now int) {
	if b.Retention > 0 {
		b.Series.Prune(now, b.Retention)
	}

	// keep most recent
	if b.MaxPoints > 0 && len(b.Series.Points) > b.MaxPoints {
		b.Series.Points = b.Series.Points[len(b.Series.Points)-b.MaxPoints:]
	}
}

// Aggregate reduces points with aggType. An empty input aggregates to 0.
// Rate is the change in value per cycle between the first and last point.
func Aggregate(points []DataPoint, aggType AggregationType) (float64, error) {
	if len(points) == 0 {
		return 0, nil
	}
	values := make(stats.Float64Data, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	first, last := points[0], points[len(points)-1]

	switch aggType {
	case AggSum:
		return values.Sum()
	case AggAvg:
		return values.Mean()
	case AggMax:
		return values.Max()
	case AggMin:
		return values.Min()
	case AggCount:
		return float64(len(points)), nil
	case AggLast:
		return last.Value, nil
	case AggDelta:
		return last.Value - first.Value, nil
	case AggRate:
		span := last.Cycle - first.Cycle
		if span <= 0 {
			return 0, nil
		}
		return (last.Value - first.Value) / float64(span), nil
	}

	pct, ok := percentiles[aggType]
	if !ok {
		return 0, fmt.Errorf("unsupported aggregation type: %q", aggType)
	}
	v, err := values.Percentile(pct)
	if errors.Is(err, stats.ErrBounds) {
		// too few points to interpolate below the first rank
		return values.Min()
	}
	return v, err
}

// StandardAggregations are the aggregation types reported in a run summary.
var StandardAggregations = []AggregationType{
	AggAvg,
	AggMax,
	AggMin,
	AggP95,
	AggLast,
}
