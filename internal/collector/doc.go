// Package collector records farm metrics as cycle-indexed time series.
//
// A Source produces named samples for the current cycle. The dispatcher is
// the only built-in source:
//
//	rec := collector.NewRecorder(0)
//	src := collector.NewDispatcherSource(d)
//	if err := rec.CollectFrom(ctx, src); err != nil { ... }
//
// # Series
//
// Each metric is kept in a TimeSeriesBuffer, optionally bounded by a number
// of points or a retention measured in cycles. Points are ordered by cycle.
//
// # Aggregation
//
// Aggregate reduces a slice of points. Supported types:
//
//   - sum, avg, max, min, count, last
//   - p50, p90, p95, p99 (percentiles over the values)
//   - delta (last minus first) and rate (delta per cycle)
//
// Reader.Aggregated applies Aggregate to the points inside a trailing window
// of cycles, or to the whole run when the window is 0.
//
// # Metrics Recorded
//
// DispatcherSource produces pool_size, active_workers, queue_size,
// system_utilization, queue_utilization, completed and discarded. The two
// utilization metrics are percentages. completed and discarded are running
// totals, so their rate is throughput per cycle.
package collector
