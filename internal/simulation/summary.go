package simulation

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/llm-d/llm-d-farm-simulator/internal/collector"
	"github.com/llm-d/llm-d-farm-simulator/internal/dispatcher"
)

// Summary is the outcome of a run.
type Summary struct {
	Cycles int

	Admitted int
	Rejected map[dispatcher.DenialReason]int

	TotalProcessed        int
	AverageProcessingTime float64
	InFlight              int
	Discarded             int

	FinalSystemUtilization float64
	FinalQueueSize         int
	FinalPoolSize          int

	// Aggregates over the sampled cycles, keyed by collector metric name.
	Aggregates map[string]map[collector.AggregationType]float64

	ServerStats []string

	LogFile      string
	LogFileBytes int64
}

func (r *Runner) summarize(logBytes int64) (*Summary, error) {
	snap := r.dispatcher.Snapshot()
	inFlight := 0
	for _, load := range snap.WorkerLoads {
		inFlight += load
	}
	aggs, err := r.recorder.Summary()
	if err != nil {
		return nil, err
	}
	return &Summary{
		Cycles:                 snap.Cycle,
		Admitted:               r.admitted,
		Rejected:               maps.Clone(r.rejected),
		TotalProcessed:         snap.TotalProcessed,
		AverageProcessingTime:  snap.AverageProcessingTime,
		InFlight:               inFlight,
		Discarded:              snap.Discarded,
		FinalSystemUtilization: snap.SystemUtilization,
		FinalQueueSize:         snap.QueueSize,
		FinalPoolSize:          snap.PoolSize,
		Aggregates:             aggs,
		ServerStats:            r.dispatcher.ServerStats(),
		LogFile:                r.cfg.LogFile,
		LogFileBytes:           logBytes,
	}, nil
}

// TotalRejected sums rejections over every reason.
func (s *Summary) TotalRejected() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

func (s *Summary) aggregate(metric string, agg collector.AggregationType) float64 {
	return s.Aggregates[metric][agg]
}

// Report writes the human-readable final report.
func (s *Summary) Report(w io.Writer) error {
	p := &reportWriter{w: w}
	p.line("=== Simulation Complete ===")
	p.line("Final Statistics:")
	p.line("- Cycles simulated: %s", humanize.Comma(int64(s.Cycles)))
	p.line("- Requests admitted: %s", humanize.Comma(int64(s.Admitted)))
	p.line("- Requests rejected: %s", humanize.Comma(int64(s.TotalRejected())))
	for _, reason := range slices.Sorted(maps.Keys(s.Rejected)) {
		p.line("    %s: %s", reason, humanize.Comma(int64(s.Rejected[reason])))
	}
	p.line("- Total requests processed: %s", humanize.Comma(int64(s.TotalProcessed)))
	p.line("- Average processing time: %.2f cycles", s.AverageProcessingTime)
	p.line("- Requests in flight: %s", humanize.Comma(int64(s.InFlight)))
	p.line("- Requests discarded on scale-down: %s", humanize.Comma(int64(s.Discarded)))
	p.line("- Final system utilization: %.1f%%", s.FinalSystemUtilization)
	p.line("- Final queue size: %s", humanize.Comma(int64(s.FinalQueueSize)))
	p.line("- Final pool size: %d", s.FinalPoolSize)
	p.line("- Peak queue size: %s", humanize.Comma(int64(s.aggregate(collector.MetricQueueSize, collector.AggMax))))
	p.line("- Peak pool size: %.0f", s.aggregate(collector.MetricPoolSize, collector.AggMax))
	p.line("- p95 system utilization: %.1f%%", s.aggregate(collector.MetricSystemUtilization, collector.AggP95))
	p.line("")
	p.line("Server Statistics:")
	for _, stat := range s.ServerStats {
		p.line("  %s", stat)
	}
	p.line("")
	p.line("Log file saved as: %s (%s)", s.LogFile, humanize.Bytes(uint64(max(s.LogFileBytes, 0))))
	return p.err
}

type reportWriter struct {
	w   io.Writer
	err error
}

func (p *reportWriter) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
