package dispatcher

import (
	"fmt"

	"github.com/llm-d/llm-d-farm-simulator/internal/metrics"
)

// Snapshot is a point-in-time copy of the dispatcher's counters.
type Snapshot struct {
	Cycle                 int
	PoolSize              int
	ActiveWorkers         int
	QueueSize             int
	QueueUtilization      float64
	SystemUtilization     float64
	TotalProcessed        int
	AverageProcessingTime float64
	Discarded             int
	Overloaded            bool
	// WorkerLoads is keyed by worker id.
	WorkerLoads map[int]int
}

func (d *Dispatcher) Snapshot() Snapshot {
	loads := make(map[int]int, len(d.workers))
	for _, w := range d.workers {
		loads[w.ID()] = w.Load()
	}
	return Snapshot{
		Cycle:                 d.cycle,
		PoolSize:              len(d.workers),
		ActiveWorkers:         d.ActiveWorkerCount(),
		QueueSize:             d.queue.Size(),
		QueueUtilization:      d.QueueUtilization(),
		SystemUtilization:     d.SystemUtilization(),
		TotalProcessed:        d.totalProcessed,
		AverageProcessingTime: d.AverageProcessingTime(),
		Discarded:             d.discarded,
		Overloaded:            d.IsOverloaded(),
		WorkerLoads:           loads,
	}
}

// ServerStats returns one line per worker, in pool order, e.g.
//
//	Server 1 (192.168.1.1): Load: 2/5 (40.0%) | Processed: 7 | Active: Yes
func (d *Dispatcher) ServerStats() []string {
	lines := make([]string, 0, len(d.workers))
	for _, w := range d.workers {
		active := "No"
		if w.Active() {
			active = "Yes"
		}
		lines = append(lines, fmt.Sprintf("Server %d (%s): Load: %d/%d (%.1f%%) | Processed: %d | Active: %s",
			w.ID(), w.Address(), w.Load(), w.Capacity(), w.Utilization(), w.CompletedCount(), active))
	}
	return lines
}

func (d *Dispatcher) farmState() metrics.FarmState {
	s := d.Snapshot()
	return metrics.FarmState{
		PoolSize:          s.PoolSize,
		ActiveWorkers:     s.ActiveWorkers,
		QueueSize:         s.QueueSize,
		SystemUtilization: s.SystemUtilization,
		QueueUtilization:  s.QueueUtilization,
		WorkerLoads:       s.WorkerLoads,
	}
}
