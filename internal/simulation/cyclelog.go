package simulation

import (
	"bufio"
	"fmt"
	"os"

	"github.com/llm-d/llm-d-farm-simulator/internal/dispatcher"
)

// cycleLog writes the fixed-width per-cycle statistics file.
type cycleLog struct {
	path string
	file *os.File
	w    *bufio.Writer
}

func createCycleLog(path string, workers, cycles int) (*cycleLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create cycle log %s: %w", path, err)
	}
	l := &cycleLog{path: path, file: f, w: bufio.NewWriter(f)}
	fmt.Fprintln(l.w, "Server Farm Simulation Log")
	fmt.Fprintf(l.w, "Servers: %d, Cycles: %d\n", workers, cycles)
	fmt.Fprintln(l.w, "Cycle    | Servers | Queue | Processed | System Util | Queue Util")
	fmt.Fprintln(l.w, "---------|---------|-------|-----------|-------------|-----------")
	return l, nil
}

func (l *cycleLog) write(s dispatcher.Snapshot) error {
	_, err := fmt.Fprintf(l.w, "Cycle %5d | Servers: %2d | Queue: %4d | Processed: %6d | System Util: %5.1f%% | Queue Util: %5.1f%%\n",
		s.Cycle, s.ActiveWorkers, s.QueueSize, s.TotalProcessed, s.SystemUtilization, s.QueueUtilization)
	return err
}

// size returns the number of bytes written so far.
func (l *cycleLog) size() int64 {
	if err := l.w.Flush(); err != nil {
		return 0
	}
	info, err := l.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (l *cycleLog) close() error {
	if err := l.w.Flush(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("failed to flush cycle log: %w", err)
	}
	return l.file.Close()
}
