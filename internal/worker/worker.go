// Package worker models a bounded-capacity processing unit that advances
// every resident request by one unit of work per cycle.
package worker

import (
	"errors"

	"github.com/llm-d/llm-d-farm-simulator/internal/request"
)

const (
	// DefaultCapacity is the capacity of a worker built with NewDefault.
	DefaultCapacity = 10
	// DefaultAddress is the address of a worker built with NewDefault.
	DefaultAddress = "0.0.0.0"
)

var (
	// ErrInactive is returned by Submit when the worker is not active.
	ErrInactive = errors.New("worker is inactive")
	// ErrAtCapacity is returned by Submit when the worker's load equals its capacity.
	ErrAtCapacity = errors.New("worker at capacity")
)

// Worker holds admitted requests in FIFO order. Load always equals the number
// of resident requests.
type Worker struct {
	id       int
	address  string
	capacity int
	queue    []*request.Request
	active   bool

	completed    int
	costConsumed int
}

// New creates an active, empty worker.
func New(id int, address string, capacity int) *Worker {
	return &Worker{
		id:       id,
		address:  address,
		capacity: capacity,
		queue:    make([]*request.Request, 0, max(capacity, 0)),
		active:   true,
	}
}

// NewDefault creates a worker with id 0, DefaultAddress and DefaultCapacity.
func NewDefault() *Worker {
	return New(0, DefaultAddress, DefaultCapacity)
}

func (w *Worker) ID() int { return w.id }
func (w *Worker) Address() string { return w.address }
func (w *Worker) Capacity() int { return w.capacity }
func (w *Worker) Load() int { return len(w.queue) }
func (w *Worker) QueueSize() int { return len(w.queue) }
func (w *Worker) Active() bool { return w.active }
func (w *Worker) CompletedCount() int { return w.completed }

// TotalCostConsumed is the sum of the cost each request held when it retired.
func (w *Worker) TotalCostConsumed() int { return w.costConsumed }

// SetActive flips the active flag. Inactive workers accept and process nothing.
func (w *Worker) SetActive(active bool) {
	w.active = active
}

// Submit appends r to the worker's queue.
func (w *Worker) Submit(r *request.Request) error {
	if !w.active {
		return ErrInactive
	}
	if len(w.queue) >= w.capacity {
		return ErrAtCapacity
	}
	w.queue = append(w.queue, r)
	return nil
}

// CanAccept reports whether Submit would currently succeed.
func (w *Worker) CanAccept() bool {
	return w.active && len(w.queue) < w.capacity
}

// Advance applies one cycle of work to every resident request and retires the
// ones that reach zero remaining cost. Survivors keep their relative order.
// It returns the number of retirements.
func (w *Worker) Advance() int {
	if !w.active || len(w.queue) == 0 {
		return 0
	}

	retired := 0
	pending := w.queue[:0]
	for _, r := range w.queue {
		held := r.RemainingCost()
		if held-1 <= 0 {
			retired++
			w.costConsumed += held
			continue
		}
		r.SetRemainingCost(held - 1)
		pending = append(pending, r)
	}
	// clear the tail so retired requests are not kept reachable
	clear(w.queue[len(pending):])
	w.queue = pending
	w.completed += retired
	return retired
}

// Utilization returns load as a percentage of capacity, or 0 for a
// zero-capacity worker.
func (w *Worker) Utilization() float64 {
	if w.capacity == 0 {
		return 0
	}
	return float64(len(w.queue)) / float64(w.capacity) * 100
}

// AverageProcessingTime is TotalCostConsumed divided by CompletedCount, or 0
// when nothing has completed.
func (w *Worker) AverageProcessingTime() float64 {
	if w.completed == 0 {
		return 0
	}
	return float64(w.costConsumed) / float64(w.completed)
}

// Drain removes and returns every resident request without completing them.
func (w *Worker) Drain() []*request.Request {
	drained := w.queue
	w.queue = nil
	return drained
}
