// Package admission implements the bounded FIFO in front of the worker pool.
// Admission is gated first by an origin block-list and then by capacity.
package admission

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/clock"

	"github.com/llm-d/llm-d-farm-simulator/internal/request"
)

// DefaultMaxSize is the capacity used when the caller has no preference.
const DefaultMaxSize = 1000

type entry struct {
	req        *request.Request
	admittedAt time.Time
}

// Queue is a bounded FIFO of admitted requests. It is not safe for concurrent
// use.
type Queue struct {
	items   []entry
	maxSize int
	blocked sets.Set[string]
	clock   clock.PassiveClock

	totalAdmitted int
	totalRemoved  int
	totalWait     time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the clock used to measure time spent waiting in the queue.
func WithClock(clk clock.PassiveClock) Option {
	return func(q *Queue) {
		q.clock = clk
	}
}

// NewQueue creates an empty queue holding at most maxSize requests.
func NewQueue(maxSize int, opts ...Option) *Queue {
	q := &Queue{
		maxSize: maxSize,
		blocked: sets.New[string](),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.clock == nil {
		q.clock = clock.RealClock{}
	}
	return q
}

// Submit admits r at the tail. A blocked origin is reported even when the
// queue is also full.
func (q *Queue) Submit(r *request.Request) error {
	if q.blocked.Has(r.Origin()) {
		return fmt.Errorf("%w: %w: %s", ErrRejected, ErrOriginBlocked, r.Origin())
	}
	if len(q.items) >= q.maxSize {
		return fmt.Errorf("%w: %w", ErrRejected, ErrQueueFull)
	}
	q.items = append(q.items, entry{req: r, admittedAt: q.clock.Now()})
	q.totalAdmitted++
	return nil
}

// TakeNext removes and returns the head of the queue. The boolean is false
// when the queue is empty.
func (q *Queue) TakeNext() (*request.Request, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	head := q.items[0]
	q.items[0] = entry{}
	q.items = q.items[1:]
	q.totalRemoved++
	q.totalWait += q.clock.Since(head.admittedAt)
	return head.req, true
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (*request.Request, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0].req, true
}

// Block adds origin to the block-list. Requests already queued are unaffected.
func (q *Queue) Block(origin string) {
	q.blocked.Insert(origin)
}

// Unblock removes origin from the block-list.
func (q *Queue) Unblock(origin string) {
	q.blocked.Delete(origin)
}

func (q *Queue) IsBlocked(origin string) bool {
	return q.blocked.Has(origin)
}

// BlockedOrigins returns the block-list in sorted order.
func (q *Queue) BlockedOrigins() []string {
	return sets.List(q.blocked)
}

func (q *Queue) Size() int {
	return len(q.items)
}

func (q *Queue) MaxSize() int {
	return q.maxSize
}

func (q *Queue) IsEmpty() bool {
	return len(q.items) == 0
}

func (q *Queue) IsFull() bool {
	return len(q.items) >= q.maxSize
}

// Utilization returns size as a percentage of MaxSize, or 0 when MaxSize is 0.
func (q *Queue) Utilization() float64 {
	if q.maxSize <= 0 {
		return 0
	}
	return float64(len(q.items)) / float64(q.maxSize) * 100
}

func (q *Queue) TotalAdmitted() int {
	return q.totalAdmitted
}

func (q *Queue) TotalRemoved() int {
	return q.totalRemoved
}

// AverageWaitTime is the mean time between admission and removal over every
// request taken so far.
func (q *Queue) AverageWaitTime() time.Duration {
	if q.totalRemoved == 0 {
		return 0
	}
	return q.totalWait / time.Duration(q.totalRemoved)
}

// Clear drops every queued request. Dropped requests do not count as removed.
func (q *Queue) Clear() {
	clear(q.items)
	q.items = nil
}
