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

package dispatcher

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/stat"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-farm-simulator/internal/admission"
	"github.com/llm-d/llm-d-farm-simulator/internal/engines/scaling"
	"github.com/llm-d/llm-d-farm-simulator/internal/logging"
	"github.com/llm-d/llm-d-farm-simulator/internal/metrics"
	"github.com/llm-d/llm-d-farm-simulator/internal/request"
	"github.com/llm-d/llm-d-farm-simulator/internal/worker"
)

const (
	// PoolWorkerCapacity is the capacity of every worker the dispatcher creates.
	PoolWorkerCapacity = 5

	// Defaults used by NewDefaultDispatcher.
	DefaultInitialWorkers = 1
	DefaultMinWorkers     = 1
	DefaultMaxWorkers     = 20
	DefaultScaleThreshold = 0.8

	// Overload thresholds, in percent.
	overloadSystemUtilization = 90
	overloadQueueUtilization  = 80
)

// Dispatcher owns the worker pool and the admission queue. Each cycle it
// advances the workers, moves queued requests onto workers in round-robin
// order and lets its scaling policy resize the pool by at most one worker.
//
// A Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	workers []*worker.Worker
	cursor  int
	queue   *admission.Queue
	policy  scaling.Policy
	logger  logr.Logger

	minWorkers     int
	maxWorkers     int
	scaleThreshold float64

	cycle               int
	totalProcessed      int
	totalProcessingTime int
	discarded           int
}

// NewDispatcher creates a dispatcher with initialWorkers workers. It fails
// when the bounds are inconsistent or the threshold is outside (0, 1).
func NewDispatcher(initialWorkers, maxWorkers, minWorkers int, scaleThreshold float64, opts ...Option) (*Dispatcher, error) {
	if minWorkers < 1 {
		return nil, fmt.Errorf("minWorkers must be at least 1, got %d", minWorkers)
	}
	if maxWorkers < minWorkers {
		return nil, fmt.Errorf("maxWorkers (%d) must not be less than minWorkers (%d)", maxWorkers, minWorkers)
	}
	if initialWorkers < minWorkers || initialWorkers > maxWorkers {
		return nil, fmt.Errorf("initialWorkers (%d) must be within [%d, %d]", initialWorkers, minWorkers, maxWorkers)
	}
	if scaleThreshold <= 0 || scaleThreshold >= 1 {
		return nil, fmt.Errorf("scaleThreshold must be in (0, 1), got %v", scaleThreshold)
	}

	o := options{queueCapacity: admission.DefaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy == nil {
		p, err := scaling.NewPolicy(scaling.HysteresisStrategy, scaleThreshold)
		if err != nil {
			return nil, fmt.Errorf("failed to create scaling policy: %w", err)
		}
		o.policy = p
	}
	var queueOpts []admission.Option
	if o.clock != nil {
		queueOpts = append(queueOpts, admission.WithClock(o.clock))
	}
	logger := ctrl.Log.WithName("dispatcher")
	if o.logger != nil {
		logger = *o.logger
	}

	d := &Dispatcher{
		workers:        make([]*worker.Worker, 0, maxWorkers),
		queue:          admission.NewQueue(o.queueCapacity, queueOpts...),
		policy:         o.policy,
		logger:         logger,
		minWorkers:     minWorkers,
		maxWorkers:     maxWorkers,
		scaleThreshold: scaleThreshold,
	}
	for range initialWorkers {
		d.appendWorker()
	}
	return d, nil
}

// NewDefaultDispatcher creates a single-worker dispatcher bounded to [1, 20]
// workers with a 0.8 scale threshold.
func NewDefaultDispatcher(opts ...Option) (*Dispatcher, error) {
	return NewDispatcher(DefaultInitialWorkers, DefaultMaxWorkers, DefaultMinWorkers, DefaultScaleThreshold, opts...)
}

// Submit offers r to the admission queue.
func (d *Dispatcher) Submit(r *request.Request) error {
	if err := d.queue.Submit(r); err != nil {
		metrics.RecordRejected(string(ReasonFor(err)))
		return err
	}
	metrics.RecordAdmitted()
	return nil
}

// AddWorker grows the pool by one worker.
func (d *Dispatcher) AddWorker() error {
	return d.addWorker(d.logger)
}

// RemoveWorker evicts the most recently added worker. Requests resident on it
// are discarded, not requeued and not completed; they are counted by
// Discarded.
func (d *Dispatcher) RemoveWorker() error {
	return d.removeWorker(d.logger)
}

func (d *Dispatcher) addWorker(logger logr.Logger) error {
	if len(d.workers) >= d.maxWorkers {
		return fmt.Errorf("cannot add worker: %w", ErrPoolAtMaximum)
	}
	w := d.appendWorker()
	metrics.RecordScalingEvent(metrics.DirectionUp)
	logger.V(logging.DEFAULT).Info("Added worker", "worker", w.ID(), "address", w.Address(), "poolSize", len(d.workers))
	return nil
}

func (d *Dispatcher) appendWorker() *worker.Worker {
	id := len(d.workers) + 1
	w := worker.New(id, fmt.Sprintf("192.168.1.%d", id), PoolWorkerCapacity)
	d.workers = append(d.workers, w)
	return w
}

func (d *Dispatcher) removeWorker(logger logr.Logger) error {
	if len(d.workers) <= d.minWorkers {
		return fmt.Errorf("cannot remove worker: %w", ErrPoolAtMinimum)
	}
	last := len(d.workers) - 1
	w := d.workers[last]
	d.workers[last] = nil
	d.workers = d.workers[:last]
	if d.cursor >= len(d.workers) {
		d.cursor = 0
	}

	lost := len(w.Drain())
	d.discarded += lost
	metrics.RecordDiscarded(lost)
	metrics.RecordScalingEvent(metrics.DirectionDown)
	logger.V(logging.DEFAULT).Info("Removed worker", "worker", w.ID(), "poolSize", len(d.workers), "discardedRequests", lost)
	return nil
}

// AdvanceCycle runs one simulation cycle and returns the number of requests
// completed during it.
func (d *Dispatcher) AdvanceCycle(ctx context.Context) int {
	logger := ctrl.LoggerFrom(ctx)
	d.cycle++

	completed := 0
	consumed := 0
	for _, w := range d.workers {
		if !w.Active() {
			continue
		}
		before := w.TotalCostConsumed()
		completed += w.Advance()
		consumed += w.TotalCostConsumed() - before
	}

	placed := d.distribute()
	d.evaluateScaling(ctx)

	d.totalProcessed += completed
	d.totalProcessingTime += consumed
	metrics.RecordCompleted(completed)
	metrics.RecordCycle(d.farmState())

	logger.V(logging.TRACE).Info("Cycle advanced",
		"cycle", d.cycle, "completed", completed, "distributed", placed,
		"queueSize", d.queue.Size(), "poolSize", len(d.workers))
	return completed
}

// distribute moves requests from the queue head onto workers, scanning from
// the cursor. Every iteration consumes one attempt out of a budget of twice
// the pool size. It stops early when a full scan finds no acceptor and
// returns the number of requests placed.
func (d *Dispatcher) distribute() int {
	placed := 0
	n := len(d.workers)
	for attempts := 0; attempts < 2*n && !d.queue.IsEmpty(); attempts++ {
		head, _ := d.queue.Peek()
		accepted := false
		for i := range n {
			idx := (d.cursor + i) % n
			w := d.workers[idx]
			if !w.CanAccept() {
				continue
			}
			if err := w.Submit(head); err != nil {
				continue
			}
			d.queue.TakeNext()
			d.cursor = (idx + 1) % n
			accepted = true
			placed++
			break
		}
		if !accepted {
			break
		}
	}
	return placed
}

// evaluateScaling asks the policy for a decision and applies it.
func (d *Dispatcher) evaluateScaling(ctx context.Context) {
	logger := ctrl.LoggerFrom(ctx)
	state := scaling.PoolState{
		AverageUtilization: d.SystemUtilization() / 100,
		QueueSize:          d.queue.Size(),
		PoolSize:           len(d.workers),
		MinWorkers:         d.minWorkers,
		MaxWorkers:         d.maxWorkers,
	}

	var err error
	switch action := d.policy.Decide(state); action {
	case scaling.ScaleUp:
		logger.V(logging.DEBUG).Info("Scaling up", "utilization", state.AverageUtilization, "queueSize", state.QueueSize)
		err = d.addWorker(logger)
	case scaling.ScaleDown:
		logger.V(logging.DEBUG).Info("Scaling down", "utilization", state.AverageUtilization)
		err = d.removeWorker(logger)
	}
	if err != nil {
		logger.V(logging.DEBUG).Info("Scaling denied", "reason", ReasonFor(err), "error", err.Error())
	}
}

// IsOverloaded reports whether system utilization is above 90% or queue
// utilization is above 80%.
func (d *Dispatcher) IsOverloaded() bool {
	return d.SystemUtilization() > overloadSystemUtilization || d.QueueUtilization() > overloadQueueUtilization
}

// SystemUtilization is the mean utilization of active workers, 0-100.
func (d *Dispatcher) SystemUtilization() float64 {
	utils := make([]float64, 0, len(d.workers))
	for _, w := range d.workers {
		if w.Active() {
			utils = append(utils, w.Utilization())
		}
	}
	if len(utils) == 0 {
		return 0
	}
	return stat.Mean(utils, nil)
}

func (d *Dispatcher) QueueUtilization() float64 {
	return d.queue.Utilization()
}

func (d *Dispatcher) QueueSize() int {
	return d.queue.Size()
}

func (d *Dispatcher) PoolSize() int {
	return len(d.workers)
}

func (d *Dispatcher) ActiveWorkerCount() int {
	n := 0
	for _, w := range d.workers {
		if w.Active() {
			n++
		}
	}
	return n
}

func (d *Dispatcher) TotalProcessed() int {
	return d.totalProcessed
}

// AverageProcessingTime is the mean cost held by requests when they retired.
func (d *Dispatcher) AverageProcessingTime() float64 {
	if d.totalProcessed == 0 {
		return 0
	}
	return float64(d.totalProcessingTime) / float64(d.totalProcessed)
}

// Discarded is the number of in-flight requests lost to worker removal.
func (d *Dispatcher) Discarded() int {
	return d.discarded
}

// Cycle is the number of cycles advanced so far.
func (d *Dispatcher) Cycle() int {
	return d.cycle
}

func (d *Dispatcher) BlockIP(origin string) {
	d.queue.Block(origin)
}

func (d *Dispatcher) UnblockIP(origin string) {
	d.queue.Unblock(origin)
}

func (d *Dispatcher) IsBlocked(origin string) bool {
	return d.queue.IsBlocked(origin)
}
