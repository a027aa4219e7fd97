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

// Package simulation drives a dispatcher through a configured number of
// cycles with a random workload and reports the outcome.
package simulation

import (
	"context"
	"fmt"

	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-farm-simulator/internal/collector"
	"github.com/llm-d/llm-d-farm-simulator/internal/config"
	"github.com/llm-d/llm-d-farm-simulator/internal/dispatcher"
	"github.com/llm-d/llm-d-farm-simulator/internal/engines/scaling"
	"github.com/llm-d/llm-d-farm-simulator/internal/logging"
	"github.com/llm-d/llm-d-farm-simulator/internal/request"
	"github.com/llm-d/llm-d-farm-simulator/internal/workload"
)

// Runner executes one simulation run. A Runner is single-use.
type Runner struct {
	cfg        *config.FarmConfig
	clock      clock.Clock
	dispatcher *dispatcher.Dispatcher
	generator  *workload.Generator
	recorder   *collector.Recorder
	source     collector.Source

	admitted int
	rejected map[dispatcher.DenialReason]int
}

type Option func(*Runner)

// WithClock sets the clock used for arrival stamps and the per-cycle delay.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) {
		r.clock = clk
	}
}

// NewRunner validates cfg and builds the farm it describes. cfg must already
// be completed.
func NewRunner(cfg *config.FarmConfig, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	r := &Runner{
		cfg:      cfg,
		clock:    clock.RealClock{},
		rejected: make(map[dispatcher.DenialReason]int),
	}
	for _, opt := range opts {
		opt(r)
	}

	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}
	policy, err := scaling.NewPolicy(strategy, cfg.ScaleThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create scaling policy: %w", err)
	}
	d, err := dispatcher.NewDispatcher(cfg.InitialWorkers, cfg.MaxWorkers, cfg.MinWorkers, cfg.ScaleThreshold,
		dispatcher.WithQueueCapacity(cfg.QueueCapacity),
		dispatcher.WithScalingPolicy(policy),
		dispatcher.WithClock(r.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	for _, origin := range cfg.BlockedOrigins {
		d.BlockIP(origin)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(r.clock.Now().UnixNano())
	}
	r.dispatcher = d
	r.generator = workload.NewGenerator(seed,
		workload.WithArrivalProbability(cfg.ArrivalProbability),
		workload.WithArrivalCutoff(cfg.ArrivalCutoff),
		workload.WithClock(r.clock),
	)
	r.recorder = collector.NewRecorder(0)
	r.source = collector.NewDispatcherSource(d)
	return r, nil
}

// Dispatcher returns the farm under simulation.
func (r *Runner) Dispatcher() *dispatcher.Dispatcher {
	return r.dispatcher
}

// Recorder returns the series sampled on every logged cycle.
func (r *Runner) Recorder() collector.Reader {
	return r.recorder
}

// Run preloads the queue and advances the farm for the configured number of
// cycles. When ctx is cancelled the run stops and the summary so far is
// returned together with the context error.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	logger := ctrl.LoggerFrom(ctx).WithName("simulation")
	ctx = ctrl.LoggerInto(ctx, logger)
	cfg := r.cfg

	r.preload(ctx)

	cl, err := createCycleLog(cfg.LogFile, cfg.InitialWorkers, cfg.Cycles)
	if err != nil {
		return nil, err
	}
	logger.V(logging.DEFAULT).Info("Starting simulation", "logFile", cfg.LogFile, "cycles", cfg.Cycles)

	runErr := r.loop(ctx, cl)

	logSize := cl.size()
	if err := cl.close(); err != nil && runErr == nil {
		runErr = err
	}

	summary, err := r.summarize(logSize)
	if err != nil && runErr == nil {
		runErr = err
	}
	return summary, runErr
}

func (r *Runner) preload(ctx context.Context) {
	logger := ctrl.LoggerFrom(ctx)
	n := r.cfg.InitialWorkers * r.cfg.RequestsPerWorker
	logger.V(logging.DEFAULT).Info("Generating initial requests", "count", n)
	for i := 1; i <= n; i++ {
		req := r.generator.Initial()
		if !r.submit(req) {
			logger.V(logging.DEFAULT).Info("Could not add request, queue may be full", "request", req.ID())
			break
		}
	}
	logger.V(logging.DEFAULT).Info("Queue initialized", "queueSize", r.dispatcher.QueueSize())
}

func (r *Runner) loop(ctx context.Context, cl *cycleLog) error {
	logger := ctrl.LoggerFrom(ctx)
	cfg := r.cfg
	d := r.dispatcher

	for cycle := 1; cycle <= cfg.Cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			logger.V(logging.DEFAULT).Info("Simulation interrupted", "cycle", cycle)
			return err
		}

		if req, ok := r.generator.MaybeArrival(cycle, cfg.Cycles); ok {
			if r.submit(req) {
				logger.V(logging.VERBOSE).Info("New request added", "cycle", cycle, "origin", req.Origin())
			}
		}

		d.AdvanceCycle(ctx)

		last := cycle == cfg.Cycles
		if cycle%cfg.LogInterval == 0 || last {
			snap := d.Snapshot()
			if err := cl.write(snap); err != nil {
				return fmt.Errorf("failed to write cycle log: %w", err)
			}
			if err := r.recorder.CollectFrom(ctx, r.source); err != nil {
				return err
			}
			if cycle%cfg.StatusInterval == 0 || last {
				logStatus(ctx, snap)
			}
		}

		if cfg.CycleDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(cfg.CycleDelay):
			}
		}
	}
	return nil
}

func (r *Runner) submit(req *request.Request) bool {
	if err := r.dispatcher.Submit(req); err != nil {
		r.rejected[dispatcher.ReasonFor(err)]++
		return false
	}
	r.admitted++
	return true
}

func logStatus(ctx context.Context, s dispatcher.Snapshot) {
	logger := ctrl.LoggerFrom(ctx)
	logger.V(logging.DEFAULT).Info("Cycle status",
		"cycle", s.Cycle,
		"activeServers", s.ActiveWorkers,
		"queueSize", s.QueueSize,
		"totalProcessed", s.TotalProcessed,
		"systemUtilization", fmt.Sprintf("%.1f%%", s.SystemUtilization),
		"queueUtilization", fmt.Sprintf("%.1f%%", s.QueueUtilization))
	if s.Overloaded {
		logger.V(logging.DEFAULT).Info("System overloaded", "cycle", s.Cycle)
	}
}
