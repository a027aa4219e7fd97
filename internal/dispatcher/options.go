package dispatcher

import (
	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/llm-d/llm-d-farm-simulator/internal/engines/scaling"
)

type options struct {
	queueCapacity int
	policy        scaling.Policy
	clock         clock.PassiveClock
	logger        *logr.Logger
}

// Option configures a Dispatcher.
type Option func(*options)

// WithQueueCapacity sets the admission queue size. Defaults to admission.DefaultMaxSize.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		o.queueCapacity = n
	}
}

// WithScalingPolicy replaces the hysteresis policy built from the threshold.
func WithScalingPolicy(p scaling.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithClock sets the clock handed to the admission queue.
func WithClock(clk clock.PassiveClock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithLogger sets the logger used by calls that take no context.
func WithLogger(logger logr.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}
