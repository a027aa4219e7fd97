package scaling

import "fmt"

const (
	// DefaultScaleDownFactor multiplies the threshold to obtain the
	// utilization below which the pool may shrink.
	DefaultScaleDownFactor = 0.05
	// DefaultQueuePressure is the queue size above which the pool grows
	// regardless of utilization.
	DefaultQueuePressure = 10
	// DefaultMinHeadroom is how many workers above the minimum the pool must
	// hold before it may shrink.
	DefaultMinHeadroom = 3
)

// HysteresisConfig holds the configuration for the HysteresisPolicy
type HysteresisConfig struct {
	// Threshold is the scale-up utilization in (0, 1).
	Threshold float64
	// Zero values below are replaced with the package defaults.
	ScaleDownFactor float64
	QueuePressure   int
	MinHeadroom     int
}

// HysteresisPolicy grows the pool on high utilization or queue pressure and
// shrinks it only when the farm is nearly idle, leaving a wide band in which
// nothing changes.
type HysteresisPolicy struct {
	config HysteresisConfig
}

// NewHysteresisPolicy creates a HysteresisPolicy, filling unset tunables with defaults
func NewHysteresisPolicy(config *HysteresisConfig) (*HysteresisPolicy, error) {
	if config == nil {
		return nil, fmt.Errorf("hysteresis policy config cannot be nil")
	}
	if config.Threshold <= 0 || config.Threshold >= 1 {
		return nil, fmt.Errorf("scale threshold must be in (0, 1), got %v", config.Threshold)
	}
	c := *config
	if c.ScaleDownFactor == 0 {
		c.ScaleDownFactor = DefaultScaleDownFactor
	}
	if c.QueuePressure == 0 {
		c.QueuePressure = DefaultQueuePressure
	}
	if c.MinHeadroom == 0 {
		c.MinHeadroom = DefaultMinHeadroom
	}
	return &HysteresisPolicy{config: c}, nil
}

// Config returns the effective configuration.
func (p *HysteresisPolicy) Config() HysteresisConfig {
	return p.config
}

func (p *HysteresisPolicy) Decide(state PoolState) Action {
	c := p.config
	if (state.AverageUtilization > c.Threshold || state.QueueSize > c.QueuePressure) &&
		state.PoolSize < state.MaxWorkers {
		return ScaleUp
	}
	if state.AverageUtilization < c.Threshold*c.ScaleDownFactor &&
		state.QueueSize == 0 &&
		state.PoolSize > state.MinWorkers+c.MinHeadroom {
		return ScaleDown
	}
	return None
}
