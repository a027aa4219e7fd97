package scaling

import (
	"fmt"
	"strings"
)

// PoolState is the snapshot of the farm a Policy decides on.
type PoolState struct {
	// AverageUtilization is the mean utilization of active workers as a
	// fraction in [0, 1]. It is 0 when no worker is active.
	AverageUtilization float64
	QueueSize          int
	PoolSize           int
	MinWorkers         int
	MaxWorkers         int
}

// Action is the outcome of a scaling evaluation. At most one worker is added
// or removed per evaluation.
type Action int

const (
	None Action = iota
	ScaleUp
	ScaleDown
)

func (a Action) String() string {
	switch a {
	case ScaleUp:
		return "scale-up"
	case ScaleDown:
		return "scale-down"
	default:
		return "none"
	}
}

// Policy is an interface that defines the method for deciding whether the pool should grow or shrink
type Policy interface {
	// Decide returns the action to take for the given pool state
	Decide(state PoolState) Action
}

// Strategy is an enumeration of the different strategies that can be used by the Policy
type Strategy int

// enumeration of Strategy
const (
	HysteresisStrategy Strategy = iota
	StaticStrategy
)

func (s Strategy) String() string {
	switch s {
	case HysteresisStrategy:
		return "hysteresis"
	case StaticStrategy:
		return "static"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy resolves a strategy by its case-insensitive name. An empty
// name selects HysteresisStrategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hysteresis":
		return HysteresisStrategy, nil
	case "static":
		return StaticStrategy, nil
	default:
		return 0, fmt.Errorf("unsupported scaling strategy: %q", name)
	}
}

// NewPolicy is a factory that creates a new Policy based on the provided strategy
func NewPolicy(strategy Strategy, threshold float64) (Policy, error) {
	switch strategy {
	case HysteresisStrategy:
		return NewHysteresisPolicy(&HysteresisConfig{Threshold: threshold})
	case StaticStrategy:
		return NewStaticPolicy(), nil
	default:
		return nil, fmt.Errorf("unsupported scaling strategy: %v", strategy)
	}
}
