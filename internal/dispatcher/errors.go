package dispatcher

import (
	"errors"

	"github.com/llm-d/llm-d-farm-simulator/internal/admission"
	"github.com/llm-d/llm-d-farm-simulator/internal/worker"
)

var (
	// ErrPoolAtMaximum is returned by AddWorker when the pool holds maxWorkers.
	ErrPoolAtMaximum = errors.New("worker pool at maximum size")
	// ErrPoolAtMinimum is returned by RemoveWorker when the pool holds minWorkers.
	ErrPoolAtMinimum = errors.New("worker pool at minimum size")
)

// DenialReason is a low-cardinality classification of a denial error,
// suitable as a metric label.
type DenialReason string

const (
	ReasonBlocked      DenialReason = "blocked"
	ReasonQueueFull    DenialReason = "queue-full"
	ReasonWorkerFull   DenialReason = "worker-full"
	ReasonInactive     DenialReason = "inactive"
	ReasonBoundReached DenialReason = "bound-reached"
	ReasonUnknown      DenialReason = "unknown"
)

// ReasonFor classifies err. It returns the empty reason for a nil error and
// ReasonUnknown for errors outside the denial set.
func ReasonFor(err error) DenialReason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, admission.ErrOriginBlocked):
		return ReasonBlocked
	case errors.Is(err, admission.ErrQueueFull):
		return ReasonQueueFull
	case errors.Is(err, worker.ErrAtCapacity):
		return ReasonWorkerFull
	case errors.Is(err, worker.ErrInactive):
		return ReasonInactive
	case errors.Is(err, ErrPoolAtMaximum), errors.Is(err, ErrPoolAtMinimum):
		return ReasonBoundReached
	default:
		return ReasonUnknown
	}
}
