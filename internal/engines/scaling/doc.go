// Package scaling decides whether the worker pool grows or shrinks.
//
// A Policy inspects a PoolState once per cycle and returns at most one
// Action. Two policies are provided:
//
//   - hysteresis: scale up when utilization exceeds the threshold or more
//     than QueuePressure requests are waiting; scale down only when
//     utilization falls below Threshold*ScaleDownFactor, the queue is empty
//     and the pool holds more than MinWorkers+MinHeadroom workers.
//   - static: never changes the pool.
//
// Example usage:
//
//	policy, err := scaling.NewPolicy(scaling.HysteresisStrategy, 0.8)
//	if err != nil {
//	    return err
//	}
//	switch policy.Decide(state) {
//	case scaling.ScaleUp:
//	    ...
//	}
//
// Bounds are enforced by the policy: ScaleUp is never returned for a pool at
// MaxWorkers.
package scaling
