// Package dispatcher implements the load balancer at the center of the farm.
//
// Each call to AdvanceCycle performs, in order:
//
//  1. one unit of work on every active worker, retiring finished requests
//  2. distribution of queued requests onto workers in round-robin order,
//     bounded by an attempt budget of twice the pool size
//  3. one scaling evaluation, adding or removing at most one worker
//
// Admission denials and pool bound violations are reported as errors that
// can be classified with ReasonFor.
package dispatcher
