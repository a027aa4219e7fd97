package admission

import "errors"

var (
	// ErrRejected is the general class of every admission denial. Errors
	// returned by Queue.Submit wrap it together with a specific cause.
	ErrRejected = errors.New("request rejected at admission")

	// ErrOriginBlocked indicates the request's origin is on the block-list.
	// The block-list is checked before capacity.
	ErrOriginBlocked = errors.New("origin is blocked")

	// ErrQueueFull indicates the queue already holds MaxSize requests.
	ErrQueueFull = errors.New("admission queue is full")
)
