package rtos

import (
	"errors"
)

var (
	// ErrNullHandle indicates use of a handle without a backing resource.
	ErrNullHandle = errors.New(`rtos: null handle`)

	// ErrDeleted indicates use of a handle whose resource was deleted.
	ErrDeleted = errors.New(`rtos: resource deleted`)

	// ErrCorruptHandle indicates an attached, undeleted record holding a null
	// native id, which should never happen.
	ErrCorruptHandle = errors.New(`rtos: record holds a null native handle`)

	// ErrCreateFailed indicates the kernel refused to create a resource, e.g.
	// due to resource exhaustion.
	ErrCreateFailed = errors.New(`rtos: kernel failed to create resource`)

	// ErrTimeout indicates a timed operation was not satisfied in time.
	ErrTimeout = errors.New(`rtos: timed out`)
)
