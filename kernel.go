package rtos

import (
	"context"
	"math"
	"time"
)

type (
	// Kernel models the native primitives of a preemptive real-time kernel,
	// as consumed by this package. Implementations are expected to behave like
	// FreeRTOS, e.g. queue wake order is FIFO, and a zero timeout polls.
	//
	// Every blocking method accepts the context provided to the calling task's
	// entry point (or any other context, for callers that are not kernel
	// tasks). The context identifies the caller, e.g. for mutex ownership. It
	// is not used for cancellation.
	//
	// See [github.com/joeycumines/go-rtos/sim] for an in-process
	// implementation.
	Kernel interface {
		// CreateTask creates and schedules a task, which will call entry
		// exactly once, on its own execution context. The entry point must
		// not return without the task first being deleted.
		CreateTask(params TaskParams, entry func(ctx context.Context)) (TaskHandle, bool)

		// DeleteTask deletes a task. Deleting the calling task may not return.
		DeleteTask(h TaskHandle)

		// Delay blocks the calling task for at least d.
		Delay(ctx context.Context, d time.Duration)

		// TaskNotifyGive increments the notification value of a task.
		TaskNotifyGive(h TaskHandle) bool

		// TaskNotifyTake waits for the calling task's notification value to
		// become non-zero, then decrements it, or clears it if clearOnExit is
		// set. The value prior to modification is returned, 0 on timeout.
		TaskNotifyTake(ctx context.Context, clearOnExit bool, timeout time.Duration) uint32

		// CreateQueue creates a queue of length slots, each itemSize bytes.
		// A zero handle indicates failure.
		CreateQueue(itemSize, length int) QueueHandle

		// QueueSend copies item into the back of the queue.
		QueueSend(ctx context.Context, h QueueHandle, item []byte, timeout time.Duration) bool

		// QueueReceive copies the item at the front of the queue into out,
		// removing it.
		QueueReceive(ctx context.Context, h QueueHandle, out []byte, timeout time.Duration) bool

		// QueueMessagesWaiting returns the number of items in the queue.
		QueueMessagesWaiting(h QueueHandle) int

		// DeleteQueue deletes a queue, discarding any items.
		DeleteQueue(h QueueHandle)

		// CreateSemaphore creates a semaphore of the given kind. The max and
		// initial counts are only used by SemaphoreCounting. A zero handle
		// indicates failure.
		CreateSemaphore(kind SemaphoreKind, max, initial int) SemaphoreHandle

		// SemaphoreTake takes a semaphore, using the recursive variant for
		// SemaphoreRecursiveMutex.
		SemaphoreTake(ctx context.Context, h SemaphoreHandle, timeout time.Duration) bool

		// SemaphoreGive gives a semaphore, using the recursive variant for
		// SemaphoreRecursiveMutex.
		SemaphoreGive(ctx context.Context, h SemaphoreHandle) bool

		// DeleteSemaphore deletes a semaphore.
		DeleteSemaphore(h SemaphoreHandle)
	}

	// TaskParams are the native task creation parameters.
	TaskParams struct {
		Name      string
		StackSize uint32
		Priority  uint32
		// Core is the core the task is pinned to, or NoAffinity.
		Core int
	}

	// TaskHandle is an opaque kernel task identifier, zero is null.
	TaskHandle uintptr

	// QueueHandle is an opaque kernel queue identifier, zero is null.
	QueueHandle uintptr

	// SemaphoreHandle is an opaque kernel semaphore identifier, zero is null.
	SemaphoreHandle uintptr

	// SemaphoreKind selects one of the native semaphore variants.
	SemaphoreKind int
)

const (
	SemaphoreMutex SemaphoreKind = iota + 1
	SemaphoreRecursiveMutex
	SemaphoreBinary
	SemaphoreCounting
)

const (
	// MaxDelay is the timeout that blocks indefinitely.
	MaxDelay time.Duration = math.MaxInt64

	// NoAffinity allows a task to run on any core.
	NoAffinity = -1

	// SlotSize is the item size of every queue created by this package.
	SlotSize = 8
)

// String implements fmt.Stringer.
func (x SemaphoreKind) String() string {
	switch x {
	case SemaphoreMutex:
		return `mutex`
	case SemaphoreRecursiveMutex:
		return `recursive_mutex`
	case SemaphoreBinary:
		return `binary`
	case SemaphoreCounting:
		return `counting`
	default:
		return `unknown`
	}
}

// IsMutex indicates the kind tracks an owning task.
func (x SemaphoreKind) IsMutex() bool {
	return x == SemaphoreMutex || x == SemaphoreRecursiveMutex
}
