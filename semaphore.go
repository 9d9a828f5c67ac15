package rtos

import (
	"context"
	"fmt"
	"time"
)

type (
	// Lockable is implemented by each of the mutual exclusion primitives.
	Lockable interface {
		// Lock waits up to timeout to acquire, returning false on timeout, or
		// if the receiver is null.
		Lock(ctx context.Context, timeout time.Duration) bool

		// Unlock releases one unit, returning false if the kernel refused,
		// e.g. the caller didn't hold a mutex. Unlocking without a matching
		// Lock is a programming error.
		Unlock(ctx context.Context) bool
	}

	// Mutex is a non-recursive mutex, with an owning task.
	Mutex struct{ semaphore }

	// RecursiveMutex is a mutex that the owning task may acquire multiple
	// times, requiring an equal number of unlocks.
	RecursiveMutex struct{ semaphore }

	// BinarySemaphore is a single token signal, without ownership. It is
	// created empty, i.e. it must be unlocked (given) before it can be locked
	// (taken).
	BinarySemaphore struct{ semaphore }

	// CountingSemaphore is a bounded pool of tokens, without ownership.
	CountingSemaphore struct{ semaphore }

	// semaphore exclusively owns a native semaphore handle. It is never
	// shared or reference counted, and must not be copied, use the Move
	// methods to transfer ownership.
	//
	// WARNING: Moving a locked mutex does not change the kernel's record of
	// the owning task, which is still the task that locked it.
	semaphore struct {
		_      noCopy
		k      Kernel
		native SemaphoreHandle
		kind   SemaphoreKind
	}
)

var (
	// compile time assertions

	_ Lockable = (*Mutex)(nil)
	_ Lockable = (*RecursiveMutex)(nil)
	_ Lockable = (*BinarySemaphore)(nil)
	_ Lockable = (*CountingSemaphore)(nil)
)

// NewMutex creates a Mutex. On failure, a null (non-nil) Mutex is returned,
// along with an error.
func NewMutex(k Kernel) (*Mutex, error) {
	var m Mutex
	err := m.create(k, SemaphoreMutex, 1, 1)
	return &m, err
}

// NewRecursiveMutex creates a RecursiveMutex. On failure, a null (non-nil)
// RecursiveMutex is returned, along with an error.
func NewRecursiveMutex(k Kernel) (*RecursiveMutex, error) {
	var m RecursiveMutex
	err := m.create(k, SemaphoreRecursiveMutex, 1, 1)
	return &m, err
}

// NewBinarySemaphore creates an empty BinarySemaphore. On failure, a null
// (non-nil) BinarySemaphore is returned, along with an error.
func NewBinarySemaphore(k Kernel) (*BinarySemaphore, error) {
	var s BinarySemaphore
	err := s.create(k, SemaphoreBinary, 1, 0)
	return &s, err
}

// NewCountingSemaphore creates a CountingSemaphore, holding initial of a
// maximum of max tokens. On failure, a null (non-nil) CountingSemaphore is
// returned, along with an error.
func NewCountingSemaphore(k Kernel, max, initial int) (*CountingSemaphore, error) {
	var s CountingSemaphore
	if max <= 0 || initial < 0 || initial > max {
		return &s, fmt.Errorf(`rtos: invalid counting semaphore: max=%d initial=%d`, max, initial)
	}
	err := s.create(k, SemaphoreCounting, max, initial)
	return &s, err
}

// Move returns a new Mutex owning the receiver's handle, which becomes null.
func (x *Mutex) Move() *Mutex {
	var m Mutex
	x.moveTo(&m.semaphore)
	return &m
}

// Move returns a new RecursiveMutex owning the receiver's handle, which
// becomes null.
func (x *RecursiveMutex) Move() *RecursiveMutex {
	var m RecursiveMutex
	x.moveTo(&m.semaphore)
	return &m
}

// Move returns a new BinarySemaphore owning the receiver's handle, which
// becomes null.
func (x *BinarySemaphore) Move() *BinarySemaphore {
	var s BinarySemaphore
	x.moveTo(&s.semaphore)
	return &s
}

// Move returns a new CountingSemaphore owning the receiver's handle, which
// becomes null.
func (x *CountingSemaphore) Move() *CountingSemaphore {
	var s CountingSemaphore
	x.moveTo(&s.semaphore)
	return &s
}

// Lock takes the semaphore, waiting up to timeout.
func (x *semaphore) Lock(ctx context.Context, timeout time.Duration) bool {
	if x.IsNull() {
		return false
	}
	return x.k.SemaphoreTake(ctx, x.native, timeout)
}

// Unlock gives the semaphore.
func (x *semaphore) Unlock(ctx context.Context) bool {
	if x.IsNull() {
		return false
	}
	return x.k.SemaphoreGive(ctx, x.native)
}

// Close deletes the semaphore, leaving the receiver null. It is safe to call
// on a null receiver.
func (x *semaphore) Close() error {
	if x.IsNull() {
		return nil
	}
	native := x.native
	x.native = 0
	getLogger().Debug().
		Stringer(`kind`, x.kind).
		Uint64(`handle`, uint64(native)).
		Log(`deleting semaphore`)
	x.k.DeleteSemaphore(native)
	return nil
}

// Native returns the native handle, which is zero if the receiver is null.
func (x *semaphore) Native() SemaphoreHandle {
	if x == nil {
		return 0
	}
	return x.native
}

// IsNull reports whether the receiver lacks a native handle.
func (x *semaphore) IsNull() bool {
	return x == nil || x.native == 0
}

// Kind returns the kind of native semaphore.
func (x *semaphore) Kind() SemaphoreKind {
	if x == nil {
		return 0
	}
	return x.kind
}

func (x *semaphore) create(k Kernel, kind SemaphoreKind, max, initial int) error {
	if k == nil {
		panic(`rtos: nil kernel`)
	}
	native := k.CreateSemaphore(kind, max, initial)
	if native == 0 {
		getLogger().Err().
			Stringer(`kind`, kind).
			Log(`failed to create semaphore`)
		return fmt.Errorf(`%w: %s semaphore`, ErrCreateFailed, kind)
	}
	x.k = k
	x.native = native
	x.kind = kind
	return nil
}

func (x *semaphore) moveTo(dst *semaphore) {
	if x == nil || x == dst {
		return
	}
	dst.k, dst.native, dst.kind = x.k, x.native, x.kind
	x.native = 0
}
