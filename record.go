package rtos

import (
	"sync"
)

// record is the state shared by every copy of a Ref.
type record[H comparable] struct {
	deleter func(H)
	mu      sync.Mutex
	native  H
	refs    int64
	deleted bool
}

func newRecord[H comparable](deleter func(H)) *record[H] {
	if deleter == nil {
		panic(`rtos: nil deleter`)
	}
	return &record[H]{
		deleter: deleter,
		refs:    1,
	}
}

// bind sets the native handle, using create, while holding the lock, so that
// the resource may not observe its own record before it is complete.
func (x *record[H]) bind(create func() (H, bool)) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	native, ok := create()
	var zero H
	if !ok || native == zero {
		return false
	}
	x.native = native
	return true
}

// acquire increments the reference count, unless it has already reached
// zero, in which case the record may not be revived.
func (x *record[H]) acquire() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.refs <= 0 {
		return false
	}
	x.refs++
	return true
}

// release drops a reference, deleting the resource if it was the last.
func (x *record[H]) release() {
	x.mu.Lock()
	x.refs--
	native, ok := x.markDeleted(x.refs == 0)
	x.mu.Unlock()
	// outside the lock: deleting the calling task does not return
	if ok {
		x.deleter(native)
	}
}

// destroy deletes the resource, if it has not already been deleted.
func (x *record[H]) destroy() bool {
	x.mu.Lock()
	native, ok := x.markDeleted(true)
	x.mu.Unlock()
	if ok {
		x.deleter(native)
	}
	return ok
}

// markDeleted is the single check-and-set of the deleted flag, which must be
// called with the lock held. The returned handle must be passed to deleter if
// ok.
func (x *record[H]) markDeleted(cond bool) (native H, ok bool) {
	var zero H
	if !cond || x.deleted || x.native == zero {
		return zero, false
	}
	native, x.native, x.deleted = x.native, zero, true
	return native, true
}

// snapshot returns the current state.
func (x *record[H]) snapshot() (native H, refs int64, deleted bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.native, x.refs, x.deleted
}
