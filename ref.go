package rtos

// Ref is a reference-counted handle to a kernel resource, identified by a
// native handle of type H, where the zero value of H is null.
//
// Each Ref value holds at most one share of a record, which is common to all
// copies made via Clone or Assign. The resource is deleted exactly once: when
// the last share is released, or earlier, via Delete.
//
// The zero value is a null handle. A single Ref must not be mutated (Move,
// Assign, Release, etc.) concurrently, but distinct copies of the same
// resource may be used from any goroutine or task. Refs must not be copied by
// value, use Clone.
type Ref[H comparable] struct {
	_   noCopy
	rec *record[H]
}

// noCopy may be embedded in structs which must not be copied after first
// use, see https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// NewRef wraps a newly created resource, with a reference count of 1. The
// deleter will be called at most once, with native. If native is the zero
// value, a null Ref is returned. A panic will occur if deleter is nil.
func NewRef[H comparable](native H, deleter func(H)) *Ref[H] {
	var ref Ref[H]
	ref.rec = newRecord(deleter)
	if !ref.rec.bind(func() (H, bool) { return native, true }) {
		ref.rec = nil
	}
	return &ref
}

// Clone returns a new handle sharing the receiver's resource, incrementing
// the reference count. Cloning a null handle returns a null handle.
func (x *Ref[H]) Clone() *Ref[H] {
	var ref Ref[H]
	x.cloneInto(&ref)
	return &ref
}

// Move returns a new handle holding the receiver's share, without changing
// the reference count. The receiver becomes null.
func (x *Ref[H]) Move() *Ref[H] {
	var ref Ref[H]
	x.moveInto(&ref)
	return &ref
}

// Assign makes the receiver share the resource of src, releasing any share
// the receiver previously held. Self-assignment is safe.
func (x *Ref[H]) Assign(src *Ref[H]) {
	if x == src {
		return
	}
	var rec *record[H]
	if src != nil && src.rec != nil && src.rec.acquire() {
		rec = src.rec
	}
	x.reset(rec)
}

// AssignMove moves the share held by src into the receiver, releasing any
// share the receiver previously held. src becomes null.
func (x *Ref[H]) AssignMove(src *Ref[H]) {
	if x == src {
		return
	}
	var rec *record[H]
	if src != nil {
		rec, src.rec = src.rec, nil
	}
	x.reset(rec)
}

// Release drops the receiver's share, deleting the resource if it was the
// last, and it was not already deleted. The receiver becomes null. Releasing a
// null handle does nothing.
func (x *Ref[H]) Release() {
	if x == nil {
		return
	}
	x.reset(nil)
}

// Delete deletes the resource, if it has not already been deleted, and
// reports whether this call performed the deletion. Every copy observes the
// deletion. The receiver keeps its share, releasing it is still necessary,
// though it won't delete anything further.
func (x *Ref[H]) Delete() bool {
	if x == nil || x.rec == nil {
		return false
	}
	return x.rec.destroy()
}

// IsNull reports whether the receiver lacks a live native handle, i.e. it was
// never assigned, was released or moved from, or the resource was deleted.
func (x *Ref[H]) IsNull() bool {
	var zero H
	return x.Native() == zero
}

// HasDeleted reports whether the resource has been deleted. A handle without
// a record always reports true, and logs a warning, since the question is
// almost certainly a mistake.
func (x *Ref[H]) HasDeleted() bool {
	return x.hasDeleted(`resource`)
}

// Native returns the native handle, or the zero value if the receiver is null.
func (x *Ref[H]) Native() H {
	var zero H
	if x == nil || x.rec == nil {
		return zero
	}
	native, _, _ := x.rec.snapshot()
	return native
}

// MustNative returns the native handle, panicking with ErrNullHandle,
// ErrDeleted, or ErrCorruptHandle, if it isn't available.
func (x *Ref[H]) MustNative() H {
	return x.mustNative(`resource`)
}

// UseCount returns the number of shares of the receiver's record. A null
// handle reports 1.
func (x *Ref[H]) UseCount() int64 {
	if x.IsNull() {
		return 1
	}
	_, refs, _ := x.rec.snapshot()
	return refs
}

// Equal reports whether both handles are null, or both refer to the same
// native handle.
func (x *Ref[H]) Equal(other *Ref[H]) bool {
	if x == other {
		return true
	}
	a, b := x.Native(), other.Native()
	return a == b
}

func (x *Ref[H]) cloneInto(dst *Ref[H]) {
	if x != nil && x.rec != nil && x.rec.acquire() {
		dst.rec = x.rec
	}
}

func (x *Ref[H]) moveInto(dst *Ref[H]) {
	if x != nil {
		dst.rec, x.rec = x.rec, nil
	}
}

// reset replaces the held record with rec, which must already be acquired.
func (x *Ref[H]) reset(rec *record[H]) {
	old := x.rec
	x.rec = rec
	if old != nil {
		old.release()
	}
}

func (x *Ref[H]) hasDeleted(kind string) bool {
	if x == nil || x.rec == nil {
		warning(`has_deleted_on_null`).
			Str(`resource`, kind).
			Log(`has deleted called on a null handle, always true`)
		return true
	}
	_, _, deleted := x.rec.snapshot()
	return deleted
}

func (x *Ref[H]) mustNative(kind string) H {
	if x == nil || x.rec == nil {
		fatal(kind, ErrNullHandle, `native handle required from a null handle, use Native to allow null`)
	}
	native, _, deleted := x.rec.snapshot()
	var zero H
	switch {
	case deleted:
		fatal(kind, ErrDeleted, `native handle required from a deleted resource`)
	case native == zero:
		fatal(kind, ErrCorruptHandle, `undeleted record holds a null native handle`)
	}
	return native
}
