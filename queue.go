package rtos

import (
	"context"
	"fmt"
	"time"
)

type (
	// Queue is a reference-counted handle to a fixed-capacity kernel queue,
	// carrying values of type T.
	//
	// The kernel only moves fixed-size slots, so each value is copied to the
	// heap on send, and only an identifier of that copy is enqueued. The copy
	// is released on receive, or if the send fails, or when the queue is
	// deleted.
	//
	// The zero value is a null handle. Queues must be created using NewQueue.
	Queue[T any] struct {
		Ref[QueueHandle]
		shared *queueShared[T]
	}

	// queueShared is immutable, and common to every copy of a Queue.
	queueShared[T any] struct {
		k      Kernel
		env    *envelopes[T]
		length int
	}
)

// NewQueue creates a queue with capacity for length values.
//
// If the queue could not be created, a null (non-nil) Queue is returned, along
// with an error. A panic will occur if k is nil.
func NewQueue[T any](k Kernel, length int) (*Queue[T], error) {
	if k == nil {
		panic(`rtos: nil kernel`)
	}
	if length <= 0 {
		return new(Queue[T]), fmt.Errorf(`rtos: invalid queue length: %d`, length)
	}

	shared := &queueShared[T]{
		k:      k,
		env:    newEnvelopes[T](),
		length: length,
	}

	rec := newRecord(func(h QueueHandle) {
		released := shared.env.close()
		getLogger().Debug().
			Uint64(`handle`, uint64(h)).
			Int(`released`, released).
			Log(`deleting queue`)
		k.DeleteQueue(h)
	})

	if !rec.bind(func() (QueueHandle, bool) {
		h := k.CreateQueue(SlotSize, length)
		return h, h != 0
	}) {
		getLogger().Err().
			Int(`length`, length).
			Log(`failed to create queue`)
		return new(Queue[T]), fmt.Errorf(`%w: queue of length %d`, ErrCreateFailed, length)
	}

	queue := Queue[T]{shared: shared}
	queue.rec = rec
	return &queue, nil
}

// Send enqueues a copy of value, waiting up to timeout for space.
//
// ErrNullHandle or ErrDeleted will be returned immediately if the queue is
// unusable, or ErrTimeout if no space became available in time.
func (x *Queue[T]) Send(ctx context.Context, value T, timeout time.Duration) error {
	h, shared, err := x.live()
	if err != nil {
		return err
	}

	id, ok := shared.env.put(value)
	if !ok {
		return ErrDeleted
	}

	var slot [SlotSize]byte
	encodeSlot(slot[:], id)

	if !shared.k.QueueSend(ctx, h, slot[:], timeout) {
		// the kernel never saw it, so we still own it
		shared.env.take(id)
		return ErrTimeout
	}

	return nil
}

// Receive dequeues a value, waiting up to timeout for one to be available.
// The bool will be false on timeout, or if the queue is unusable.
func (x *Queue[T]) Receive(ctx context.Context, timeout time.Duration) (value T, ok bool) {
	ok = x.ReceiveTo(ctx, &value, timeout)
	return
}

// ReceiveTo is like Receive, but assigns to out, which is not modified unless
// true is returned.
func (x *Queue[T]) ReceiveTo(ctx context.Context, out *T, timeout time.Duration) bool {
	h, shared, err := x.live()
	if err != nil {
		return false
	}

	var slot [SlotSize]byte
	if !shared.k.QueueReceive(ctx, h, slot[:], timeout) {
		return false
	}

	id := decodeSlot(slot[:])
	value, ok := shared.env.take(id)
	if !ok {
		getLogger().Err().
			Uint64(`handle`, uint64(h)).
			Uint64(`envelope`, id).
			Log(`received slot references a missing envelope`)
		return false
	}

	*out = value
	return true
}

// ReceiveForever waits indefinitely for a value. A panic will occur if the
// queue is null or deleted, as the wait could never be satisfied.
func (x *Queue[T]) ReceiveForever(ctx context.Context) T {
	for {
		if _, _, err := x.live(); err != nil {
			fatal(`queue`, err, `receive forever on an unusable queue`)
		}
		if value, ok := x.Receive(ctx, MaxDelay); ok {
			return value
		}
	}
}

// Len returns the number of values waiting in the queue, 0 if null.
func (x *Queue[T]) Len() int {
	h, shared, err := x.live()
	if err != nil {
		return 0
	}
	return shared.k.QueueMessagesWaiting(h)
}

// Cap returns the capacity of the queue, 0 if null.
func (x *Queue[T]) Cap() int {
	if _, shared, err := x.live(); err == nil {
		return shared.length
	}
	return 0
}

// Allocated returns the number of heap copies currently owned by the queue,
// which will equal Len, outside of any in-flight operations.
func (x *Queue[T]) Allocated() int {
	if x == nil || x.shared == nil {
		return 0
	}
	return x.shared.env.len()
}

// Clone returns a new handle to the same queue. See also Ref.Clone.
func (x *Queue[T]) Clone() *Queue[T] {
	var queue Queue[T]
	if x != nil {
		x.cloneInto(&queue.Ref)
		if queue.rec != nil {
			queue.shared = x.shared
		}
	}
	return &queue
}

// Move returns a new handle holding the receiver's share, which becomes null.
// See also Ref.Move.
func (x *Queue[T]) Move() *Queue[T] {
	var queue Queue[T]
	if x != nil {
		x.moveInto(&queue.Ref)
		queue.shared, x.shared = x.shared, nil
	}
	return &queue
}

// Assign makes the receiver share the queue of src, releasing the receiver's
// previous share. See also Ref.Assign.
func (x *Queue[T]) Assign(src *Queue[T]) {
	if x == src {
		return
	}
	if src == nil {
		x.Release()
		return
	}
	x.Ref.Assign(&src.Ref)
	x.shared = src.shared
}

// AssignMove moves the share held by src into the receiver, releasing the
// receiver's previous share. See also Ref.AssignMove.
func (x *Queue[T]) AssignMove(src *Queue[T]) {
	if x == src {
		return
	}
	if src == nil {
		x.Release()
		return
	}
	x.Ref.AssignMove(&src.Ref)
	x.shared, src.shared = src.shared, nil
}

// Equal reports whether both handles are null, or refer to the same queue.
func (x *Queue[T]) Equal(other *Queue[T]) bool {
	var a, b *Ref[QueueHandle]
	if x != nil {
		a = &x.Ref
	}
	if other != nil {
		b = &other.Ref
	}
	return a.Equal(b)
}

// HasDeleted reports whether the queue has been deleted, see Ref.HasDeleted.
func (x *Queue[T]) HasDeleted() bool {
	if x == nil {
		return (*Ref[QueueHandle])(nil).hasDeleted(`queue`)
	}
	return x.hasDeleted(`queue`)
}

// MustNative returns the native handle, panicking if it is unavailable, see
// Ref.MustNative.
func (x *Queue[T]) MustNative() QueueHandle {
	if x == nil {
		return (*Ref[QueueHandle])(nil).mustNative(`queue`)
	}
	return x.mustNative(`queue`)
}

func (x *Queue[T]) live() (QueueHandle, *queueShared[T], error) {
	if x == nil || x.rec == nil {
		return 0, nil, ErrNullHandle
	}
	native, _, deleted := x.rec.snapshot()
	switch {
	case deleted:
		return 0, nil, ErrDeleted
	case native == 0:
		return 0, nil, ErrNullHandle
	}
	return native, x.shared, nil
}
