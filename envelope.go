package rtos

import (
	"encoding/binary"
	"sync"
)

// envelopes holds the heap copies of values in flight through a queue. Only
// the id of each copy passes through the kernel, encoded into a slot, since Go
// pointers may not be stored in memory the garbage collector doesn't scan.
type envelopes[T any] struct {
	items  map[uint64]*T
	mu     sync.Mutex
	next   uint64
	closed bool
}

func newEnvelopes[T any]() *envelopes[T] {
	return &envelopes[T]{items: make(map[uint64]*T)}
}

// put stores a copy of value, returning its id, or false if closed.
func (x *envelopes[T]) put(value T) (uint64, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return 0, false
	}
	x.next++
	p := new(T)
	*p = value
	x.items[x.next] = p
	return x.next, true
}

// take removes the copy identified by id, returning its value.
func (x *envelopes[T]) take(id uint64) (value T, ok bool) {
	x.mu.Lock()
	p, ok := x.items[id]
	delete(x.items, id)
	x.mu.Unlock()
	if ok {
		value = *p
	}
	return
}

// close releases every remaining copy, and prevents further puts.
func (x *envelopes[T]) close() (released int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	released = len(x.items)
	clear(x.items)
	return released
}

func (x *envelopes[T]) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.items)
}

func encodeSlot(slot []byte, id uint64) {
	binary.LittleEndian.PutUint64(slot, id)
}

func decodeSlot(slot []byte) uint64 {
	return binary.LittleEndian.Uint64(slot)
}
