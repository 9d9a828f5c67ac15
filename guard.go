package rtos

import (
	"context"
	"sync"
)

// Guard holds a Lockable, acquired by NewGuard, until Unlock is called. It
// must not be copied. The usual pattern is:
//
//	guard := rtos.NewGuard(ctx, mutex)
//	defer guard.Unlock()
type Guard struct {
	_    noCopy
	ctx  context.Context
	l    Lockable
	once sync.Once
}

// NewGuard locks l, waiting indefinitely. A panic will occur if l could not
// be locked, which implies it is null.
func NewGuard(ctx context.Context, l Lockable) *Guard {
	if !l.Lock(ctx, MaxDelay) {
		fatal(`guard`, ErrNullHandle, `failed to acquire lock with an unbounded wait`)
	}
	return &Guard{ctx: ctx, l: l}
}

// Unlock releases the lock. Only the first call has any effect.
func (x *Guard) Unlock() {
	x.once.Do(func() {
		x.l.Unlock(x.ctx)
	})
}

// WithLock calls fn while holding l, which is released on every exit path,
// including panics.
func WithLock(ctx context.Context, l Lockable, fn func() error) error {
	guard := NewGuard(ctx, l)
	defer guard.Unlock()
	return fn()
}
