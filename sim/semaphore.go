package sim

import (
	"container/list"
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/joeycumines/go-rtos"
)

type (
	// semaphore implements every rtos.SemaphoreKind. Tokens are handed
	// directly to the longest waiting caller, so a give never races a new
	// take for the token.
	semaphore struct {
		deleted chan struct{}
		// owner is the holding task, for mutex kinds, where nil indicates
		// a caller that isn't a task
		owner   *task
		waiters list.List
		kind    rtos.SemaphoreKind
		count   int
		max     int
		// depth is the number of times owner has taken a mutex
		depth int
		mu    sync.Mutex
	}

	semaphoreWaiter struct {
		t       *task
		ready   chan struct{}
		granted bool
	}
)

// CreateSemaphore implements rtos.Kernel.
func (x *Kernel) CreateSemaphore(kind rtos.SemaphoreKind, max, initial int) rtos.SemaphoreHandle {
	s := semaphore{
		deleted: make(chan struct{}),
		kind:    kind,
	}
	switch kind {
	case rtos.SemaphoreMutex, rtos.SemaphoreRecursiveMutex:
		s.count, s.max = 1, 1
	case rtos.SemaphoreBinary:
		s.count, s.max = 0, 1
	case rtos.SemaphoreCounting:
		if max <= 0 || initial < 0 || initial > max {
			x.logger.Warning().
				Int(`max`, max).
				Int(`initial`, initial).
				Log(`invalid counting semaphore parameters`)
			return 0
		}
		s.count, s.max = initial, max
	default:
		x.logger.Warning().
			Int(`kind`, int(kind)).
			Log(`unknown semaphore kind`)
		return 0
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if !withinLimit(x.config.MaxSemaphores, len(x.semaphores)) {
		x.logger.Warning().
			Int(`limit`, x.config.MaxSemaphores).
			Log(`semaphore limit reached`)
		return 0
	}

	h := rtos.SemaphoreHandle(x.nextHandle())
	x.semaphores[h] = &s
	x.stats.SemaphoresCreated++

	return h
}

// SemaphoreTake implements rtos.Kernel.
func (x *Kernel) SemaphoreTake(ctx context.Context, h rtos.SemaphoreHandle, timeout time.Duration) bool {
	t := x.enter(ctx)
	s := x.semaphore(h)
	if s == nil {
		return false
	}
	return s.take(t, timeout)
}

// SemaphoreGive implements rtos.Kernel.
func (x *Kernel) SemaphoreGive(ctx context.Context, h rtos.SemaphoreHandle) bool {
	t := x.enter(ctx)
	s := x.semaphore(h)
	if s == nil {
		return false
	}
	return s.give(t)
}

// DeleteSemaphore implements rtos.Kernel. Callers blocked on the semaphore
// fail.
func (x *Kernel) DeleteSemaphore(h rtos.SemaphoreHandle) {
	x.mu.Lock()
	s := x.semaphores[h]
	if s == nil {
		x.mu.Unlock()
		x.doubleDelete(`semaphore`, uintptr(h))
		return
	}
	delete(x.semaphores, h)
	x.stats.SemaphoresDeleted++
	x.mu.Unlock()

	close(s.deleted)
}

func (x *Kernel) semaphore(h rtos.SemaphoreHandle) *semaphore {
	x.mu.Lock()
	defer x.mu.Unlock()
	s := x.semaphores[h]
	if s == nil {
		x.logger.Warning().
			Uint64(`handle`, uint64(h)).
			Log(`unknown semaphore handle`)
	}
	return s
}

func (x *semaphore) take(t *task, timeout time.Duration) bool {
	x.mu.Lock()

	select {
	case <-x.deleted:
		x.mu.Unlock()
		return false
	default:
	}

	if x.kind == rtos.SemaphoreRecursiveMutex && x.depth != 0 && x.owner == t {
		x.depth++
		x.mu.Unlock()
		return true
	}

	if x.count != 0 && x.waiters.Len() == 0 {
		x.acquire(t)
		x.mu.Unlock()
		return true
	}

	if timeout <= 0 {
		x.mu.Unlock()
		return false
	}

	w := &semaphoreWaiter{t: t, ready: make(chan struct{})}
	e := x.waiters.PushBack(w)
	x.mu.Unlock()

	expire, stop := after(timeout)
	defer stop()

	var killed bool
	select {
	case <-w.ready:
		return true
	case <-expire:
	case <-x.deleted:
	case <-t.deleted():
		killed = true
	}

	x.mu.Lock()
	granted := w.granted
	if !granted {
		x.waiters.Remove(e)
	}
	x.mu.Unlock()

	if killed {
		// a granted mutex stays held by the deleted task
		runtime.Goexit()
	}

	return granted
}

func (x *semaphore) give(t *task) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	select {
	case <-x.deleted:
		return false
	default:
	}

	if x.kind.IsMutex() {
		if x.depth == 0 || x.owner != t {
			return false
		}
		x.depth--
		if x.depth != 0 {
			return true
		}
		x.owner = nil
	} else if x.count >= x.max {
		return false
	}
	x.count++

	if e := x.waiters.Front(); e != nil {
		w := x.waiters.Remove(e).(*semaphoreWaiter)
		w.granted = true
		x.acquire(w.t)
		close(w.ready)
	}

	return true
}

// acquire must be called with the mutex held, and count non-zero.
func (x *semaphore) acquire(t *task) {
	x.count--
	if x.kind.IsMutex() {
		x.owner = t
		x.depth = 1
	}
}
