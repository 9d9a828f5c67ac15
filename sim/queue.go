package sim

import (
	"context"
	"runtime"
	"slices"
	"time"

	"github.com/joeycumines/go-rtos"
)

// queue relies on channel semantics for FIFO ordering of both items and
// blocked callers.
type queue struct {
	slots    chan []byte
	deleted  chan struct{}
	itemSize int
}

// CreateQueue implements rtos.Kernel.
func (x *Kernel) CreateQueue(itemSize, length int) rtos.QueueHandle {
	if itemSize <= 0 || length <= 0 {
		x.logger.Warning().
			Int(`item_size`, itemSize).
			Int(`length`, length).
			Log(`invalid queue parameters`)
		return 0
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if !withinLimit(x.config.MaxQueues, len(x.queues)) {
		x.logger.Warning().
			Int(`limit`, x.config.MaxQueues).
			Log(`queue limit reached`)
		return 0
	}

	h := rtos.QueueHandle(x.nextHandle())
	x.queues[h] = &queue{
		slots:    make(chan []byte, length),
		deleted:  make(chan struct{}),
		itemSize: itemSize,
	}
	x.stats.QueuesCreated++

	return h
}

// QueueSend implements rtos.Kernel.
func (x *Kernel) QueueSend(ctx context.Context, h rtos.QueueHandle, item []byte, timeout time.Duration) bool {
	t := x.enter(ctx)

	q := x.queue(h)
	if q == nil {
		return false
	}
	if len(item) != q.itemSize {
		x.logger.Err().
			Uint64(`handle`, uint64(h)).
			Int(`item_size`, q.itemSize).
			Int(`len`, len(item)).
			Log(`queue send with wrong item size`)
		return false
	}

	item = slices.Clone(item)

	if timeout <= 0 {
		select {
		case <-q.deleted:
			return false
		default:
		}
		select {
		case q.slots <- item:
			return true
		default:
			return false
		}
	}

	expire, stop := after(timeout)
	defer stop()
	select {
	case q.slots <- item:
		return true
	case <-q.deleted:
		return false
	case <-expire:
		return false
	case <-t.deleted():
		runtime.Goexit()
		return false
	}
}

// QueueReceive implements rtos.Kernel.
func (x *Kernel) QueueReceive(ctx context.Context, h rtos.QueueHandle, out []byte, timeout time.Duration) bool {
	t := x.enter(ctx)

	q := x.queue(h)
	if q == nil {
		return false
	}
	if len(out) < q.itemSize {
		x.logger.Err().
			Uint64(`handle`, uint64(h)).
			Int(`item_size`, q.itemSize).
			Int(`len`, len(out)).
			Log(`queue receive buffer too small`)
		return false
	}

	if timeout <= 0 {
		select {
		case <-q.deleted:
			return false
		default:
		}
		select {
		case item := <-q.slots:
			copy(out, item)
			return true
		default:
			return false
		}
	}

	expire, stop := after(timeout)
	defer stop()
	select {
	case item := <-q.slots:
		copy(out, item)
		return true
	case <-q.deleted:
		return false
	case <-expire:
		return false
	case <-t.deleted():
		runtime.Goexit()
		return false
	}
}

// QueueMessagesWaiting implements rtos.Kernel.
func (x *Kernel) QueueMessagesWaiting(h rtos.QueueHandle) int {
	q := x.queue(h)
	if q == nil {
		return 0
	}
	return len(q.slots)
}

// DeleteQueue implements rtos.Kernel. Callers blocked on the queue fail.
func (x *Kernel) DeleteQueue(h rtos.QueueHandle) {
	x.mu.Lock()
	q := x.queues[h]
	if q == nil {
		x.mu.Unlock()
		x.doubleDelete(`queue`, uintptr(h))
		return
	}
	delete(x.queues, h)
	x.stats.QueuesDeleted++
	x.mu.Unlock()

	close(q.deleted)
}

func (x *Kernel) queue(h rtos.QueueHandle) *queue {
	x.mu.Lock()
	defer x.mu.Unlock()
	q := x.queues[h]
	if q == nil {
		x.logger.Warning().
			Uint64(`handle`, uint64(h)).
			Log(`unknown queue handle`)
	}
	return q
}
