package sim

import (
	"context"
	"runtime"
	"time"

	"github.com/joeycumines/go-rtos"
)

type task struct {
	k      *Kernel
	ctx    context.Context
	cancel context.CancelFunc
	// notify has a buffer of 1, and is sent to (without blocking) after
	// every increment of value
	notify chan struct{}
	params rtos.TaskParams
	handle rtos.TaskHandle
	value  uint32
}

// CreateTask implements rtos.Kernel.
func (x *Kernel) CreateTask(params rtos.TaskParams, entry func(ctx context.Context)) (rtos.TaskHandle, bool) {
	if entry == nil {
		x.logger.Err().
			Str(`name`, params.Name).
			Log(`task entry point is nil`)
		return 0, false
	}

	if reason := x.validateTask(params); reason != `` {
		x.logger.Warning().
			Str(`name`, params.Name).
			Str(`reason`, reason).
			Log(`invalid task parameters`)
		return 0, false
	}

	x.mu.Lock()
	if !withinLimit(x.config.MaxTasks, len(x.tasks)) {
		x.mu.Unlock()
		x.logger.Warning().
			Str(`name`, params.Name).
			Int(`limit`, x.config.MaxTasks).
			Log(`task limit reached`)
		return 0, false
	}
	t := &task{
		k:      x,
		notify: make(chan struct{}, 1),
		params: params,
		handle: rtos.TaskHandle(x.nextHandle()),
	}
	t.ctx, t.cancel = context.WithCancel(context.WithValue(context.Background(), taskKey{}, t))
	x.tasks[t.handle] = t
	x.stats.TasksCreated++
	x.wg.Add(1)
	x.mu.Unlock()

	x.logger.Debug().
		Str(`name`, params.Name).
		Uint64(`handle`, uint64(t.handle)).
		Log(`created task`)

	go x.run(t, entry)

	return t.handle, true
}

func (x *Kernel) validateTask(params rtos.TaskParams) string {
	switch {
	case params.StackSize < x.config.MinStackSize:
		return `stack size too small`
	case params.Priority >= x.config.Priorities:
		return `priority out of range`
	case params.Core != rtos.NoAffinity && (params.Core < 0 || params.Core >= x.config.Cores):
		return `core out of range`
	default:
		return ``
	}
}

func (x *Kernel) run(t *task, entry func(ctx context.Context)) {
	defer x.wg.Done()
	defer func() {
		// reached if entry returned, or the goroutine exited, without deleting the task
		x.mu.Lock()
		_, live := x.tasks[t.handle]
		if live {
			delete(x.tasks, t.handle)
			x.reaped[t.handle] = struct{}{}
			x.stats.TasksDeleted++
		}
		x.mu.Unlock()
		if live {
			t.cancel()
			x.logger.Err().
				Str(`name`, t.params.Name).
				Uint64(`handle`, uint64(t.handle)).
				Log(`task exited without being deleted`)
		}
	}()
	entry(t.ctx)
}

// DeleteTask implements rtos.Kernel. DeleteTask always returns, including
// when a task deletes itself, but the deleted task will exit at its next call
// into the kernel.
func (x *Kernel) DeleteTask(h rtos.TaskHandle) {
	x.mu.Lock()
	t := x.tasks[h]
	if t == nil {
		if _, ok := x.reaped[h]; ok {
			x.mu.Unlock()
			return
		}
		x.mu.Unlock()
		x.doubleDelete(`task`, uintptr(h))
		return
	}
	delete(x.tasks, h)
	x.stats.TasksDeleted++
	x.mu.Unlock()

	t.cancel()

	x.logger.Debug().
		Str(`name`, t.params.Name).
		Uint64(`handle`, uint64(h)).
		Log(`deleted task`)
}

// Delay implements rtos.Kernel.
func (x *Kernel) Delay(ctx context.Context, d time.Duration) {
	t := x.enter(ctx)
	if d <= 0 {
		runtime.Gosched()
		return
	}
	expire, stop := after(d)
	defer stop()
	select {
	case <-expire:
	case <-t.deleted():
		runtime.Goexit()
	}
}

// TaskNotifyGive implements rtos.Kernel.
func (x *Kernel) TaskNotifyGive(h rtos.TaskHandle) bool {
	x.mu.Lock()
	t := x.tasks[h]
	if t == nil {
		x.mu.Unlock()
		return false
	}
	t.value++
	x.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return true
}

// TaskNotifyTake implements rtos.Kernel. Callers that are not tasks of this
// kernel have no notification value, and always receive 0.
func (x *Kernel) TaskNotifyTake(ctx context.Context, clearOnExit bool, timeout time.Duration) uint32 {
	t := x.enter(ctx)
	if t == nil {
		x.logger.Warning().
			Log(`notify take called outside of a task`)
		return 0
	}
	expire, stop := after(max(timeout, 0))
	defer stop()
	for {
		x.mu.Lock()
		value := t.value
		if value != 0 {
			if clearOnExit {
				t.value = 0
			} else {
				t.value--
			}
		}
		x.mu.Unlock()
		if value != 0 || timeout <= 0 {
			return value
		}
		select {
		case <-t.notify:
		case <-expire:
			return 0
		case <-t.ctx.Done():
			runtime.Goexit()
		}
	}
}

// deleted returns a channel that is closed once the task is deleted, which
// is nil if the receiver is nil.
func (x *task) deleted() <-chan struct{} {
	if x == nil {
		return nil
	}
	return x.ctx.Done()
}
