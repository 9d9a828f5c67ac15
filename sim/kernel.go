package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/joeycumines/go-rtos"
	"github.com/joeycumines/logiface"
)

type (
	// Kernel is an in-process rtos.Kernel. It must be constructed via New.
	Kernel struct {
		logger     *logiface.Logger[logiface.Event]
		tasks      map[rtos.TaskHandle]*task
		reaped     map[rtos.TaskHandle]struct{}
		queues     map[rtos.QueueHandle]*queue
		semaphores map[rtos.SemaphoreHandle]*semaphore
		config     Config
		stats      Stats
		wg         sync.WaitGroup
		mu         sync.Mutex
		next       uintptr
	}

	// Stats is a snapshot of resource usage, see Kernel.Stats.
	Stats struct {
		// Tasks is the number of live tasks.
		Tasks int
		// Queues is the number of live queues.
		Queues int
		// Semaphores is the number of live semaphores.
		Semaphores int

		TasksCreated      int
		TasksDeleted      int
		QueuesCreated     int
		QueuesDeleted     int
		SemaphoresCreated int
		SemaphoresDeleted int
	}

	taskKey struct{}
)

var (
	// compile time assertions

	_ rtos.Kernel = (*Kernel)(nil)
)

// New initializes a Kernel, config may be nil.
func New(config *Config) *Kernel {
	c := resolveConfig(config)
	return &Kernel{
		logger:     c.Logger,
		tasks:      make(map[rtos.TaskHandle]*task),
		reaped:     make(map[rtos.TaskHandle]struct{}),
		queues:     make(map[rtos.QueueHandle]*queue),
		semaphores: make(map[rtos.SemaphoreHandle]*semaphore),
		config:     c,
	}
}

// Stats returns a snapshot of the kernel's resource usage.
func (x *Kernel) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	s := x.stats
	s.Tasks = len(x.tasks)
	s.Queues = len(x.queues)
	s.Semaphores = len(x.semaphores)
	return s
}

// Shutdown deletes every live task, then waits for all task goroutines to
// exit, or the context to be canceled. Tasks only observe deletion on their
// next call into the kernel, so a task that never calls the kernel will
// prevent Shutdown from returning before ctx is done.
//
// Deleting a task that was deleted by Shutdown is a no-op.
func (x *Kernel) Shutdown(ctx context.Context) error {
	x.mu.Lock()
	tasks := make([]*task, 0, len(x.tasks))
	for h, t := range x.tasks {
		delete(x.tasks, h)
		x.reaped[h] = struct{}{}
		x.stats.TasksDeleted++
		tasks = append(tasks, t)
	}
	x.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}

	if len(tasks) != 0 {
		x.logger.Debug().
			Int(`tasks`, len(tasks)).
			Log(`shutdown deleted live tasks`)
	}

	done := make(chan struct{})
	go func() {
		x.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextHandle must be called with the mutex held.
func (x *Kernel) nextHandle() uintptr {
	x.next++
	return x.next
}

// enter is called on entry to every kernel method that may block, and returns
// the calling task, if any. A caller whose task has been deleted exits.
func (x *Kernel) enter(ctx context.Context) *task {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(taskKey{}).(*task)
	if t != nil && t.k == x && t.ctx.Err() != nil {
		runtime.Goexit()
	}
	if t != nil && t.k != x {
		return nil
	}
	return t
}

func (x *Kernel) doubleDelete(resource string, h uintptr) {
	err := fmt.Errorf(`sim: delete of unknown %s handle %d`, resource, h)
	x.logger.Err().
		Str(`resource`, resource).
		Uint64(`handle`, uint64(h)).
		Log(`double delete`)
	panic(err)
}

// after returns a channel that is sent to once timeout elapses, which is nil
// (blocks forever) for rtos.MaxDelay.
func after(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout == rtos.MaxDelay {
		return nil, func() {}
	}
	timer := time.NewTimer(timeout)
	return timer.C, func() { timer.Stop() }
}
