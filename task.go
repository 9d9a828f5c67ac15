package rtos

import (
	"context"
	"fmt"
	"time"
)

// Task is a reference-counted handle to a kernel task.
//
// The task is deleted exactly once, by whichever happens first: its routine
// returning, an explicit Delete, or the last handle being released. Deletion
// via a handle is forced, and may terminate the task at any point, meaning
// callers that require a graceful stop must implement their own signaling,
// prior to releasing the last handle.
//
// The zero value is a null handle. Tasks must be created using Spawn or
// SpawnWith.
type Task struct {
	Ref[TaskHandle]
	k Kernel
}

// Spawn creates a task which will call fn once, on its own execution context,
// using the kernel-provided context. The task deletes itself when fn returns.
//
// If the task could not be created, a null (non-nil) Task is returned, along
// with an error. A panic will occur if k or fn are nil.
func Spawn(k Kernel, name string, fn func(ctx context.Context), opts ...TaskOption) (*Task, error) {
	if fn == nil {
		panic(`rtos: nil task function`)
	}
	return spawn(k, name, fn, opts)
}

// SpawnWith is like Spawn, but binds arg, which will be passed to fn. Whether
// the task owns its argument, or shares it with the caller, is determined by
// the type, e.g. a pointer will be shared.
func SpawnWith[A any](k Kernel, name string, arg A, fn func(ctx context.Context, arg A), opts ...TaskOption) (*Task, error) {
	if fn == nil {
		panic(`rtos: nil task function`)
	}
	return spawn(k, name, func(ctx context.Context) { fn(ctx, arg) }, opts)
}

func spawn(k Kernel, name string, fn func(ctx context.Context), opts []TaskOption) (*Task, error) {
	if k == nil {
		panic(`rtos: nil kernel`)
	}

	cfg, err := resolveTaskOptions(opts)
	if err != nil {
		return new(Task), err
	}
	params := cfg.params(name)

	rec := newRecord(func(h TaskHandle) {
		getLogger().Debug().
			Str(`task`, params.Name).
			Uint64(`handle`, uint64(h)).
			Log(`deleting task`)
		k.DeleteTask(h)
	})

	// the entry point cannot observe rec until bind returns (it must lock)
	ok := rec.bind(func() (TaskHandle, bool) {
		return k.CreateTask(params, func(ctx context.Context) {
			fn(ctx)
			// a no-op if the task was already deleted via a handle
			rec.destroy()
		})
	})
	if !ok {
		getLogger().Err().
			Str(`task`, params.Name).
			Uint64(`stack_size`, uint64(params.StackSize)).
			Uint64(`priority`, uint64(params.Priority)).
			Int(`core`, params.Core).
			Log(`failed to create task`)
		return new(Task), fmt.Errorf(`%w: task %q`, ErrCreateFailed, params.Name)
	}

	task := Task{k: k}
	task.rec = rec
	return &task, nil
}

// Clone returns a new handle to the same task. See also Ref.Clone.
func (x *Task) Clone() *Task {
	var task Task
	if x != nil {
		x.cloneInto(&task.Ref)
		if task.rec != nil {
			task.k = x.k
		}
	}
	return &task
}

// Move returns a new handle holding the receiver's share, which becomes null.
// See also Ref.Move.
func (x *Task) Move() *Task {
	var task Task
	if x != nil {
		x.moveInto(&task.Ref)
		task.k, x.k = x.k, nil
	}
	return &task
}

// Assign makes the receiver share the task of src, releasing the receiver's
// previous share. See also Ref.Assign.
func (x *Task) Assign(src *Task) {
	if x == src {
		return
	}
	if src == nil {
		x.Release()
		return
	}
	x.Ref.Assign(&src.Ref)
	x.k = src.k
}

// AssignMove moves the share held by src into the receiver, releasing the
// receiver's previous share. See also Ref.AssignMove.
func (x *Task) AssignMove(src *Task) {
	if x == src {
		return
	}
	if src == nil {
		x.Release()
		return
	}
	x.Ref.AssignMove(&src.Ref)
	x.k, src.k = src.k, nil
}

// Equal reports whether both handles are null, or refer to the same task.
func (x *Task) Equal(other *Task) bool {
	var a, b *Ref[TaskHandle]
	if x != nil {
		a = &x.Ref
	}
	if other != nil {
		b = &other.Ref
	}
	return a.Equal(b)
}

// HasDeleted reports whether the task has been deleted, see Ref.HasDeleted.
func (x *Task) HasDeleted() bool {
	if x == nil {
		return (*Ref[TaskHandle])(nil).hasDeleted(`task`)
	}
	return x.hasDeleted(`task`)
}

// MustNative returns the native handle, panicking if it is unavailable, see
// Ref.MustNative.
func (x *Task) MustNative() TaskHandle {
	if x == nil {
		return (*Ref[TaskHandle])(nil).mustNative(`task`)
	}
	return x.mustNative(`task`)
}

// NotifyGive increments the task's notification value, which the task may
// wait on using the kernel's TaskNotifyTake. It returns false if the receiver
// is null.
func (x *Task) NotifyGive() bool {
	if x == nil {
		return false
	}
	h := x.Native()
	if h == 0 {
		return false
	}
	return x.k.TaskNotifyGive(h)
}

// NotifyTake waits up to timeout for the calling task's notification value to
// become non-zero, returning the value prior to decrementing it, or clearing it
// if clearOnExit is set. It returns 0 on timeout. The ctx must be the one the
// task was started with.
func NotifyTake(ctx context.Context, k Kernel, clearOnExit bool, timeout time.Duration) uint32 {
	return k.TaskNotifyTake(ctx, clearOnExit, timeout)
}

// Delay blocks the calling task for at least d.
func Delay(ctx context.Context, k Kernel, d time.Duration) {
	k.Delay(ctx, d)
}
