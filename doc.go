// Package rtos provides reference-counted handles to the resources of a
// preemptive real-time kernel, e.g. FreeRTOS, abstracted as a [Kernel].
//
// # Handles
//
// A [Ref] shares a single record between every copy, deleting the underlying
// kernel resource exactly once: when the last copy is released, or earlier,
// via an explicit [Ref.Delete]. Go has no destructors, so the copy, move
// and drop operations are explicit:
//
//   - copy: [Ref.Clone], [Ref.Assign]
//   - move: [Ref.Move], [Ref.AssignMove]
//   - drop: [Ref.Release]
//
// [Task] and [Queue] are specializations of [Ref]. The decision to delete,
// i.e. "this was the last reference, and the resource is not yet deleted", is
// made atomically, so copies may be released concurrently, from any task.
//
// # Tasks
//
// [Spawn] and [SpawnWith] create a task running a Go function. The task
// deletes itself when the function returns. Releasing the last handle to a
// running task deletes it, which may terminate it at any point.
//
// # Queues
//
// A [Queue] carries values of any type, through a kernel queue of fixed-size
// slots, by enqueuing only an identifier of a heap copy of each value.
//
// # Mutual exclusion
//
// [Mutex], [RecursiveMutex], [BinarySemaphore] and [CountingSemaphore] own
// their kernel handle exclusively, and may only be moved, never shared. A
// [Guard] (or [WithLock]) holds a lock for the extent of a scope.
//
// # Errors
//
// Creation failures return a null handle and [ErrCreateFailed]. Timed
// operations report failure as an ordinary result. Requiring a native handle
// from a null or deleted handle, e.g. [Ref.MustNative], panics, as it
// indicates a programming error. Redundant deletion is a no-op.
//
// # Contexts
//
// Blocking methods accept a [context.Context], which identifies the calling
// task to the kernel, and should be the context passed to the task's
// function. It is not used for cancellation: blocked calls return only once
// satisfied, or their timeout elapses.
package rtos
