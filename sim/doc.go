// Package sim implements [rtos.Kernel] in-process, using goroutines, for
// tests, examples, and development away from the target hardware.
//
// Tasks run on their own goroutines. Priorities and core affinity are
// validated, but not enforced, scheduling is left to the Go runtime. Timeouts
// are wall-clock durations.
//
// Go cannot preempt a goroutine, so deleting a running task cancels its
// context, and the task exits (via [runtime.Goexit]) at its next call into the
// kernel, including any call that is blocked at the time.
//
// Unlike a real kernel, deleting a handle that was never created, or was
// already deleted, panics, which makes double deletion visible in tests.
package sim
