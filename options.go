package rtos

import (
	"fmt"
)

const (
	// DefaultStackSize is the stack size used if WithStackSize isn't provided.
	DefaultStackSize uint32 = 2048

	// MaxTaskNameLen is the maximum length of a task name, longer names are
	// truncated.
	MaxTaskNameLen = 16
)

// taskOptions holds configuration options for task creation.
type taskOptions struct {
	stackSize uint32
	priority  uint32
	core      int
}

// --- Task Options ---

// TaskOption configures a task created by Spawn or SpawnWith.
type TaskOption interface {
	applyTask(*taskOptions) error
}

// taskOptionImpl implements TaskOption.
type taskOptionImpl struct {
	applyTaskFunc func(*taskOptions) error
}

func (x *taskOptionImpl) applyTask(opts *taskOptions) error {
	return x.applyTaskFunc(opts)
}

// WithStackSize sets the stack size of the task, in the kernel's units.
// Defaults to DefaultStackSize.
func WithStackSize(size uint32) TaskOption {
	return &taskOptionImpl{func(opts *taskOptions) error {
		if size == 0 {
			return fmt.Errorf(`rtos: invalid stack size: %d`, size)
		}
		opts.stackSize = size
		return nil
	}}
}

// WithPriority sets the priority of the task, higher values being more
// urgent. Defaults to 0, the idle priority.
func WithPriority(priority uint32) TaskOption {
	return &taskOptionImpl{func(opts *taskOptions) error {
		opts.priority = priority
		return nil
	}}
}

// WithCore pins the task to a core, or allows any core, if core is
// NoAffinity (the default).
func WithCore(core int) TaskOption {
	return &taskOptionImpl{func(opts *taskOptions) error {
		if core < NoAffinity {
			return fmt.Errorf(`rtos: invalid core: %d`, core)
		}
		opts.core = core
		return nil
	}}
}

// resolveTaskOptions applies TaskOption instances to taskOptions.
func resolveTaskOptions(opts []TaskOption) (*taskOptions, error) {
	cfg := &taskOptions{
		stackSize: DefaultStackSize,
		core:      NoAffinity,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTask(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (x *taskOptions) params(name string) TaskParams {
	if len(name) > MaxTaskNameLen {
		name = name[:MaxTaskNameLen]
	}
	return TaskParams{
		Name:      name,
		StackSize: x.stackSize,
		Priority:  x.priority,
		Core:      x.core,
	}
}
