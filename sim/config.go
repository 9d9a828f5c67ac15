package sim

import (
	"github.com/joeycumines/logiface"
)

// Config models optional configuration, for New.
type Config struct {
	// Logger receives kernel diagnostics, e.g. creation failures.
	// **Defaults to disabled, if nil, or Config is nil.**
	Logger *logiface.Logger[logiface.Event]

	// MaxTasks limits the number of live tasks, if positive.
	// **Defaults to 32, if 0, or Config is nil.**
	MaxTasks int

	// MaxQueues limits the number of live queues, if positive.
	// **Defaults to 32, if 0, or Config is nil.**
	MaxQueues int

	// MaxSemaphores limits the number of live semaphores, if positive.
	// **Defaults to 64, if 0, or Config is nil.**
	MaxSemaphores int

	// Cores is the number of cores tasks may be pinned to.
	// **Defaults to 2, if 0, or Config is nil.**
	Cores int

	// MinStackSize is the smallest stack size a task may be created with.
	// **Defaults to 512, if 0, or Config is nil.**
	MinStackSize uint32

	// Priorities is the number of priority levels, tasks must have a
	// priority less than this.
	// **Defaults to 25, if 0, or Config is nil.**
	Priorities uint32
}

func resolveConfig(config *Config) Config {
	c := Config{
		MaxTasks:      32,
		MaxQueues:     32,
		MaxSemaphores: 64,
		Cores:         2,
		MinStackSize:  512,
		Priorities:    25,
	}
	if config == nil {
		return c
	}
	c.Logger = config.Logger
	if config.MaxTasks != 0 {
		c.MaxTasks = config.MaxTasks
	}
	if config.MaxQueues != 0 {
		c.MaxQueues = config.MaxQueues
	}
	if config.MaxSemaphores != 0 {
		c.MaxSemaphores = config.MaxSemaphores
	}
	if config.Cores > 0 {
		c.Cores = config.Cores
	}
	if config.MinStackSize != 0 {
		c.MinStackSize = config.MinStackSize
	}
	if config.Priorities != 0 {
		c.Priorities = config.Priorities
	}
	return c
}

func withinLimit(limit, live int) bool {
	return limit <= 0 || live < limit
}
