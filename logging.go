package rtos

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Logging is configured per package, like the kernel's own log tag. A nil
// logger (the default) disables all output.

var (
	globalLogger atomic.Pointer[logiface.Logger[logiface.Event]]

	// warnings about misuse tend to occur in loops
	warnLimiter = catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
		time.Minute: 10,
	})
)

// SetLogger configures the logger used by this package, nil disables logging.
//
// Use [logiface.Logger.Logger] to convert loggers with a concrete event type.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Store(logger)
}

func getLogger() *logiface.Logger[logiface.Event] {
	return globalLogger.Load()
}

// warning returns a builder for a warning, or nil if the category has been
// logged too often recently.
func warning(category string) *logiface.Builder[logiface.Event] {
	b := getLogger().Warning()
	if !b.Enabled() {
		return nil
	}
	if _, ok := warnLimiter.Allow(category); !ok {
		b.Release()
		return nil
	}
	return b.Str(`category`, category)
}

// fatal logs then panics with err, used for programming errors.
func fatal(resource string, err error, msg string) {
	getLogger().Err().
		Str(`resource`, resource).
		Err(err).
		Log(msg)
	panic(err)
}
