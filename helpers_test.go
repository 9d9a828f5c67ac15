package rtos_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-rtos"
	"github.com/joeycumines/go-rtos/sim"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// newKernel returns a sim.Kernel, which is shut down when the test
// completes, failing the test if any task goroutine is still running.
func newKernel(t *testing.T) *sim.Kernel {
	t.Helper()
	k := sim.New(nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		if err := k.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return k
}

// waitClosed fails the test if ch isn't closed (or sent to) in time.
func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatal(`timed out waiting for channel`)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

// captureLogs configures the package logger to write JSON lines to the
// returned buffer, for the duration of the test. Tests using it must not be
// parallel.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	var buf syncBuffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelDebug),
	)
	rtos.SetLogger(logger.Logger())
	t.Cleanup(func() { rtos.SetLogger(nil) })
	return &buf
}

func requireLive(t *testing.T, k *sim.Kernel, tasks, queues, semaphores int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := k.Stats()
		return s.Tasks == tasks && s.Queues == queues && s.Semaphores == semaphores
	}, waitTimeout, time.Millisecond*5)
}
