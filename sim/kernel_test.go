package sim

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-rtos"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

var defaultParams = rtos.TaskParams{
	Name:      `test`,
	StackSize: rtos.DefaultStackSize,
	Core:      rtos.NoAffinity,
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *lockedBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *lockedBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestKernel(t *testing.T, config *Config) *Kernel {
	t.Helper()
	k := New(config)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		if err := k.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return k
}

func newTestLogger(buf *lockedBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

// spawn creates a task that runs fn, then deletes itself.
func spawn(t *testing.T, k *Kernel, fn func(ctx context.Context)) rtos.TaskHandle {
	t.Helper()
	var (
		mu sync.Mutex
		h  rtos.TaskHandle
	)
	mu.Lock()
	defer mu.Unlock()
	h, ok := k.CreateTask(defaultParams, func(ctx context.Context) {
		fn(ctx)
		mu.Lock()
		self := h
		mu.Unlock()
		k.DeleteTask(self)
	})
	require.True(t, ok)
	return h
}

func TestResolveConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Config{
		MaxTasks:      32,
		MaxQueues:     32,
		MaxSemaphores: 64,
		Cores:         2,
		MinStackSize:  512,
		Priorities:    25,
	}, resolveConfig(nil))

	assert.Equal(t, Config{
		MaxTasks:      -1,
		MaxQueues:     1,
		MaxSemaphores: 64,
		Cores:         1,
		MinStackSize:  512,
		Priorities:    25,
	}, resolveConfig(&Config{MaxTasks: -1, MaxQueues: 1, Cores: 1}))
}

func TestKernel_CreateTask_validation(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, &Config{Cores: 2, Priorities: 4, MinStackSize: 100})

	noop := func(ctx context.Context) {}
	for _, tc := range [...]struct {
		name   string
		params rtos.TaskParams
	}{
		{`stack`, rtos.TaskParams{StackSize: 99, Core: rtos.NoAffinity}},
		{`priority`, rtos.TaskParams{StackSize: 100, Priority: 4, Core: rtos.NoAffinity}},
		{`core high`, rtos.TaskParams{StackSize: 100, Core: 2}},
		{`core low`, rtos.TaskParams{StackSize: 100, Core: -2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h, ok := k.CreateTask(tc.params, noop)
			assert.False(t, ok)
			assert.Zero(t, h)
		})
	}

	_, ok := k.CreateTask(defaultParams, nil)
	assert.False(t, ok)

	assert.Equal(t, Stats{}, k.Stats())
}

func TestKernel_taskLimit(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, &Config{MaxTasks: 2})

	block := make(chan struct{})
	a := spawn(t, k, func(ctx context.Context) { <-block })
	b := spawn(t, k, func(ctx context.Context) { <-block })
	assert.NotEqual(t, a, b)

	_, ok := k.CreateTask(defaultParams, func(ctx context.Context) {})
	assert.False(t, ok)

	close(block)
	require.Eventually(t, func() bool { return k.Stats().Tasks == 0 }, waitTimeout, time.Millisecond)

	spawn(t, k, func(ctx context.Context) {})
	require.Eventually(t, func() bool { return k.Stats().TasksDeleted == 3 }, waitTimeout, time.Millisecond)
	assert.Equal(t, 3, k.Stats().TasksCreated)
}

func TestKernel_DeleteTask_unknownPanics(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, nil)
	assert.PanicsWithError(t, `sim: delete of unknown task handle 99`, func() { k.DeleteTask(99) })
	assert.Panics(t, func() { k.DeleteQueue(1) })
	assert.Panics(t, func() { k.DeleteSemaphore(1) })
}

func TestKernel_DeleteTask_killsBlockedTask(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, nil)

	q := k.CreateQueue(1, 1)
	require.NotZero(t, q)
	s := k.CreateSemaphore(rtos.SemaphoreBinary, 0, 0)
	require.NotZero(t, s)

	blocked := make(chan struct{}, 4)
	returned := make(chan string, 4)
	for name, fn := range map[string]func(ctx context.Context){
		`delay`:   func(ctx context.Context) { k.Delay(ctx, rtos.MaxDelay) },
		`receive`: func(ctx context.Context) { k.QueueReceive(ctx, q, make([]byte, 1), rtos.MaxDelay) },
		`take`:    func(ctx context.Context) { k.SemaphoreTake(ctx, s, rtos.MaxDelay) },
		`notify`:  func(ctx context.Context) { k.TaskNotifyTake(ctx, true, rtos.MaxDelay) },
	} {
		h, ok := k.CreateTask(defaultParams, func(ctx context.Context) {
			blocked <- struct{}{}
			fn(ctx)
			returned <- name
		})
		require.True(t, ok)
		<-blocked
		time.Sleep(time.Millisecond * 5)
		k.DeleteTask(h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, k.Shutdown(ctx))
	select {
	case name := <-returned:
		t.Errorf("task returned from blocking call: %s", name)
	default:
	}

	// the binary semaphore had no waiter left behind
	assert.True(t, k.SemaphoreGive(context.Background(), s))
	assert.True(t, k.SemaphoreTake(context.Background(), s, 0))
}

func TestKernel_entryReturnsWithoutDelete(t *testing.T) {
	t.Parallel()
	var logs lockedBuffer
	k := newTestKernel(t, &Config{Logger: newTestLogger(&logs)})

	h, ok := k.CreateTask(defaultParams, func(ctx context.Context) {})
	require.True(t, ok)

	require.Eventually(t, func() bool { return k.Stats().TasksDeleted == 1 }, waitTimeout, time.Millisecond)
	assert.Contains(t, logs.String(), `task exited without being deleted`)

	// reaped handles may still be deleted
	k.DeleteTask(h)
	assert.Equal(t, 1, k.Stats().TasksDeleted)
}

func TestKernel_Shutdown(t *testing.T) {
	t.Parallel()
	k := New(nil)

	var handles []rtos.TaskHandle
	for range 3 {
		h, ok := k.CreateTask(defaultParams, func(ctx context.Context) {
			for {
				k.Delay(ctx, time.Millisecond)
			}
		})
		require.True(t, ok)
		handles = append(handles, h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, k.Shutdown(ctx))
	assert.Equal(t, Stats{TasksCreated: 3, TasksDeleted: 3}, k.Stats())

	for _, h := range handles {
		k.DeleteTask(h)
	}
	assert.False(t, k.TaskNotifyGive(handles[0]))
}

func TestKernel_Shutdown_uncooperative(t *testing.T) {
	t.Parallel()
	k := New(nil)

	release := make(chan struct{})
	defer close(release)
	_, ok := k.CreateTask(defaultParams, func(ctx context.Context) { <-release })
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()
	assert.ErrorIs(t, k.Shutdown(ctx), context.DeadlineExceeded)
}

func TestKernel_TaskNotify(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, nil)

	assert.Zero(t, k.TaskNotifyTake(context.Background(), true, 0), `not a task`)

	values := make(chan uint32)
	h := spawn(t, k, func(ctx context.Context) {
		values <- k.TaskNotifyTake(ctx, false, time.Millisecond*5)
		values <- k.TaskNotifyTake(ctx, false, rtos.MaxDelay)
	})

	assert.Zero(t, <-values)
	assert.True(t, k.TaskNotifyGive(h))
	assert.Equal(t, uint32(1), <-values)
	assert.False(t, k.TaskNotifyGive(0))
}

func TestKernel_enter_otherKernel(t *testing.T) {
	t.Parallel()
	a := newTestKernel(t, nil)
	b := newTestKernel(t, nil)

	s := b.CreateSemaphore(rtos.SemaphoreMutex, 0, 0)
	result := make(chan bool)
	spawn(t, a, func(ctx context.Context) {
		// a task of another kernel is not a task of b
		ok := b.SemaphoreTake(ctx, s, 0)
		result <- ok && b.SemaphoreGive(context.Background(), s)
	})
	assert.True(t, <-result)
}
