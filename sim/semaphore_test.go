package sim

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-rtos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernel_CreateSemaphore(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, &Config{MaxSemaphores: 3})

	assert.Zero(t, k.CreateSemaphore(0, 1, 1))
	assert.Zero(t, k.CreateSemaphore(rtos.SemaphoreCounting, 0, 0))
	assert.Zero(t, k.CreateSemaphore(rtos.SemaphoreCounting, 1, 2))

	for _, kind := range [...]rtos.SemaphoreKind{rtos.SemaphoreMutex, rtos.SemaphoreRecursiveMutex, rtos.SemaphoreBinary} {
		assert.NotZero(t, k.CreateSemaphore(kind, 0, 0), kind.String())
	}
	assert.Zero(t, k.CreateSemaphore(rtos.SemaphoreBinary, 0, 0))
	assert.Equal(t, 3, k.Stats().Semaphores)
}

func TestKernel_mutex(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, nil)
	ctx := context.Background()

	h := k.CreateSemaphore(rtos.SemaphoreMutex, 0, 0)
	require.NotZero(t, h)

	assert.False(t, k.SemaphoreGive(ctx, h), `not held`)
	assert.True(t, k.SemaphoreTake(ctx, h, 0))
	assert.False(t, k.SemaphoreTake(ctx, h, 0))

	result := make(chan bool)
	spawn(t, k, func(ctx context.Context) {
		result <- k.SemaphoreGive(ctx, h)
		result <- k.SemaphoreTake(ctx, h, waitTimeout)
		result <- k.SemaphoreGive(ctx, h)
	})
	assert.False(t, <-result, `not the owner`)
	time.Sleep(time.Millisecond * 5)
	assert.True(t, k.SemaphoreGive(ctx, h))
	assert.True(t, <-result, `handed off to the waiting task`)
	assert.True(t, <-result)
}

func TestKernel_recursiveMutex(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, nil)

	h := k.CreateSemaphore(rtos.SemaphoreRecursiveMutex, 0, 0)
	require.NotZero(t, h)

	done := make(chan struct{})
	spawn(t, k, func(ctx context.Context) {
		defer close(done)
		for range 3 {
			assert.True(t, k.SemaphoreTake(ctx, h, 0))
		}
		for range 3 {
			assert.True(t, k.SemaphoreGive(ctx, h))
		}
		assert.False(t, k.SemaphoreGive(ctx, h))
	})
	<-done

	assert.True(t, k.SemaphoreTake(context.Background(), h, 0))
}

func TestKernel_countingSemaphore(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, nil)
	ctx := context.Background()

	h := k.CreateSemaphore(rtos.SemaphoreCounting, 2, 0)
	require.NotZero(t, h)

	assert.False(t, k.SemaphoreTake(ctx, h, time.Millisecond*5))
	assert.True(t, k.SemaphoreGive(ctx, h))
	assert.True(t, k.SemaphoreGive(ctx, h))
	assert.False(t, k.SemaphoreGive(ctx, h))
	assert.True(t, k.SemaphoreTake(ctx, h, 0))
	assert.True(t, k.SemaphoreTake(ctx, h, 0))
	assert.False(t, k.SemaphoreTake(ctx, h, 0))
}

func TestKernel_DeleteSemaphore_wakesWaiter(t *testing.T) {
	t.Parallel()
	k := newTestKernel(t, nil)

	h := k.CreateSemaphore(rtos.SemaphoreBinary, 0, 0)
	taken := make(chan bool)
	spawn(t, k, func(ctx context.Context) {
		taken <- k.SemaphoreTake(ctx, h, rtos.MaxDelay)
	})

	time.Sleep(time.Millisecond * 5)
	k.DeleteSemaphore(h)
	assert.False(t, <-taken)
	assert.False(t, k.SemaphoreGive(context.Background(), h))
	assert.Equal(t, 1, k.Stats().SemaphoresDeleted)
}
