package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	sem := NewSemaphore(2)
	require.True(t, sem.TryAcquire())
	require.True(t, sem.TryAcquire())
	assert.False(t, sem.TryAcquire(), "third acquire should fail while two permits are held")

	sem.Release()
	assert.True(t, sem.TryAcquire())
}

func TestSemaphoreUnlimitedWhenNonPositive(t *testing.T) {
	sem := NewSemaphore(0)
	for i := 0; i < 100; i++ {
		require.True(t, sem.TryAcquire())
	}
	sem.Release()
}

func TestSemaphoreAcquireBlocksUntilRelease(t *testing.T) {
	sem := NewSemaphore(1)
	sem.Acquire()

	acquired := make(chan struct{})
	go func() {
		sem.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("acquire should have blocked while the single permit was held")
	case <-time.After(20 * time.Millisecond):
	}

	sem.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire should have unblocked after release")
	}
}
