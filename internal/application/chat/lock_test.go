package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesPerSession(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "s1", time.Minute, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "s1", time.Minute, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrSessionBusy)

	other, err := l.Acquire(ctx, "s2", time.Minute, 20*time.Millisecond)
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.Acquire(ctx, "s1", time.Minute, 20*time.Millisecond)
	require.NoError(t, err)
	again()
}

func TestLocalLocker_ReleasesSlots(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		release, err := l.Acquire(ctx, fmt.Sprintf("s-%d", i), time.Minute, time.Second)
		require.NoError(t, err)
		release()
	}
	assert.Equal(t, 0, l.held())

	release, err := l.Acquire(ctx, "busy", time.Minute, time.Second)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "busy", time.Minute, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.Equal(t, 1, l.held())
	release()
	assert.Equal(t, 0, l.held())
}

func TestLocalLocker_WaiterKeepsSlot(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "s1", time.Minute, time.Second)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	got := make(chan error, 1)
	go func() {
		defer wg.Done()
		next, err := l.Acquire(ctx, "s1", time.Minute, time.Second)
		if err == nil {
			next()
		}
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()
	require.NoError(t, <-got)
	assert.Equal(t, 0, l.held())
}
