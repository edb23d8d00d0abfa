package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunVisitsEveryItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	var mu sync.Mutex
	seen := map[int]int{}

	err := Run(context.Background(), items, Options{Size: 3}, func(_ context.Context, i int, item int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = item
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, len(items))
	for i, item := range items {
		assert.Equal(t, item, seen[i])
	}
}

func TestRunBoundsParallelism(t *testing.T) {
	var running, peak int32
	items := make([]struct{}, 12)

	err := Run(context.Background(), items, Options{Size: 4}, func(context.Context, int, struct{}) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestRunPausesBetweenBatches(t *testing.T) {
	items := make([]int, 3)
	start := time.Now()
	err := Run(context.Background(), items, Options{Size: 1, Pause: 20 * time.Millisecond}, func(context.Context, int, int) error {
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	err := Run(context.Background(), make([]int, 10), Options{Size: 2}, func(_ context.Context, i int, _ int) error {
		atomic.AddInt32(&calls, 1)
		if i == 1 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, []int{1}, Options{}, func(context.Context, int, int) error {
		t.Fatal("must not be called")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
