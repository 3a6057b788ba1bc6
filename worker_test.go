package stagepool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWorker_ProcessesInOrder(t *testing.T) {
	t.Parallel()

	mu := sync.Mutex{}
	got := []int{}
	w := startWorker(func(item int, _ Link[int]) {
		mu.Lock()
		got = append(got, item)
		mu.Unlock()
	}, nil, zerolog.Nop(), false, nil)

	for i := 0; i < 100; i++ {
		require.True(t, w.doWork(i))
	}
	w.stop()
	waitClosed(t, w.donec)

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestWorker_ForwardsToNext(t *testing.T) {
	t.Parallel()

	sum := atomic.Int64{}
	term := NewTerminal(func(v int) { sum.Add(int64(v)) })
	w := startWorker(func(item int, next Link[int]) {
		next.Process(item * 2)
	}, term, zerolog.Nop(), false, nil)

	for i := 1; i <= 10; i++ {
		require.True(t, w.doWork(i))
	}
	w.stop()
	waitClosed(t, w.donec)

	require.Equal(t, int64(110), sum.Load())
}

func TestWorker_StopDrainsAcceptedItems(t *testing.T) {
	t.Parallel()

	processed := atomic.Int32{}
	w := startWorker(func(int, Link[int]) { processed.Add(1) }, nil, zerolog.Nop(), false, nil)

	require.True(t, w.doWork(1))
	require.True(t, w.doWork(2))
	w.stop()
	require.False(t, w.doWork(3)) // rejected once stop is in
	w.stop()                      // safe to repeat
	waitClosed(t, w.donec)

	require.Equal(t, int32(2), processed.Load())
}

func TestWorker_RecoversPanic(t *testing.T) {
	t.Parallel()

	m := NewMetricsOn(prometheus.NewRegistry(), "stagepool", "test")
	mu := sync.Mutex{}
	got := []int{}
	w := startWorker(func(item int, _ Link[int]) {
		if item == 2 {
			panic("boom")
		}
		mu.Lock()
		got = append(got, item)
		mu.Unlock()
	}, nil, zerolog.Nop(), true, m)

	for i := 1; i <= 4; i++ {
		require.True(t, w.doWork(i))
	}
	w.stop()
	waitClosed(t, w.donec)

	require.Equal(t, []int{1, 3, 4}, got)
	require.Equal(t, float64(1), testutil.ToFloat64(m.PanicsRecovered))
}
