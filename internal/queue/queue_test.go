package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_SendReceiveOrder(t *testing.T) {
	q := New[int](8)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Send(ctx, i))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, ok := q.TryReceive()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.TryReceive()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_SendNeverBlocksPastBuffer(t *testing.T) {
	q := New[int](2)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Send(ctx, i))
	}
	assert.Equal(t, 10, q.Len())

	sends, receives, spills := q.Stats()
	assert.Equal(t, int64(10), sends)
	assert.Equal(t, int64(0), receives)
	assert.Equal(t, int64(8), spills)

	// buffer drains before the overflow list, so FIFO holds end to end
	for i := 0; i < 10; i++ {
		v, ok := q.TryReceive()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestQueue_CloseStopsProducersKeepsItems(t *testing.T) {
	q := New[string](4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "a"))
	q.Close()

	assert.ErrorIs(t, q.Send(ctx, "b"), ErrClosed)

	v, ok := q.TryReceive()
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestQueue_SendHonorsContext(t *testing.T) {
	q := New[int](4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, q.Send(ctx, 1), context.Canceled)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DefaultSize(t *testing.T) {
	q := New[int](0)
	require.NoError(t, q.Send(context.Background(), 7))
	v, ok := q.TryReceive()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New[int](16)
	ctx := context.Background()

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Send(ctx, i)
			}
		}()
	}
	wg.Wait()

	got := 0
	for {
		if _, ok := q.TryReceive(); !ok {
			break
		}
		got++
	}
	assert.Equal(t, producers*perProducer, got)

	sends, receives, _ := q.Stats()
	assert.Equal(t, int64(producers*perProducer), sends)
	assert.Equal(t, sends, receives)
}
