package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeue(t *testing.T) {
	q := NewFrameQueue(4)

	require.False(t, q.Enqueue([]byte{1}))
	require.False(t, q.Enqueue([]byte{2}))
	require.Equal(t, 2, q.Len())

	f, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, []byte{1}, f)

	f, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, []byte{2}, f)
}

func TestOverflowDropsOldest(t *testing.T) {
	q := NewFrameQueue(2)

	require.False(t, q.Enqueue([]byte{1}))
	require.False(t, q.Enqueue([]byte{2}))
	require.True(t, q.Enqueue([]byte{3}), "overflow must report a drop")
	require.Equal(t, 2, q.Len())

	f, _ := q.Dequeue()
	require.Equal(t, []byte{2}, f, "the oldest frame was sacrificed")
	f, _ = q.Dequeue()
	require.Equal(t, []byte{3}, f)
}

func TestDequeueEmptyNeverBlocks(t *testing.T) {
	q := NewFrameQueue(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			f, ok := q.Dequeue()
			require.False(t, ok)
			require.Nil(t, f)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dequeue on an empty queue blocked")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	q := NewFrameQueue(8)

	const frames = 5000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < frames; i++ {
			q.Enqueue([]byte{byte(i)})
		}
	}()

	var got int
	go func() {
		defer wg.Done()
		deadline := time.Now().Add(5 * time.Second)
		for got < frames/2 && time.Now().Before(deadline) {
			if _, ok := q.Dequeue(); ok {
				got++
			}
		}
	}()

	wg.Wait()
	require.LessOrEqual(t, q.Len(), 8, "queue never exceeds capacity")
}

func TestClear(t *testing.T) {
	q := NewFrameQueue(4)
	q.Enqueue([]byte{1})
	q.Enqueue([]byte{2})
	q.Clear()
	require.Zero(t, q.Len())

	_, ok := q.Dequeue()
	require.False(t, ok)
}
