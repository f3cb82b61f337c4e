package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New("fifo")
	defer q.Stop()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, q.Async(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	q.Sync(func() {})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueue_SingleWorker(t *testing.T) {
	q := New("single")
	defer q.Stop()

	ids := make(chan int64, 10)
	for i := 0; i < 10; i++ {
		q.Async(func() { ids <- GoroutineID() })
	}
	q.Sync(func() {})
	close(ids)

	for id := range ids {
		assert.Equal(t, q.WorkerID(), id)
	}
}

func TestCurrent(t *testing.T) {
	q := New("current")
	defer q.Stop()

	assert.Nil(t, Current(), "test goroutine is not a worker")
	assert.False(t, q.IsCurrent())

	var (
		cur     *Queue
		isCur   bool
		inlined bool
	)
	q.Sync(func() {
		cur = Current()
		isCur = q.IsCurrent()
		// Sync from the worker runs inline instead of deadlocking.
		q.Sync(func() { inlined = true })
	})
	assert.Same(t, q, cur)
	assert.True(t, isCur)
	assert.True(t, inlined)
}

func TestQueue_StopDrainsPending(t *testing.T) {
	q := New("drain")

	gate := make(chan struct{})
	var ran int
	q.Async(func() { <-gate })
	for i := 0; i < 5; i++ {
		q.Async(func() { ran++ })
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(gate)
	}()
	q.Stop()

	assert.Equal(t, 5, ran)
	assert.False(t, q.Async(func() {}), "stopped queue must refuse tasks")
	assert.False(t, q.Sync(func() {}))

	select {
	case <-q.Done():
	default:
		t.Fatal("worker should have exited")
	}
}

func TestQueue_PanicDoesNotKillWorker(t *testing.T) {
	q := New("panic")
	defer q.Stop()

	q.Async(func() { panic("boom") })

	ok := false
	q.Sync(func() { ok = true })
	assert.True(t, ok)
}

func TestQueue_StopIsIdempotent(t *testing.T) {
	q := New("idempotent")
	q.Stop()
	assert.NotPanics(t, q.Stop)
	assert.Nil(t, Current())
}

func TestQueue_StopFromWorker(t *testing.T) {
	q := New("self-stop")
	q.Async(func() { q.Stop() })

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after stopping itself")
	}
}
