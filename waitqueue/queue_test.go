package waitqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_FIFOOrdering_Unbounded(t *testing.T) {
	q := NewUnbounded[int]()
	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Push(i))
	}

	for i := 0; i < 10; i++ {
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestQueue_FIFOOrdering_Bounded(t *testing.T) {
	q := NewBounded[int](16)
	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Push(i))
	}

	for i := 0; i < 10; i++ {
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewUnbounded[string]()

	done := make(chan string, 1)
	go func() {
		v, ok := q.Pop()
		assert.True(t, ok)
		done <- v
	}()

	assert.NoError(t, q.Push("hello"))
	assert.Equal(t, "hello", <-done)
}

func TestQueue_CloseWakesAllWaiters(t *testing.T) {
	q := NewUnbounded[int]()

	var wait sync.WaitGroup
	results := make([]bool, 8)
	for i := 0; i < 8; i++ {
		wait.Add(1)
		go func(idx int) {
			defer wait.Done()
			_, ok := q.Pop()
			results[idx] = ok
		}(i)
	}

	q.Close()
	wait.Wait()

	for _, ok := range results {
		assert.False(t, ok)
	}
}

func TestQueue_PushAfterCloseFails(t *testing.T) {
	q := NewUnbounded[int]()
	q.Close()
	assert.Equal(t, ErrClosed, q.Push(1))
}

func TestQueue_DrainsRemainingThenClosedEmpty(t *testing.T) {
	q := NewUnbounded[int]()
	assert.NoError(t, q.Push(1))
	assert.NoError(t, q.Push(2))
	q.Close()

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_TryPopNonBlocking(t *testing.T) {
	q := NewUnbounded[int]()
	_, ok := q.TryPop()
	assert.False(t, ok)

	assert.NoError(t, q.Push(42))
	v, ok := q.TryPop()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestQueue_OpenAfterCloseOnEmptyQueue(t *testing.T) {
	q := NewUnbounded[int]()
	q.Close()
	assert.NoError(t, q.Open())
	assert.NoError(t, q.Push(1))
	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
