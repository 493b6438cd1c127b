package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_New(t *testing.T) {
	q := New[int]()
	require.NotNil(t, q)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_Push(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Push("b", "c")
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.Empty())
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	items := q.GetAndEmpty()
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.True(t, q.Empty())

	q.Push(4)
	assert.Equal(t, []int{1, 2, 3}, items, "returned slice must not alias the new backing array")
	assert.Equal(t, []int{4}, q.GetAndEmpty())
}

func TestQueue_ConcurrentPushAndDrain(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	drained := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
				if j%10 == 0 {
					n := len(q.GetAndEmpty())
					mu.Lock()
					drained += n
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	drained += len(q.GetAndEmpty())
	assert.Equal(t, 800, drained)
}

func TestRing_DropOldestKeepsMostRecent(t *testing.T) {
	r := NewRing[int](10)
	evictions := 0
	for i := 1; i <= 25; i++ {
		if r.Push(i) {
			evictions++
		}
	}

	assert.Equal(t, 15, evictions)
	assert.Equal(t, 10, r.Len())
	assert.Equal(t, []int{16, 17, 18, 19, 20, 21, 22, 23, 24, 25}, r.Snapshot())
}

func TestRing_PopNewestIsLIFO(t *testing.T) {
	r := NewRing[int](10)
	for i := 1; i <= 12; i++ {
		r.Push(i)
	}

	var got []int
	for {
		v, ok := r.PopNewest()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{12, 11, 10, 9, 8, 7, 6, 5, 4, 3}, got)
	assert.Equal(t, 0, r.Len())
}

func TestRing_PushAfterPop(t *testing.T) {
	r := NewRing[string](3)
	r.Push("a")
	r.Push("b")
	r.Push("c")

	v, ok := r.PopNewest()
	require.True(t, ok)
	assert.Equal(t, "c", v)

	assert.False(t, r.Push("d"))
	assert.True(t, r.Push("e"))
	assert.Equal(t, []string{"b", "d", "e"}, r.Snapshot())
}

func TestRing_Empty(t *testing.T) {
	r := NewRing[int](0)
	assert.Equal(t, 1, r.Cap())

	v, ok := r.PopNewest()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestRing_SingleProducerSingleConsumer(t *testing.T) {
	r := NewRing[int](10)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 10_000; i++ {
			r.Push(i)
		}
	}()

	for {
		select {
		case <-done:
			assert.LessOrEqual(t, r.Len(), 10)
			return
		default:
		}
		if v, ok := r.PopNewest(); ok {
			assert.GreaterOrEqual(t, v, 0)
		}
	}
}
