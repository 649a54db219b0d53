package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGetBeforeAndAfterExpiry(t *testing.T) {
	clock := newClock()
	c := NewWithClock[string, int](time.Hour, clock.Now)

	c.Put("key", 7, 60*time.Second)

	clock.Advance(30 * time.Second)
	v, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	clock.Advance(31 * time.Second)
	_, ok = c.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is purged on access")
}

func TestPutResetsExpiry(t *testing.T) {
	clock := newClock()
	c := NewWithClock[string, string](time.Minute, clock.Now)

	c.Put("a", "first", 0)
	clock.Advance(50 * time.Second)
	c.Put("a", "second", 0)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestMissingKey(t *testing.T) {
	c := New[int, string](time.Minute)
	_, ok := c.Get(42)
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	clock := newClock()
	c := NewWithClock[string, int](time.Minute, clock.Now)

	c.Put("short", 1, 10*time.Second)
	c.Put("long", 2, 10*time.Minute)
	clock.Advance(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Put("a", 1, 0)
	c.Put("b", 2, 0)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestRunClearsOnCancel(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Put("a", 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, []int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Put(j%10, []int{i, j}, 0)
				if v, ok := c.Get(j % 10); ok {
					assert.Len(t, v, 2)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, c.Len())
}
