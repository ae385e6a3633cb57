package keymutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_SerializesSameKey(t *testing.T) {
	table := New()

	const goroutines = 100
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			unlock := table.Lock("cart-1/product-1")
			defer unlock()

			// Non-atomic read-modify-write; only correct if Lock serializes.
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestLock_IndependentKeysDoNotBlock(t *testing.T) {
	table := New()

	unlockA := table.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := table.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key blocked")
	}
}

func TestLock_EntriesEvictedAfterRelease(t *testing.T) {
	table := New()

	unlock := table.Lock("k")
	require.Equal(t, 1, table.Len())
	unlock()

	assert.Equal(t, 0, table.Len())
}

func TestLock_ReacquireAfterEviction(t *testing.T) {
	table := New()

	unlock := table.Lock("k")
	unlock()

	unlock = table.Lock("k")
	unlock()

	assert.Equal(t, 0, table.Len())
}
