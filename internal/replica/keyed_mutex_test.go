package replica

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var k KeyedMutex
	unlock := k.Lock("rp-1")

	acquired := make(chan struct{})
	go func() {
		release := k.Lock("rp-1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var k KeyedMutex
	unlockA := k.Lock("rp-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		k.Lock("rp-b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("distinct keys must not block each other")
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	var k KeyedMutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("rp-shared")
			unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Zero(t, k.size())
}
