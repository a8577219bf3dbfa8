package alerting

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()

	var a, b int
	counters := map[string]*int{"a": &a, "b": &b}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for key, counter := range counters {
			wg.Add(1)
			go func(k string, n *int) {
				defer wg.Done()
				unlock := km.Lock(k)
				defer unlock()
				*n++
			}(key, counter)
		}
	}
	wg.Wait()

	// No increment is lost, which only holds if the per-key critical
	// sections never overlapped.
	assert.Equal(t, 50, a)
	assert.Equal(t, 50, b)
}
