package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryLockRefusesHeldKey(t *testing.T) {
	km := NewKeyedMutex()

	require.True(t, km.TryLock("acct-1"))
	require.False(t, km.TryLock("acct-1"))

	km.Unlock("acct-1")
	require.True(t, km.TryLock("acct-1"))
	km.Unlock("acct-1")
}

func TestKeysLockIndependently(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock("acct-1")
	require.True(t, km.TryLock("acct-2"))
	km.Unlock("acct-2")
	km.Unlock("acct-1")
}

func TestLockSerializesGoroutines(t *testing.T) {
	km := NewKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("acct-1")
			counter++
			km.Unlock("acct-1")
		}()
	}
	wg.Wait()

	require.Equal(t, 32, counter)
}
