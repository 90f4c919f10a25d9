package utils

import "sync"

// KeyedMutex serializes work per string key. Locks are created on first use
// and discarded once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (km *KeyedMutex) Lock(key string) {
	km.acquire(key).mu.Lock()
}

// TryLock reports whether the key lock was taken without blocking.
func (km *KeyedMutex) TryLock(key string) bool {
	lock := km.acquire(key)
	if !lock.mu.TryLock() {
		km.release(key)
		return false
	}
	return true
}

func (km *KeyedMutex) Unlock(key string) {
	km.mu.Lock()
	lock, ok := km.locks[key]
	km.mu.Unlock()
	if !ok {
		panic("utils: unlock of unheld keyed mutex " + key)
	}
	lock.mu.Unlock()
	km.release(key)
}

func (km *KeyedMutex) acquire(key string) *keyedLock {
	km.mu.Lock()
	defer km.mu.Unlock()
	lock, ok := km.locks[key]
	if !ok {
		lock = &keyedLock{}
		km.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (km *KeyedMutex) release(key string) {
	km.mu.Lock()
	defer km.mu.Unlock()
	lock := km.locks[key]
	lock.refs--
	if lock.refs == 0 {
		delete(km.locks, key)
	}
}
