package flow

import (
	"sync"

	"github.com/m3rciful/stickerbot/core/telegram/state"
)

// keyLock serialises work per conversation identity. Entries are removed
// once no goroutine holds or waits for them.
type keyLock struct {
	mu    sync.Mutex
	locks map[state.Key]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[state.Key]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyLock) Lock(key state.Key) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
