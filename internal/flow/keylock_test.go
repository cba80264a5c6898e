package flow

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/stickerbot/core/telegram/state"
)

func TestKeyLockExcludesSameKey(t *testing.T) {
	kl := newKeyLock()
	key := state.NewKey("telegram", "1")

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock(key)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, kl.size())
}

func TestKeyLockIndependentKeys(t *testing.T) {
	kl := newKeyLock()
	unlockA := kl.Lock(state.NewKey("telegram", "1"))
	unlockB := kl.Lock(state.NewKey("telegram", "2"))
	assert.Equal(t, 2, kl.size())
	unlockA()
	unlockB()
	assert.Zero(t, kl.size())
}
