package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	kl := New()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock("account:1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, kl.size())
}

func TestKeyLock_DifferentKeysIndependent(t *testing.T) {
	kl := New()
	unlockA := kl.Lock("position:1")
	unlockB := kl.Lock("position:2")
	assert.Equal(t, 2, kl.size())

	unlockA()
	unlockA()
	unlockB()
	assert.Equal(t, 0, kl.size())
}
