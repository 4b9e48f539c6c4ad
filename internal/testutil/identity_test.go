package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIdentityGenerator_Sequence(t *testing.T) {
	gen := NewSequentialIdentityGenerator("robot")

	assert.Equal(t, "robot-1", gen.Generate())
	assert.Equal(t, "robot-2", gen.Generate())
	assert.Equal(t, "robot-3", gen.Generate())
}

func TestSequentialIdentityGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIdentityGenerator("")
	assert.Equal(t, "peer-1", gen.Generate())
}

func TestSequentialIdentityGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialIdentityGenerator("p")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				assert.False(t, seen[id], "duplicate identity %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
