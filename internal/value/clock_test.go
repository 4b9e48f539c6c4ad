package value

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_NextStartsAtOne(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
}

func TestCreatedAt_OrdersConstruction(t *testing.T) {
	built := []Value{
		MakeBoolean(true),
		MakeDouble(1),
		MakeString("s"),
		MakeRaw([]byte{1}),
		MakeRpc([]byte{2}),
		MakeBooleanArray(true),
		MakeDoubleArray(1),
		MakeStringArray("a"),
	}
	for i := 1; i < len(built); i++ {
		assert.Greater(t, built[i].CreatedAt(), built[i-1].CreatedAt(), built[i].Kind().String())
	}
}

func TestCreatedAt_DecodedValueIsRestamped(t *testing.T) {
	v := MakeDouble(2)
	parsed, err := Parse(KindDouble, "2")
	require.NoError(t, err)
	assert.True(t, v.Equal(parsed))
	assert.Greater(t, parsed.CreatedAt(), v.CreatedAt())
}

func TestCreatedAt_UniqueUnderConcurrentConstruction(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	stampsSeen := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				stampsSeen <- MakeDouble(float64(j)).CreatedAt()
			}
		}()
	}
	wg.Wait()
	close(stampsSeen)

	seen := make(map[int64]bool)
	for s := range stampsSeen {
		assert.False(t, seen[s], "stamp %d issued twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}
