package nt

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/ntcore/internal/engine"
	"github.com/roach88/ntcore/internal/testutil"
)

const waitFor = 2 * time.Second

func quietLocal() *engine.Local {
	return engine.NewLocal(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// newTestInstance returns an owned instance on a fresh spied engine,
// closed when the test ends.
func newTestInstance(t *testing.T) (*Instance, *testutil.SpyEngine) {
	t.Helper()
	spy := testutil.NewSpyEngine(quietLocal())
	inst := CreateWithEngine(spy)
	t.Cleanup(func() { inst.Close() })
	return inst, spy
}

// recv waits for one item from ch.
func recv[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for callback")
	}
	var zero T
	return zero
}
