package testutil

import (
	"fmt"
	"sync"
)

// SequentialIdentityGenerator hands out "<prefix>-1", "<prefix>-2", ...
//
// This keeps connection info and rpc caller ids stable across runs, so the
// same scenario produces byte-identical golden output.
//
// Implements engine.IdentityGenerator.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIdentityGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIdentityGenerator creates a generator. An empty prefix
// becomes "peer".
func NewSequentialIdentityGenerator(prefix string) *SequentialIdentityGenerator {
	if prefix == "" {
		prefix = "peer"
	}
	return &SequentialIdentityGenerator{prefix: prefix}
}

// Generate returns the next identity.
func (g *SequentialIdentityGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
