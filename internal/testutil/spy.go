package testutil

import (
	"sync"

	"github.com/roach88/ntcore/internal/engine"
)

// PollerCounts tallies poller lifecycle calls for one listener category.
type PollerCounts struct {
	Created   int
	Cancelled int
	Destroyed int
}

// SpyEngine wraps an engine.Engine and counts poller lifecycle calls per
// category. Every other method is forwarded unchanged.
//
// A created poller means a listener worker was started, so tests use the
// counts to check that workers start lazily and exactly once.
//
// Thread-safety: safe for concurrent use.
type SpyEngine struct {
	engine.Engine

	mu     sync.Mutex
	counts map[string]*PollerCounts
}

// Category names used as SpyEngine keys.
const (
	SpyEntry      = "entry"
	SpyConnection = "connection"
	SpyRpc        = "rpc"
	SpyLogger     = "logger"
)

// NewSpyEngine wraps eng.
func NewSpyEngine(eng engine.Engine) *SpyEngine {
	return &SpyEngine{Engine: eng, counts: make(map[string]*PollerCounts)}
}

// Counts returns a copy of the counts for category.
func (s *SpyEngine) Counts(category string) PollerCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counts[category]; ok {
		return *c
	}
	return PollerCounts{}
}

func (s *SpyEngine) bump(category string, f func(*PollerCounts)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counts[category]
	if !ok {
		c = &PollerCounts{}
		s.counts[category] = c
	}
	f(c)
}

func created(c *PollerCounts)   { c.Created++ }
func cancelled(c *PollerCounts) { c.Cancelled++ }
func destroyed(c *PollerCounts) { c.Destroyed++ }

func (s *SpyEngine) CreateEntryListenerPoller(inst engine.InstanceHandle) engine.PollerHandle {
	s.bump(SpyEntry, created)
	return s.Engine.CreateEntryListenerPoller(inst)
}

func (s *SpyEngine) CancelPollEntryListener(p engine.PollerHandle) {
	s.bump(SpyEntry, cancelled)
	s.Engine.CancelPollEntryListener(p)
}

func (s *SpyEngine) DestroyEntryListenerPoller(p engine.PollerHandle) {
	s.bump(SpyEntry, destroyed)
	s.Engine.DestroyEntryListenerPoller(p)
}

func (s *SpyEngine) CreateConnectionListenerPoller(inst engine.InstanceHandle) engine.PollerHandle {
	s.bump(SpyConnection, created)
	return s.Engine.CreateConnectionListenerPoller(inst)
}

func (s *SpyEngine) CancelPollConnectionListener(p engine.PollerHandle) {
	s.bump(SpyConnection, cancelled)
	s.Engine.CancelPollConnectionListener(p)
}

func (s *SpyEngine) DestroyConnectionListenerPoller(p engine.PollerHandle) {
	s.bump(SpyConnection, destroyed)
	s.Engine.DestroyConnectionListenerPoller(p)
}

func (s *SpyEngine) CreateRpcCallPoller(inst engine.InstanceHandle) engine.PollerHandle {
	s.bump(SpyRpc, created)
	return s.Engine.CreateRpcCallPoller(inst)
}

func (s *SpyEngine) CancelPollRpc(p engine.PollerHandle) {
	s.bump(SpyRpc, cancelled)
	s.Engine.CancelPollRpc(p)
}

func (s *SpyEngine) DestroyRpcCallPoller(p engine.PollerHandle) {
	s.bump(SpyRpc, destroyed)
	s.Engine.DestroyRpcCallPoller(p)
}

func (s *SpyEngine) CreateLoggerPoller(inst engine.InstanceHandle) engine.PollerHandle {
	s.bump(SpyLogger, created)
	return s.Engine.CreateLoggerPoller(inst)
}

func (s *SpyEngine) CancelPollLogger(p engine.PollerHandle) {
	s.bump(SpyLogger, cancelled)
	s.Engine.CancelPollLogger(p)
}

func (s *SpyEngine) DestroyLoggerPoller(p engine.PollerHandle) {
	s.bump(SpyLogger, destroyed)
	s.Engine.DestroyLoggerPoller(p)
}
