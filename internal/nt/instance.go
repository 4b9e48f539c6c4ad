package nt

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/ntcore/internal/engine"
	"github.com/roach88/ntcore/internal/value"
)

// Instance is one synchronization domain.
//
// Thread-safety: every method is safe for concurrent use.
type Instance struct {
	eng    engine.Engine
	handle engine.InstanceHandle
	owned  bool

	mu     sync.Mutex
	closed bool
	tables map[string]*Table

	entryListeners *dispatcher[engine.EntryNotification]
	connListeners  *dispatcher[engine.ConnectionNotification]
	rpcCalls       *dispatcher[engine.RpcAnswer]
	loggers        *dispatcher[engine.LogMessage]
}

var (
	processEngine = sync.OnceValue(func() engine.Engine {
		return engine.NewLocal()
	})

	defaultInstance = sync.OnceValue(func() *Instance {
		eng := processEngine()
		return newInstance(eng, eng.DefaultInstance(), false)
	})
)

// Default returns the process instance. It is created on first use and is
// never destroyed; Close on it does nothing.
func Default() *Instance {
	return defaultInstance()
}

// Create returns a new instance on the process engine. The caller must Close it.
func Create() *Instance {
	return CreateWithEngine(processEngine())
}

// CreateWithEngine returns a new instance on eng. The caller must Close it.
func CreateWithEngine(eng engine.Engine) *Instance {
	return newInstance(eng, eng.CreateInstance(), true)
}

// DefaultWithEngine wraps eng's default instance. Like Default, the result
// is not owned and Close leaves the engine instance alive.
func DefaultWithEngine(eng engine.Engine) *Instance {
	return newInstance(eng, eng.DefaultInstance(), false)
}

func newInstance(eng engine.Engine, h engine.InstanceHandle, owned bool) *Instance {
	inst := &Instance{
		eng:    eng,
		handle: h,
		owned:  owned,
		tables: make(map[string]*Table),
	}

	inst.entryListeners = newDispatcher(CategoryEntry, h, pollerOps[engine.EntryNotification]{
		create:  func() engine.PollerHandle { return eng.CreateEntryListenerPoller(h) },
		poll:    eng.PollEntryListener,
		cancel:  eng.CancelPollEntryListener,
		destroy: eng.DestroyEntryListenerPoller,
		key:     func(n engine.EntryNotification) uint32 { return uint32(n.Listener) },
	})
	inst.connListeners = newDispatcher(CategoryConnection, h, pollerOps[engine.ConnectionNotification]{
		create:  func() engine.PollerHandle { return eng.CreateConnectionListenerPoller(h) },
		poll:    eng.PollConnectionListener,
		cancel:  eng.CancelPollConnectionListener,
		destroy: eng.DestroyConnectionListenerPoller,
		key:     func(n engine.ConnectionNotification) uint32 { return uint32(n.Listener) },
	})
	inst.rpcCalls = newDispatcher(CategoryRpc, h, pollerOps[engine.RpcAnswer]{
		create:  func() engine.PollerHandle { return eng.CreateRpcCallPoller(h) },
		poll:    eng.PollRpc,
		cancel:  eng.CancelPollRpc,
		destroy: eng.DestroyRpcCallPoller,
		key:     func(a engine.RpcAnswer) uint32 { return uint32(a.Entry) },
	})
	inst.loggers = newDispatcher(CategoryLogger, h, pollerOps[engine.LogMessage]{
		create:  func() engine.PollerHandle { return eng.CreateLoggerPoller(h) },
		poll:    eng.PollLogger,
		cancel:  eng.CancelPollLogger,
		destroy: eng.DestroyLoggerPoller,
		key:     func(m engine.LogMessage) uint32 { return uint32(m.Logger) },
	})
	return inst
}

// Handle returns the engine handle of the instance.
func (i *Instance) Handle() engine.InstanceHandle {
	return i.handle
}

// IsValid reports whether the instance is usable: it has an engine handle
// and has not been closed.
func (i *Instance) IsValid() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.handle != 0 && !i.closed
}

func (i *Instance) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// Close stops every running listener category, joining its worker, and
// destroys the engine instance if this Instance owns it. Calling Close more
// than once is a no-op. Close on the default instance does nothing.
func (i *Instance) Close() error {
	if !i.owned {
		return nil
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	i.stopAll(true)
	i.eng.DestroyInstance(i.handle)
	slog.Info("instance closed", "instance", i.handle)
	return nil
}

// StopListeners stops every running listener category and joins its worker.
// Registered listeners are dropped; registering a new one restarts the
// category.
func (i *Instance) StopListeners() {
	i.stopAll(false)
}

func (i *Instance) stopAll(final bool) {
	if final {
		i.entryListeners.close()
		i.connListeners.close()
		i.rpcCalls.close()
		i.loggers.close()
		return
	}
	i.entryListeners.stop()
	i.connListeners.stop()
	i.rpcCalls.stop()
	i.loggers.stop()
}

// ListenerState returns the lifecycle state of one listener category.
func (i *Instance) ListenerState(cat Category) ListenerState {
	switch cat {
	case CategoryEntry:
		return i.entryListeners.State()
	case CategoryConnection:
		return i.connListeners.State()
	case CategoryRpc:
		return i.rpcCalls.State()
	case CategoryLogger:
		return i.loggers.State()
	default:
		return NotStarted
	}
}

// GetEntry returns the entry handle for name. On a closed instance the
// returned Entry is invalid.
func (i *Instance) GetEntry(name string) Entry {
	if i.isClosed() {
		return Entry{}
	}
	return Entry{inst: i, handle: i.eng.GetEntry(i.handle, name)}
}

// GetEntries returns the existing entries whose name starts with prefix and
// whose kind is selected by mask.
func (i *Instance) GetEntries(prefix string, mask value.KindMask) []Entry {
	if i.isClosed() {
		return nil
	}
	handles := i.eng.GetEntries(i.handle, prefix, mask)
	out := make([]Entry, len(handles))
	for n, h := range handles {
		out[n] = Entry{inst: i, handle: h}
	}
	return out
}

// GetEntryInfo is GetEntries returning entry descriptions.
func (i *Instance) GetEntryInfo(prefix string, mask value.KindMask) []EntryInfo {
	if i.isClosed() {
		return nil
	}
	return i.eng.GetEntryInfo(i.handle, prefix, mask)
}

// DeleteAllEntries deletes every entry that is not persistent.
func (i *Instance) DeleteAllEntries() {
	if i.isClosed() {
		return
	}
	i.eng.DeleteAllEntries(i.handle)
}

// Persistence.

// SavePersistent writes the persistent entries to filename.
func (i *Instance) SavePersistent(ctx context.Context, filename string) error {
	if i.isClosed() {
		return errClosed("save persistent")
	}
	return wrapEngine("save persistent", i.eng.SavePersistent(ctx, i.handle, filename))
}

// LoadPersistent loads filename, marking the loaded entries persistent.
// Entries that could not be decoded are reported as warnings.
func (i *Instance) LoadPersistent(ctx context.Context, filename string) ([]string, error) {
	if i.isClosed() {
		return nil, errClosed("load persistent")
	}
	warnings, err := i.eng.LoadPersistent(ctx, i.handle, filename)
	return warnings, wrapEngine("load persistent", err)
}

// SaveEntries writes the entries under prefix to filename.
func (i *Instance) SaveEntries(ctx context.Context, filename, prefix string) error {
	if i.isClosed() {
		return errClosed("save entries")
	}
	return wrapEngine("save entries", i.eng.SaveEntries(ctx, i.handle, filename, prefix))
}

// LoadEntries loads the entries under prefix from filename.
func (i *Instance) LoadEntries(ctx context.Context, filename, prefix string) ([]string, error) {
	if i.isClosed() {
		return nil, errClosed("load entries")
	}
	warnings, err := i.eng.LoadEntries(ctx, i.handle, filename, prefix)
	return warnings, wrapEngine("load entries", err)
}
