package engine

import (
	"slices"
	"strings"
	"time"

	"github.com/roach88/ntcore/internal/value"
)

// poller holds the queue of one category for one instance. Exactly one of
// the queue fields is set, matching cat.
type poller struct {
	handle    PollerHandle
	inst      InstanceHandle
	cat       category
	listeners []ListenerHandle

	entries *pollQueue[EntryNotification]
	conns   *pollQueue[ConnectionNotification]
	rpcs    *pollQueue[RpcAnswer]
	logs    *pollQueue[LogMessage]
}

func (p *poller) cancel() {
	switch p.cat {
	case catEntry:
		p.entries.Cancel()
	case catConnection:
		p.conns.Cancel()
	case catRpc:
		p.rpcs.Cancel()
	case catLogger:
		p.logs.Cancel()
	}
}

func (p *poller) close() {
	switch p.cat {
	case catEntry:
		p.entries.Close()
	case catConnection:
		p.conns.Close()
	case catRpc:
		p.rpcs.Close()
	case catLogger:
		p.logs.Close()
	}
}

type listener struct {
	handle ListenerHandle
	poller PollerHandle
	inst   InstanceHandle
	cat    category

	// entry listeners
	prefix string
	entry  EntryHandle // nonzero for single-entry listeners
	flags  NotifyFlags

	// loggers
	minLevel LogLevel
	maxLevel LogLevel
}

func (l *Local) createPoller(inst InstanceHandle, cat category) PollerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return 0
	}
	p := &poller{handle: PollerHandle(l.nextHandle()), inst: inst, cat: cat}
	switch cat {
	case catEntry:
		p.entries = newPollQueue[EntryNotification]()
	case catConnection:
		p.conns = newPollQueue[ConnectionNotification]()
	case catRpc:
		p.rpcs = newPollQueue[RpcAnswer]()
	case catLogger:
		p.logs = newPollQueue[LogMessage]()
	}
	l.pollers[p.handle] = p
	in.pollers = append(in.pollers, p.handle)

	l.logger.Debug("poller created",
		"instance", inst,
		"poller", p.handle,
		"category", cat.String(),
	)
	return p.handle
}

// pollerLocked returns the poller if it exists and belongs to cat.
func (l *Local) pollerLocked(h PollerHandle, cat category) *poller {
	p := l.pollers[h]
	if p == nil || p.cat != cat {
		return nil
	}
	return p
}

func (l *Local) destroyPoller(h PollerHandle, cat category) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pollerLocked(h, cat) == nil {
		return
	}
	l.destroyPollerLocked(h)
}

// destroyPollerLocked closes the queue, drops the poller's listeners and
// stops serving any rpc bound to it.
func (l *Local) destroyPollerLocked(h PollerHandle) {
	p := l.pollers[h]
	if p == nil {
		return
	}
	p.close()
	for _, lh := range slices.Clone(p.listeners) {
		l.removeListenerLocked(lh)
	}
	if in := l.instances[p.inst]; in != nil {
		in.pollers = remove(in.pollers, h)
		if p.cat == catRpc {
			for _, e := range in.entries {
				if e.rpcPoller == h {
					e.rpcPoller = 0
				}
			}
		}
	}
	delete(l.pollers, h)
}

func (l *Local) cancelPoll(h PollerHandle, cat category) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p := l.pollerLocked(h, cat); p != nil {
		p.cancel()
	}
}

// addListenerLocked registers ls on its poller and instance.
func (l *Local) addListenerLocked(p *poller, ls *listener) ListenerHandle {
	ls.handle = ListenerHandle(l.nextHandle())
	ls.poller = p.handle
	ls.inst = p.inst
	ls.cat = p.cat
	l.listeners[ls.handle] = ls
	p.listeners = append(p.listeners, ls.handle)
	if in := l.instances[p.inst]; in != nil {
		in.listeners[p.cat] = append(in.listeners[p.cat], ls.handle)
	}
	return ls.handle
}

func (l *Local) removeListener(h ListenerHandle, cat category) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ls := l.listeners[h]; ls != nil && ls.cat == cat {
		l.removeListenerLocked(h)
	}
}

func (l *Local) removeListenerLocked(h ListenerHandle) {
	ls := l.listeners[h]
	if ls == nil {
		return
	}
	if p := l.pollers[ls.poller]; p != nil {
		p.listeners = remove(p.listeners, h)
	}
	if in := l.instances[ls.inst]; in != nil {
		in.listeners[ls.cat] = remove(in.listeners[ls.cat], h)
	}
	delete(l.listeners, h)
}

func remove[H comparable](s []H, h H) []H {
	out := s[:0]
	for _, v := range s {
		if v != h {
			out = append(out, v)
		}
	}
	return out
}

// notifyEntryLocked queues an entry notification for every matching listener
// of in, in registration order.
func (l *Local) notifyEntryLocked(in *instance, e *entry, v value.Value, flags NotifyFlags) {
	for _, lh := range in.listeners[catEntry] {
		ls := l.listeners[lh]
		if ls.entry != 0 {
			if ls.entry != e.handle {
				continue
			}
		} else if !strings.HasPrefix(e.name, ls.prefix) {
			continue
		}
		if !ls.flags.wants(flags) {
			continue
		}
		if p := l.pollers[ls.poller]; p != nil {
			p.entries.Push(EntryNotification{
				Listener: lh,
				Entry:    e.handle,
				Name:     e.name,
				Value:    v,
				Flags:    flags,
			})
		}
	}
}

func (l *Local) notifyConnectionLocked(in *instance, connected bool, info ConnectionInfo) {
	for _, lh := range in.listeners[catConnection] {
		ls := l.listeners[lh]
		if p := l.pollers[ls.poller]; p != nil {
			p.conns.Push(ConnectionNotification{Listener: lh, Connected: connected, Conn: info})
		}
	}
}

// Entry listeners.

func (l *Local) CreateEntryListenerPoller(inst InstanceHandle) PollerHandle {
	return l.createPoller(inst, catEntry)
}

func (l *Local) DestroyEntryListenerPoller(h PollerHandle) {
	l.destroyPoller(h, catEntry)
}

// AddPolledEntryListener listens to every entry whose name starts with
// prefix. With NotifyImmediate, existing entries are reported at once with
// NotifyImmediate|NotifyNew.
func (l *Local) AddPolledEntryListener(h PollerHandle, prefix string, flags NotifyFlags) ListenerHandle {
	return l.addEntryListener(h, &listener{prefix: prefix, flags: flags})
}

// AddPolledEntryListenerEntry listens to a single entry of the poller's
// instance.
func (l *Local) AddPolledEntryListenerEntry(h PollerHandle, entry EntryHandle, flags NotifyFlags) ListenerHandle {
	return l.addEntryListener(h, &listener{entry: entry, flags: flags})
}

func (l *Local) addEntryListener(h PollerHandle, ls *listener) ListenerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pollerLocked(h, catEntry)
	if p == nil {
		return 0
	}
	in := l.instances[p.inst]
	if ls.entry != 0 {
		if ref, ok := l.entries[ls.entry]; !ok || ref.inst != p.inst {
			return 0
		}
	}
	lh := l.addListenerLocked(p, ls)

	if ls.flags&NotifyImmediate == 0 || !ls.flags.wants(NotifyNew) {
		return lh
	}
	flags := NotifyImmediate | NotifyNew
	for _, e := range sortedEntries(in, ls.prefix, value.AllKinds) {
		if ls.entry != 0 && e.handle != ls.entry {
			continue
		}
		p.entries.Push(EntryNotification{Listener: lh, Entry: e.handle, Name: e.name, Value: e.value, Flags: flags})
	}
	return lh
}

func (l *Local) PollEntryListener(h PollerHandle) ([]EntryNotification, error) {
	l.mu.Lock()
	p := l.pollerLocked(h, catEntry)
	l.mu.Unlock()
	if p == nil {
		return nil, invalid("poll entry listener", h)
	}
	return p.entries.Poll()
}

func (l *Local) PollEntryListenerTimeout(h PollerHandle, timeout time.Duration) ([]EntryNotification, bool, error) {
	l.mu.Lock()
	p := l.pollerLocked(h, catEntry)
	l.mu.Unlock()
	if p == nil {
		return nil, false, invalid("poll entry listener", h)
	}
	return p.entries.PollTimeout(timeout)
}

func (l *Local) CancelPollEntryListener(h PollerHandle) {
	l.cancelPoll(h, catEntry)
}

func (l *Local) RemoveEntryListener(h ListenerHandle) {
	l.removeListener(h, catEntry)
}

// Connection listeners.

func (l *Local) CreateConnectionListenerPoller(inst InstanceHandle) PollerHandle {
	return l.createPoller(inst, catConnection)
}

func (l *Local) DestroyConnectionListenerPoller(h PollerHandle) {
	l.destroyPoller(h, catConnection)
}

// AddPolledConnectionListener listens to connects and disconnects. With
// immediateNotify, current connections are reported at once.
func (l *Local) AddPolledConnectionListener(h PollerHandle, immediateNotify bool) ListenerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pollerLocked(h, catConnection)
	if p == nil {
		return 0
	}
	lh := l.addListenerLocked(p, &listener{})
	if immediateNotify {
		for _, ln := range l.instances[p.inst].peers {
			p.conns.Push(ConnectionNotification{Listener: lh, Connected: true, Conn: ln.info})
		}
	}
	return lh
}

func (l *Local) PollConnectionListener(h PollerHandle) ([]ConnectionNotification, error) {
	l.mu.Lock()
	p := l.pollerLocked(h, catConnection)
	l.mu.Unlock()
	if p == nil {
		return nil, invalid("poll connection listener", h)
	}
	return p.conns.Poll()
}

func (l *Local) PollConnectionListenerTimeout(h PollerHandle, timeout time.Duration) ([]ConnectionNotification, bool, error) {
	l.mu.Lock()
	p := l.pollerLocked(h, catConnection)
	l.mu.Unlock()
	if p == nil {
		return nil, false, invalid("poll connection listener", h)
	}
	return p.conns.PollTimeout(timeout)
}

func (l *Local) CancelPollConnectionListener(h PollerHandle) {
	l.cancelPoll(h, catConnection)
}

func (l *Local) RemoveConnectionListener(h ListenerHandle) {
	l.removeListener(h, catConnection)
}

// Loggers.

func (l *Local) CreateLoggerPoller(inst InstanceHandle) PollerHandle {
	return l.createPoller(inst, catLogger)
}

func (l *Local) DestroyLoggerPoller(h PollerHandle) {
	l.destroyPoller(h, catLogger)
}

// AddPolledLogger receives engine log messages with minLevel <= level <= maxLevel.
func (l *Local) AddPolledLogger(h PollerHandle, minLevel, maxLevel LogLevel) ListenerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pollerLocked(h, catLogger)
	if p == nil {
		return 0
	}
	return l.addListenerLocked(p, &listener{minLevel: minLevel, maxLevel: maxLevel})
}

func (l *Local) PollLogger(h PollerHandle) ([]LogMessage, error) {
	l.mu.Lock()
	p := l.pollerLocked(h, catLogger)
	l.mu.Unlock()
	if p == nil {
		return nil, invalid("poll logger", h)
	}
	return p.logs.Poll()
}

func (l *Local) CancelPollLogger(h PollerHandle) {
	l.cancelPoll(h, catLogger)
}

func (l *Local) RemoveLogger(h ListenerHandle) {
	l.removeListener(h, catLogger)
}
