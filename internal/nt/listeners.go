package nt

import (
	"github.com/roach88/ntcore/internal/engine"
)

func listenerKey(h engine.ListenerHandle) (uint32, error) {
	if h == 0 {
		return 0, engine.ErrInvalidHandle
	}
	return uint32(h), nil
}

func (i *Instance) entryEvent(n engine.EntryNotification) EntryEvent {
	return EntryEvent{
		Listener: n.Listener,
		Entry:    Entry{inst: i, handle: n.Entry},
		Name:     n.Name,
		Value:    n.Value,
		Flags:    n.Flags,
	}
}

// AddEntryListener calls cb for changes to entries whose name starts with
// prefix. flags select the kinds of change; with NotifyImmediate, existing
// entries are reported right away. Changes made through this instance are
// only reported with NotifyLocal.
func (i *Instance) AddEntryListener(prefix string, flags NotifyFlags, cb func(EntryEvent)) (Listener, error) {
	key, err := i.entryListeners.add("add entry listener", func(p engine.PollerHandle) (uint32, error) {
		return wrapKey("add entry listener", i.eng.AddPolledEntryListener(p, prefix, flags))
	}, func(n engine.EntryNotification) {
		cb(i.entryEvent(n))
	})
	return Listener(key), err
}

// AddEntryListenerEntry calls cb for changes to one entry.
func (i *Instance) AddEntryListenerEntry(entry Entry, flags NotifyFlags, cb func(EntryEvent)) (Listener, error) {
	key, err := i.entryListeners.add("add entry listener", func(p engine.PollerHandle) (uint32, error) {
		return wrapKey("add entry listener", i.eng.AddPolledEntryListenerEntry(p, entry.handle, flags))
	}, func(n engine.EntryNotification) {
		cb(i.entryEvent(n))
	})
	return Listener(key), err
}

func (i *Instance) RemoveEntryListener(l Listener) {
	i.entryListeners.remove(uint32(l), func(k uint32) {
		i.eng.RemoveEntryListener(engine.ListenerHandle(k))
	})
}

// AddConnectionListener calls cb when a peer connects or disconnects. With
// immediateNotify, current connections are reported right away.
func (i *Instance) AddConnectionListener(immediateNotify bool, cb func(ConnectionEvent)) (Listener, error) {
	key, err := i.connListeners.add("add connection listener", func(p engine.PollerHandle) (uint32, error) {
		return wrapKey("add connection listener", i.eng.AddPolledConnectionListener(p, immediateNotify))
	}, func(n engine.ConnectionNotification) {
		cb(ConnectionEvent{Listener: n.Listener, Connected: n.Connected, Conn: n.Conn})
	})
	return Listener(key), err
}

func (i *Instance) RemoveConnectionListener(l Listener) {
	i.connListeners.remove(uint32(l), func(k uint32) {
		i.eng.RemoveConnectionListener(engine.ListenerHandle(k))
	})
}

// AddLogger calls cb for engine log messages with minLevel <= level <= maxLevel.
func (i *Instance) AddLogger(minLevel, maxLevel LogLevel, cb func(LogMessage)) (Listener, error) {
	key, err := i.loggers.add("add logger", func(p engine.PollerHandle) (uint32, error) {
		return wrapKey("add logger", i.eng.AddPolledLogger(p, minLevel, maxLevel))
	}, func(m engine.LogMessage) {
		cb(LogMessage{Logger: m.Logger, Level: m.Level, Filename: m.Filename, Line: m.Line, Message: m.Message})
	})
	return Listener(key), err
}

func (i *Instance) RemoveLogger(l Listener) {
	i.loggers.remove(uint32(l), func(k uint32) {
		i.eng.RemoveLogger(engine.ListenerHandle(k))
	})
}

func wrapKey(op string, h engine.ListenerHandle) (uint32, error) {
	key, err := listenerKey(h)
	if err != nil {
		return 0, &Error{Code: ErrCodeEngineFailure, Op: op, Err: err}
	}
	return key, nil
}
