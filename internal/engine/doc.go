// Package engine defines the synchronization engine contract consumed by the
// nt package, and Local, an in-process implementation of it.
//
// The contract mirrors a handle-based C-style API: every object the engine
// owns (instances, entries, pollers, listeners, rpc calls) is referred to by
// an opaque uint32 handle, and 0 is never a valid handle. Operations on an
// unknown handle return zero values rather than panicking.
//
// Notifications are delivered through pollers. A poller collects the events
// of one category (entry, connection, rpc, logger) for one instance; a caller
// drains it with the matching blocking Poll method:
//
//	p := eng.CreateEntryListenerPoller(inst)
//	eng.AddPolledEntryListener(p, "/", engine.NotifyNew|engine.NotifyUpdate)
//	for {
//	    events, err := eng.PollEntryListener(p)
//	    if err != nil {
//	        break // ErrPollCancelled or ErrInvalidHandle
//	    }
//	    ...
//	}
//
// CancelPoll* makes the next (or current) poll return ErrPollCancelled once.
// Destroying the poller or its instance makes every later poll return
// ErrInvalidHandle.
//
// LOCAL ENGINE:
//
// Local keeps all state behind one mutex and never holds it while a caller
// is blocked in a poll. Servers register under listenAddress:port in a
// registry private to the Local value; clients link to the first server in
// their list that is registered. Links are symmetric, and a write on any
// instance reaches every instance reachable over links before the write
// returns, so Flush has nothing to do.
package engine
