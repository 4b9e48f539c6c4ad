package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/ntcore/internal/value"
)

type rpcCall struct {
	caller      InstanceHandle
	callerEntry EntryHandle
	server      InstanceHandle
	serverEntry EntryHandle
	answered    bool
	result      chan []byte // buffered, size 1
	abort       chan struct{}
	once        sync.Once
}

func (c *rpcCall) abortOnce() {
	c.once.Do(func() { close(c.abort) })
}

func (l *Local) CreateRpcCallPoller(inst InstanceHandle) PollerHandle {
	return l.createPoller(inst, catRpc)
}

func (l *Local) DestroyRpcCallPoller(h PollerHandle) {
	l.destroyPoller(h, catRpc)
}

// CreatePolledRpc serves the rpc named by entry: its value becomes an Rpc
// value holding def, and calls are queued on poller.
func (l *Local) CreatePolledRpc(h EntryHandle, def []byte, ph PollerHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil {
		return invalid("create rpc", h)
	}
	p := l.pollerLocked(ph, catRpc)
	if p == nil || p.inst != in.handle {
		return invalid("create rpc", ph)
	}
	e.rpcPoller = ph
	l.assignLocked(in, e, value.MakeRpc(def))
	l.logLocked(in, LogDebug, "serving rpc %s", e.name)
	return nil
}

func (l *Local) PollRpc(h PollerHandle) ([]RpcAnswer, error) {
	l.mu.Lock()
	p := l.pollerLocked(h, catRpc)
	l.mu.Unlock()
	if p == nil {
		return nil, invalid("poll rpc", h)
	}
	return p.rpcs.Poll()
}

func (l *Local) CancelPollRpc(h PollerHandle) {
	l.cancelPoll(h, catRpc)
}

// CallRpc queues a call on whichever reachable instance serves the entry's
// name, the caller's own instance first.
func (l *Local) CallRpc(h EntryHandle, params []byte) (RpcCallHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil {
		return 0, invalid("call rpc", h)
	}

	srv, se := l.rpcServerLocked(in, e.name)
	if se == nil {
		return 0, fmt.Errorf("call rpc %s: %w", e.name, ErrNoRpcServer)
	}
	p := l.pollers[se.rpcPoller]

	c := &rpcCall{
		caller:      in.handle,
		callerEntry: h,
		server:      srv.handle,
		serverEntry: se.handle,
		result:      make(chan []byte, 1),
		abort:       make(chan struct{}),
	}
	call := RpcCallHandle(l.nextHandle())
	l.calls[call] = c

	p.rpcs.Push(RpcAnswer{
		Entry:  se.handle,
		Call:   call,
		Name:   se.name,
		Params: slices.Clone(params),
		Conn:   l.connInfoLocked(srv, in),
	})
	l.logLocked(in, LogDebug1, "rpc call %d to %s", call, e.name)
	return call, nil
}

// rpcServerLocked finds the first instance reachable from in that serves name.
func (l *Local) rpcServerLocked(in *instance, name string) (*instance, *entry) {
	if e := in.entries[name]; e != nil && e.rpcPoller != 0 {
		return in, e
	}
	var srv *instance
	var se *entry
	l.propagateLocked(in, func(peer *instance) {
		if se != nil {
			return
		}
		if e := peer.entries[name]; e != nil && e.rpcPoller != 0 {
			srv, se = peer, e
		}
	})
	return srv, se
}

// connInfoLocked describes caller as seen from srv.
func (l *Local) connInfoLocked(srv, caller *instance) ConnectionInfo {
	for _, ln := range srv.peers {
		if ln.peer == caller.handle {
			return ln.info
		}
	}
	return ConnectionInfo{
		RemoteID:        l.identityLocked(caller),
		ProtocolVersion: ProtocolVersion,
	}
}

// PostRpcResponse answers a call. It reports false for unknown or already
// answered calls.
func (l *Local) PostRpcResponse(h EntryHandle, call RpcCallHandle, result []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.calls[call]
	if c == nil || c.serverEntry != h || c.answered {
		return false
	}
	c.answered = true
	c.result <- slices.Clone(result)
	return true
}

// RpcResult blocks until the call is answered, ctx is done, or either side's
// instance is destroyed.
func (l *Local) RpcResult(ctx context.Context, h EntryHandle, call RpcCallHandle) ([]byte, error) {
	l.mu.Lock()
	c := l.calls[call]
	l.mu.Unlock()
	if c == nil || c.callerEntry != h {
		return nil, invalid("rpc result", call)
	}

	select {
	case res := <-c.result:
		l.mu.Lock()
		delete(l.calls, call)
		l.mu.Unlock()
		return res, nil
	case <-c.abort:
		return nil, invalid("rpc result", call)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
