package nt

import (
	"context"
	"slices"

	"github.com/roach88/ntcore/internal/engine"
)

// RpcAnswer is one incoming rpc call.
type RpcAnswer struct {
	Entry  Entry
	Call   engine.RpcCallHandle
	Name   string
	Params []byte
	Conn   ConnectionInfo
}

// IsValid reports whether the answer refers to a call.
func (a *RpcAnswer) IsValid() bool {
	return a != nil && a.Call != 0 && a.Entry.IsValid()
}

// PostResponse sends result to the caller. A call can be answered once.
func (a *RpcAnswer) PostResponse(result []byte) error {
	if !a.IsValid() {
		return &Error{Code: ErrCodeInvalidState, Op: "post rpc response", Message: "invalid rpc answer"}
	}
	if !a.Entry.inst.eng.PostRpcResponse(a.Entry.handle, a.Call, result) {
		return &Error{Code: ErrCodeInvalidState, Op: "post rpc response", Message: "call already answered or unknown"}
	}
	return nil
}

// CreateRpc serves the rpc named by entry with definition def. Incoming
// calls are passed to cb on the rpc worker.
func (i *Instance) CreateRpc(entry Entry, def []byte, cb func(*RpcAnswer)) error {
	_, err := i.rpcCalls.add("create rpc", func(p engine.PollerHandle) (uint32, error) {
		if err := i.eng.CreatePolledRpc(entry.handle, def, p); err != nil {
			return 0, wrapEngine("create rpc", err)
		}
		return uint32(entry.handle), nil
	}, func(a engine.RpcAnswer) {
		cb(&RpcAnswer{
			Entry:  Entry{inst: i, handle: a.Entry},
			Call:   a.Call,
			Name:   a.Name,
			Params: a.Params,
			Conn:   a.Conn,
		})
	})
	return err
}

// RpcCall is a pending call made with Entry.CallRpc.
type RpcCall struct {
	entry Entry
	call  engine.RpcCallHandle
}

// Handle returns the engine call handle.
func (c RpcCall) Handle() engine.RpcCallHandle {
	return c.call
}

// Result blocks until the call is answered or ctx is done.
func (c RpcCall) Result(ctx context.Context) ([]byte, error) {
	if c.call == 0 || !c.entry.IsValid() {
		return nil, &Error{Code: ErrCodeInvalidState, Op: "rpc result", Message: "invalid call"}
	}
	res, err := c.entry.inst.eng.RpcResult(ctx, c.entry.handle, c.call)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, wrapEngine("rpc result", err)
	}
	return slices.Clone(res), nil
}
