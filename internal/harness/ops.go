package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/roach88/ntcore/internal/nt"
	"github.com/roach88/ntcore/internal/value"
)

// rpcTimeout bounds call_rpc.
const rpcTimeout = 2 * time.Second

// outcome is what a step produced besides its error.
type outcome struct {
	ok       *bool
	value    *value.Value
	response *string
}

type operation func(h *Harness, ctx context.Context, p *peer, args map[string]any) (outcome, error)

// operations maps scenario action names to their implementation.
var operations = map[string]operation{
	"set":              opSet,
	"set_default":      opSetDefault,
	"force_set":        opForceSet,
	"get":              opGet,
	"delete":           opDelete,
	"delete_all":       opDeleteAll,
	"set_persistent":   opPersistent(true),
	"clear_persistent": opPersistent(false),
	"set_identity":     opSetIdentity,
	"start_server":     opStartServer,
	"stop_server":      opStopServer,
	"start_client":     opStartClient,
	"stop_client":      opStopClient,
	"save_persistent":  opSavePersistent,
	"load_persistent":  opLoadPersistent,
	"save_entries":     opSaveEntries,
	"load_entries":     opLoadEntries,
	"create_rpc":       opCreateRpc,
	"call_rpc":         opCallRpc,
}

// argError reports a malformed scenario step rather than a failed operation.
type argError struct {
	msg string
}

func (e *argError) Error() string { return e.msg }

func argErrorf(format string, args ...any) error {
	return &argError{msg: fmt.Sprintf(format, args...)}
}

// isStepError reports whether err came from the operation itself.
func isStepError(err error) bool {
	var ae *argError
	return !errors.As(err, &ae)
}

func (h *Harness) invoke(ctx context.Context, peerName, op string, args map[string]any) (outcome, error) {
	p, ok := h.peers[peerName]
	if !ok {
		return outcome{}, argErrorf("unknown peer %q", peerName)
	}
	fn, ok := operations[op]
	if !ok {
		return outcome{}, argErrorf("unknown action %q", op)
	}
	return fn(h, ctx, p, args)
}

// errorCode names err the way expect clauses do.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := value.IsTypeMismatch(err); ok {
		return "TYPE_MISMATCH"
	}
	var ntErr *nt.Error
	if errors.As(err, &ntErr) {
		return string(ntErr.Code)
	}
	return "ERROR"
}

// checkExpect compares a step's outcome with its expect clause and returns
// the mismatches.
func checkExpect(expect *ExpectClause, out outcome, err error) []string {
	if expect == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	var msgs []string
	if got := errorCode(err); got != expect.Error {
		if expect.Error == "" {
			msgs = append(msgs, fmt.Sprintf("unexpected error: %v", err))
		} else {
			msgs = append(msgs, fmt.Sprintf("expected error %s, got %q", expect.Error, got))
		}
	}

	if expect.Result != nil {
		switch {
		case out.ok == nil:
			msgs = append(msgs, "step has no boolean result")
		case *out.ok != *expect.Result:
			msgs = append(msgs, fmt.Sprintf("expected result %v, got %v", *expect.Result, *out.ok))
		}
	}

	if expect.Type != "" {
		msgs = append(msgs, checkValue(expect.Type, expect.Value, out.value)...)
	}

	if expect.Response != nil {
		switch {
		case out.response == nil:
			msgs = append(msgs, "step has no rpc response")
		case *out.response != *expect.Response:
			msgs = append(msgs, fmt.Sprintf("expected response %q, got %q", *expect.Response, *out.response))
		}
	}
	return msgs
}

func checkValue(typ string, want any, got *value.Value) []string {
	if got == nil {
		return []string{"step has no value"}
	}
	kind, err := value.ParseKind(typ)
	if err != nil {
		return []string{err.Error()}
	}
	if kind == value.KindUnassigned {
		if !got.IsUnassigned() {
			return []string{fmt.Sprintf("expected no value, got %s %s", got.Kind(), got)}
		}
		return nil
	}
	expected, err := toValue(kind, want)
	if err != nil {
		return []string{fmt.Sprintf("expected value: %v", err)}
	}
	if !expected.Equal(*got) {
		return []string{fmt.Sprintf("expected %s %s, got %s %s", expected.Kind(), expected, got.Kind(), got)}
	}
	return nil
}

// toValue builds a Value of kind from a YAML scalar or list. Strings use
// the command-line text form, so raw values are hex digits.
func toValue(kind value.Kind, raw any) (value.Value, error) {
	if raw == nil {
		return value.Value{}, fmt.Errorf("%w: value is required", value.ErrInvalidArgument)
	}
	if s, ok := raw.(string); ok {
		return value.Parse(kind, s)
	}
	data, err := json.Marshal(map[string]any{"type": kind.String(), "value": raw})
	if err != nil {
		return value.Value{}, err
	}
	var v value.Value
	if err := v.UnmarshalJSON(data); err != nil {
		return value.Value{}, err
	}
	return v, nil
}

// Argument helpers.

func argString(args map[string]any, name string) (string, error) {
	s, ok := args[name].(string)
	if !ok || s == "" {
		return "", argErrorf("args.%s: string is required", name)
	}
	return s, nil
}

func optString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func optInt(args map[string]any, name string, def int) (int, error) {
	raw, ok := args[name]
	if !ok {
		return def, nil
	}
	n, ok := raw.(int)
	if !ok {
		return 0, argErrorf("args.%s: integer expected, got %T", name, raw)
	}
	return n, nil
}

func argValue(args map[string]any) (value.Value, error) {
	typ, err := argString(args, "type")
	if err != nil {
		return value.Value{}, err
	}
	kind, err := value.ParseKind(typ)
	if err != nil {
		return value.Value{}, argErrorf("args.type: %v", err)
	}
	if kind == value.KindUnassigned {
		return value.MakeEmpty(), nil
	}
	v, err := toValue(kind, args["value"])
	if err != nil {
		return value.Value{}, argErrorf("args.value: %v", err)
	}
	return v, nil
}

func argEntry(p *peer, args map[string]any) (nt.Entry, error) {
	key, err := argString(args, "key")
	if err != nil {
		return nt.Entry{}, err
	}
	return p.inst.GetEntry(key), nil
}

// path resolves a file argument inside the run directory.
func (h *Harness) path(args map[string]any) (string, error) {
	name, err := argString(args, "file")
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(name) || !filepath.IsLocal(name) {
		return "", argErrorf("args.file: %q must be a relative path", name)
	}
	return filepath.Join(h.dir, name), nil
}

// Operations.

func opSet(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	e, err := argEntry(p, args)
	if err != nil {
		return outcome{}, err
	}
	v, err := argValue(args)
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, e.SetValue(v)
}

func opSetDefault(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	e, err := argEntry(p, args)
	if err != nil {
		return outcome{}, err
	}
	v, err := argValue(args)
	if err != nil {
		return outcome{}, err
	}
	ok := e.SetDefaultValue(v)
	return outcome{ok: &ok}, nil
}

func opForceSet(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	e, err := argEntry(p, args)
	if err != nil {
		return outcome{}, err
	}
	v, err := argValue(args)
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, e.ForceSetValue(v)
}

func opGet(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	e, err := argEntry(p, args)
	if err != nil {
		return outcome{}, err
	}
	v := e.Value()
	return outcome{value: &v}, nil
}

func opDelete(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	e, err := argEntry(p, args)
	if err != nil {
		return outcome{}, err
	}
	e.Delete()
	return outcome{}, nil
}

func opDeleteAll(_ *Harness, _ context.Context, p *peer, _ map[string]any) (outcome, error) {
	p.inst.DeleteAllEntries()
	return outcome{}, nil
}

func opPersistent(set bool) operation {
	return func(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
		e, err := argEntry(p, args)
		if err != nil {
			return outcome{}, err
		}
		if set {
			e.SetPersistent()
		} else {
			e.ClearPersistent()
		}
		return outcome{}, nil
	}
}

func opSetIdentity(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	id, err := argString(args, "identity")
	if err != nil {
		return outcome{}, err
	}
	p.inst.SetNetworkIdentity(id)
	return outcome{}, nil
}

func opStartServer(h *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	port, err := optInt(args, "port", nt.DefaultPort)
	if err != nil {
		return outcome{}, err
	}
	persist := ""
	if _, ok := args["file"]; ok {
		if persist, err = h.path(args); err != nil {
			return outcome{}, err
		}
	}
	return outcome{}, p.inst.StartServer(
		nt.WithPersistFile(persist),
		nt.WithListenAddress(optString(args, "listen_address")),
		nt.WithPort(port),
	)
}

func opStopServer(_ *Harness, _ context.Context, p *peer, _ map[string]any) (outcome, error) {
	p.inst.StopServer()
	return outcome{}, nil
}

func opStartClient(_ *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	if team, err := optInt(args, "team", 0); err != nil {
		return outcome{}, err
	} else if team != 0 {
		port, err := optInt(args, "port", 0)
		if err != nil {
			return outcome{}, err
		}
		return outcome{}, p.inst.StartClientTeam(team, port)
	}

	raw, _ := args["servers"].([]any)
	servers := make([]nt.ServerPort, 0, len(raw))
	for i, r := range raw {
		s, ok := r.(string)
		if !ok {
			return outcome{}, argErrorf("args.servers[%d]: string expected, got %T", i, r)
		}
		sp, err := nt.ParseServer(s)
		if err != nil {
			return outcome{}, argErrorf("args.servers[%d]: %v", i, err)
		}
		servers = append(servers, sp)
	}
	return outcome{}, p.inst.StartClient(servers...)
}

func opStopClient(_ *Harness, _ context.Context, p *peer, _ map[string]any) (outcome, error) {
	p.inst.StopClient()
	return outcome{}, nil
}

func opSavePersistent(h *Harness, ctx context.Context, p *peer, args map[string]any) (outcome, error) {
	path, err := h.path(args)
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, p.inst.SavePersistent(ctx, path)
}

func opLoadPersistent(h *Harness, ctx context.Context, p *peer, args map[string]any) (outcome, error) {
	path, err := h.path(args)
	if err != nil {
		return outcome{}, err
	}
	_, err = p.inst.LoadPersistent(ctx, path)
	return outcome{}, err
}

func opSaveEntries(h *Harness, ctx context.Context, p *peer, args map[string]any) (outcome, error) {
	path, err := h.path(args)
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, p.inst.SaveEntries(ctx, path, optString(args, "prefix"))
}

func opLoadEntries(h *Harness, ctx context.Context, p *peer, args map[string]any) (outcome, error) {
	path, err := h.path(args)
	if err != nil {
		return outcome{}, err
	}
	_, err = p.inst.LoadEntries(ctx, path, optString(args, "prefix"))
	return outcome{}, err
}

// opCreateRpc serves an rpc replying with args.reply followed by the call
// parameters.
func opCreateRpc(h *Harness, _ context.Context, p *peer, args map[string]any) (outcome, error) {
	e, err := argEntry(p, args)
	if err != nil {
		return outcome{}, err
	}
	reply := optString(args, "reply")
	return outcome{}, e.CreateRpc([]byte(optString(args, "definition")), func(a *nt.RpcAnswer) {
		if err := a.PostResponse(append([]byte(reply), a.Params...)); err != nil {
			h.logger.Warn("rpc response", "peer", p.name, "entry", a.Name, "error", err)
		}
	})
}

func opCallRpc(_ *Harness, ctx context.Context, p *peer, args map[string]any) (outcome, error) {
	e, err := argEntry(p, args)
	if err != nil {
		return outcome{}, err
	}
	call, err := e.CallRpc([]byte(optString(args, "params")))
	if err != nil {
		return outcome{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	res, err := call.Result(ctx)
	if err != nil {
		return outcome{}, err
	}
	s := string(res)
	return outcome{response: &s}, nil
}
