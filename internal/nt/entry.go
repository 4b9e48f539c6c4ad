package nt

import (
	"github.com/roach88/ntcore/internal/engine"
	"github.com/roach88/ntcore/internal/value"
)

// Entry is a cheap handle to one named entry of an Instance. The zero
// Entry is invalid; its getters return defaults and its setters fail.
type Entry struct {
	inst   *Instance
	handle engine.EntryHandle
}

// Handle returns the engine handle.
func (e Entry) Handle() engine.EntryHandle {
	return e.handle
}

// Instance returns the owning instance.
func (e Entry) Instance() *Instance {
	return e.inst
}

// IsValid reports whether the handle refers to an entry.
func (e Entry) IsValid() bool {
	return e.inst != nil && e.handle != 0
}

func (e Entry) Name() string {
	if !e.IsValid() {
		return ""
	}
	return e.inst.eng.EntryName(e.handle)
}

func (e Entry) Type() value.Kind {
	if !e.IsValid() {
		return value.KindUnassigned
	}
	return e.inst.eng.EntryType(e.handle)
}

// Exists reports whether the entry currently has a value.
func (e Entry) Exists() bool {
	return e.Type() != value.KindUnassigned
}

func (e Entry) Info() EntryInfo {
	if !e.IsValid() {
		return EntryInfo{}
	}
	return e.inst.eng.EntryInfo(e.handle)
}

// LastChange returns the logical stamp of the last change.
func (e Entry) LastChange() int64 {
	if !e.IsValid() {
		return 0
	}
	return e.inst.eng.EntryLastChange(e.handle)
}

func (e Entry) Flags() EntryFlags {
	if !e.IsValid() {
		return 0
	}
	return e.inst.eng.EntryFlags(e.handle)
}

// SetFlags sets the given bits, leaving the others as they are. Concurrent
// SetFlags and ClearFlags calls on different bits never undo each other.
func (e Entry) SetFlags(flags EntryFlags) {
	if e.IsValid() {
		e.inst.eng.ChangeEntryFlags(e.handle, flags, 0)
	}
}

func (e Entry) ClearFlags(flags EntryFlags) {
	if e.IsValid() {
		e.inst.eng.ChangeEntryFlags(e.handle, 0, flags)
	}
}

func (e Entry) IsPersistent() bool { return e.Flags()&Persistent != 0 }
func (e Entry) SetPersistent()     { e.SetFlags(Persistent) }
func (e Entry) ClearPersistent()   { e.ClearFlags(Persistent) }

// Value returns the current value, Unassigned if the entry does not exist.
func (e Entry) Value() value.Value {
	if !e.IsValid() {
		return value.Value{}
	}
	return e.inst.eng.EntryValue(e.handle)
}

// getOr returns the entry's value as T, or def when it does not hold a T.
func getOr[T value.Shape](e Entry, def T) T {
	if v, ok := value.TryGet[T](e.Value()); ok {
		return v
	}
	return def
}

func (e Entry) GetBoolean(def bool) bool               { return getOr(e, def) }
func (e Entry) GetDouble(def float64) float64          { return getOr(e, def) }
func (e Entry) GetString(def string) string            { return getOr(e, def) }
func (e Entry) GetRaw(def []byte) []byte               { return getOr(e, def) }
func (e Entry) GetBooleanArray(def []bool) []bool      { return getOr(e, def) }
func (e Entry) GetDoubleArray(def []float64) []float64 { return getOr(e, def) }
func (e Entry) GetStringArray(def []string) []string   { return getOr(e, def) }

func (e Entry) invalid(op string) error {
	if e.inst != nil && e.inst.isClosed() {
		return errClosed(op)
	}
	return &Error{Code: ErrCodeInvalidState, Op: op, Message: "invalid entry"}
}

// SetValue stores v. An existing entry of another kind is left unchanged
// and a *value.TypeMismatchError is returned.
func (e Entry) SetValue(v value.Value) error {
	if !e.IsValid() || e.inst.isClosed() {
		return e.invalid("set value")
	}
	return wrapEngine("set value", e.inst.eng.SetEntryValue(e.handle, v))
}

// SetDefaultValue stores v if the entry does not exist. It reports whether
// the entry holds a value of v's kind afterwards.
func (e Entry) SetDefaultValue(v value.Value) bool {
	if !e.IsValid() || e.inst.isClosed() {
		return false
	}
	return e.inst.eng.SetDefaultEntryValue(e.handle, v)
}

// ForceSetValue stores v, changing the entry's kind if needed.
func (e Entry) ForceSetValue(v value.Value) error {
	if !e.IsValid() || e.inst.isClosed() {
		return e.invalid("force set value")
	}
	return wrapEngine("force set value", e.inst.eng.SetEntryTypeValue(e.handle, v))
}

func (e Entry) SetBoolean(b bool) error           { return e.SetValue(value.MakeBoolean(b)) }
func (e Entry) SetDouble(f float64) error         { return e.SetValue(value.MakeDouble(f)) }
func (e Entry) SetString(s string) error          { return e.SetValue(value.MakeString(s)) }
func (e Entry) SetRaw(b []byte) error             { return e.SetValue(value.MakeRaw(b)) }
func (e Entry) SetBooleanArray(b ...bool) error   { return e.SetValue(value.MakeBooleanArray(b...)) }
func (e Entry) SetDoubleArray(f ...float64) error { return e.SetValue(value.MakeDoubleArray(f...)) }
func (e Entry) SetStringArray(s ...string) error  { return e.SetValue(value.MakeStringArray(s...)) }

func (e Entry) SetDefaultBoolean(b bool) bool   { return e.SetDefaultValue(value.MakeBoolean(b)) }
func (e Entry) SetDefaultDouble(f float64) bool { return e.SetDefaultValue(value.MakeDouble(f)) }
func (e Entry) SetDefaultString(s string) bool  { return e.SetDefaultValue(value.MakeString(s)) }

// Delete removes the entry.
func (e Entry) Delete() {
	if e.IsValid() && !e.inst.isClosed() {
		e.inst.eng.DeleteEntry(e.handle)
	}
}

// AddListener calls cb for changes to this entry.
func (e Entry) AddListener(flags NotifyFlags, cb func(EntryEvent)) (Listener, error) {
	if !e.IsValid() {
		return 0, e.invalid("add entry listener")
	}
	return e.inst.AddEntryListenerEntry(e, flags, cb)
}

// CreateRpc serves this entry as an rpc.
func (e Entry) CreateRpc(def []byte, cb func(*RpcAnswer)) error {
	if !e.IsValid() {
		return e.invalid("create rpc")
	}
	return e.inst.CreateRpc(e, def, cb)
}

// CallRpc calls the rpc named by this entry.
func (e Entry) CallRpc(params []byte) (RpcCall, error) {
	if !e.IsValid() || e.inst.isClosed() {
		return RpcCall{}, e.invalid("call rpc")
	}
	call, err := e.inst.eng.CallRpc(e.handle, params)
	if err != nil {
		return RpcCall{}, wrapEngine("call rpc", err)
	}
	return RpcCall{entry: e, call: call}, nil
}
