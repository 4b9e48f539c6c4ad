package value

import (
	"fmt"
	"reflect"
	"strconv"
)

// payload is the sealed variant storage. Only the types below implement it.
type payload interface {
	kind() Kind
}

type boolPayload bool
type doublePayload float64
type stringPayload string
type rawPayload []byte
type rpcPayload []byte
type boolArrayPayload []bool
type doubleArrayPayload []float64
type stringArrayPayload []string

func (boolPayload) kind() Kind        { return KindBoolean }
func (doublePayload) kind() Kind      { return KindDouble }
func (stringPayload) kind() Kind      { return KindString }
func (rawPayload) kind() Kind         { return KindRaw }
func (rpcPayload) kind() Kind         { return KindRpc }
func (boolArrayPayload) kind() Kind   { return KindBooleanArray }
func (doubleArrayPayload) kind() Kind { return KindDoubleArray }
func (stringArrayPayload) kind() Kind { return KindStringArray }

// Value is an immutable tagged value.
//
// The zero Value is Unassigned. Values are only built through the Make*
// factories (or FromAny and Parse), which copy any slice input.
type Value struct {
	p         payload
	createdAt int64
}

func newValue(p payload) Value {
	return Value{p: p, createdAt: stamps.Next()}
}

// clone always returns a fresh, non-nil slice.
func clone[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// MakeEmpty returns an Unassigned value carrying a creation stamp.
func MakeEmpty() Value {
	return newValue(nil)
}

// MakeBoolean creates a Boolean value.
func MakeBoolean(b bool) Value {
	return newValue(boolPayload(b))
}

// MakeDouble creates a Double value.
func MakeDouble(f float64) Value {
	return newValue(doublePayload(f))
}

// MakeString creates a String value.
func MakeString(s string) Value {
	return newValue(stringPayload(s))
}

// MakeRaw creates a Raw value from a copy of b.
func MakeRaw(b []byte) Value {
	return newValue(rawPayload(clone(b)))
}

// MakeRpc creates an Rpc value from a copy of b.
func MakeRpc(b []byte) Value {
	return newValue(rpcPayload(clone(b)))
}

// MakeRpcN creates an Rpc value from the first size bytes of b.
// It returns ok=false, not an error, when size is out of range.
func MakeRpcN(b []byte, size int) (Value, bool) {
	if size < 0 || size > len(b) {
		return Value{}, false
	}
	return newValue(rpcPayload(clone(b[:size]))), true
}

// MakeBooleanArray creates a BooleanArray value from a copy of vals.
func MakeBooleanArray(vals ...bool) Value {
	return newValue(boolArrayPayload(clone(vals)))
}

// MakeDoubleArray creates a DoubleArray value from a copy of vals.
func MakeDoubleArray(vals ...float64) Value {
	return newValue(doubleArrayPayload(clone(vals)))
}

// MakeStringArray creates a StringArray value from a copy of vals.
func MakeStringArray(vals ...string) Value {
	return newValue(stringArrayPayload(clone(vals)))
}

// FromAny builds a Value from a Go value of one of the supported shapes.
// A nil input, a nil *string or an unsupported type yields ErrInvalidArgument.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Value{}, fmt.Errorf("%w: nil value", ErrInvalidArgument)
	case Value:
		return val, nil
	case bool:
		return MakeBoolean(val), nil
	case float64:
		return MakeDouble(val), nil
	case string:
		return MakeString(val), nil
	case *string:
		if val == nil {
			return Value{}, fmt.Errorf("%w: nil string", ErrInvalidArgument)
		}
		return MakeString(*val), nil
	case []byte:
		return MakeRaw(val), nil
	case []bool:
		return MakeBooleanArray(val...), nil
	case []float64:
		return MakeDoubleArray(val...), nil
	case []string:
		return MakeStringArray(val...), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidArgument, v)
	}
}

// SupportedShapes lists the Go types accepted by FromAny and TryGet.
func SupportedShapes() []reflect.Type {
	return []reflect.Type{
		reflect.TypeFor[float64](),
		reflect.TypeFor[bool](),
		reflect.TypeFor[string](),
		reflect.TypeFor[[]byte](),
		reflect.TypeFor[[]bool](),
		reflect.TypeFor[[]float64](),
		reflect.TypeFor[[]string](),
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	if v.p == nil {
		return KindUnassigned
	}
	return v.p.kind()
}

// CreatedAt returns the logical stamp assigned at construction.
func (v Value) CreatedAt() int64 {
	return v.createdAt
}

func (v Value) IsUnassigned() bool   { return v.Kind() == KindUnassigned }
func (v Value) IsBoolean() bool      { return v.Kind() == KindBoolean }
func (v Value) IsDouble() bool       { return v.Kind() == KindDouble }
func (v Value) IsString() bool       { return v.Kind() == KindString }
func (v Value) IsRaw() bool          { return v.Kind() == KindRaw }
func (v Value) IsRpc() bool          { return v.Kind() == KindRpc }
func (v Value) IsBooleanArray() bool { return v.Kind() == KindBooleanArray }
func (v Value) IsDoubleArray() bool  { return v.Kind() == KindDoubleArray }
func (v Value) IsStringArray() bool  { return v.Kind() == KindStringArray }

func (v Value) mismatch(expected Kind) error {
	return &TypeMismatchError{Expected: expected, Actual: v.Kind()}
}

// GetBoolean returns the stored bool or a *TypeMismatchError.
func (v Value) GetBoolean() (bool, error) {
	p, ok := v.p.(boolPayload)
	if !ok {
		return false, v.mismatch(KindBoolean)
	}
	return bool(p), nil
}

// GetDouble returns the stored float64 or a *TypeMismatchError.
func (v Value) GetDouble() (float64, error) {
	p, ok := v.p.(doublePayload)
	if !ok {
		return 0, v.mismatch(KindDouble)
	}
	return float64(p), nil
}

// GetString returns the stored string or a *TypeMismatchError.
func (v Value) GetString() (string, error) {
	p, ok := v.p.(stringPayload)
	if !ok {
		return "", v.mismatch(KindString)
	}
	return string(p), nil
}

// GetRaw returns a copy of the stored bytes or a *TypeMismatchError.
func (v Value) GetRaw() ([]byte, error) {
	p, ok := v.p.(rawPayload)
	if !ok {
		return nil, v.mismatch(KindRaw)
	}
	return clone(p), nil
}

// GetRpc returns a copy of the stored rpc definition bytes or a *TypeMismatchError.
func (v Value) GetRpc() ([]byte, error) {
	p, ok := v.p.(rpcPayload)
	if !ok {
		return nil, v.mismatch(KindRpc)
	}
	return clone(p), nil
}

// GetBooleanArray returns a copy of the stored array or a *TypeMismatchError.
func (v Value) GetBooleanArray() ([]bool, error) {
	p, ok := v.p.(boolArrayPayload)
	if !ok {
		return nil, v.mismatch(KindBooleanArray)
	}
	return clone(p), nil
}

// GetDoubleArray returns a copy of the stored array or a *TypeMismatchError.
func (v Value) GetDoubleArray() ([]float64, error) {
	p, ok := v.p.(doubleArrayPayload)
	if !ok {
		return nil, v.mismatch(KindDoubleArray)
	}
	return clone(p), nil
}

// GetStringArray returns a copy of the stored array or a *TypeMismatchError.
func (v Value) GetStringArray() ([]string, error) {
	p, ok := v.p.(stringArrayPayload)
	if !ok {
		return nil, v.mismatch(KindStringArray)
	}
	return clone(p), nil
}

// ObjectValue returns the payload as a plain Go value.
// Slice kinds are returned as copies; Unassigned returns nil.
func (v Value) ObjectValue() any {
	switch p := v.p.(type) {
	case nil:
		return nil
	case boolPayload:
		return bool(p)
	case doublePayload:
		return float64(p)
	case stringPayload:
		return string(p)
	case rawPayload:
		return clone(p)
	case rpcPayload:
		return clone(p)
	case boolArrayPayload:
		return clone(p)
	case doubleArrayPayload:
		return clone(p)
	case stringArrayPayload:
		return clone(p)
	default:
		panic(fmt.Sprintf("value: unknown payload %T", p))
	}
}

// String formats the payload for display.
func (v Value) String() string {
	switch p := v.p.(type) {
	case nil:
		return "Unassigned"
	case boolPayload:
		return strconv.FormatBool(bool(p))
	case doublePayload:
		return strconv.FormatFloat(float64(p), 'g', -1, 64)
	case stringPayload:
		return string(p)
	case rawPayload, rpcPayload:
		return fmt.Sprintf("%x", p)
	default:
		return fmt.Sprint(p)
	}
}
