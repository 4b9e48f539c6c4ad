package value

// Shape is the set of Go types a Value can be read back as.
type Shape interface {
	bool | float64 | string | []byte | []bool | []float64 | []string
}

// TryGet returns the payload as T when the kind matches T's shape.
// Unlike the Get* accessors it never returns an error: a mismatch, including
// any read of an Unassigned value, yields the zero T and false.
// []byte maps to Raw only; Rpc payloads are read with GetRpc.
func TryGet[T Shape](v Value) (T, bool) {
	var zero T
	var out any
	switch any(zero).(type) {
	case bool:
		p, ok := v.p.(boolPayload)
		if !ok {
			return zero, false
		}
		out = bool(p)
	case float64:
		p, ok := v.p.(doublePayload)
		if !ok {
			return zero, false
		}
		out = float64(p)
	case string:
		p, ok := v.p.(stringPayload)
		if !ok {
			return zero, false
		}
		out = string(p)
	case []byte:
		p, ok := v.p.(rawPayload)
		if !ok {
			return zero, false
		}
		out = clone(p)
	case []bool:
		p, ok := v.p.(boolArrayPayload)
		if !ok {
			return zero, false
		}
		out = clone(p)
	case []float64:
		p, ok := v.p.(doubleArrayPayload)
		if !ok {
			return zero, false
		}
		out = clone(p)
	case []string:
		p, ok := v.p.(stringArrayPayload)
		if !ok {
			return zero, false
		}
		out = clone(p)
	default:
		return zero, false
	}
	return out.(T), true
}
