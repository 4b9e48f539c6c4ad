package value

import (
	"encoding/json"
	"fmt"
	"math"
)

// wireValue is the JSON shape of a Value: {"type":"double","value":1.5}.
// Raw and Rpc payloads are base64 encoded by encoding/json. Non-finite
// doubles, alone or inside an array, are written as the strings "NaN",
// "+Inf" and "-Inf".
type wireValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Type: v.Kind().String()}
	if v.p != nil {
		data, err := json.Marshal(wireObject(v))
		if err != nil {
			return nil, fmt.Errorf("marshal %s value: %w", v.Kind(), err)
		}
		w.Value = data
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded Value receives a
// fresh creation stamp.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	k, err := ParseKind(w.Type)
	if err != nil {
		return err
	}
	if k == KindUnassigned {
		*v = MakeEmpty()
		return nil
	}
	if len(w.Value) == 0 {
		return fmt.Errorf("%w: %s value missing", ErrInvalidArgument, k)
	}

	built, err := decodeKind(k, w.Value)
	if err != nil {
		return fmt.Errorf("decode %s value: %w", k, err)
	}
	*v = built
	return nil
}

func decodeKind(k Kind, raw json.RawMessage) (Value, error) {
	switch k {
	case KindBoolean:
		return decodeAs(raw, MakeBoolean)
	case KindDouble:
		return decodeAs(raw, func(f jsonFloat) Value { return MakeDouble(float64(f)) })
	case KindString:
		return decodeAs(raw, MakeString)
	case KindRaw:
		return decodeAs(raw, MakeRaw)
	case KindRpc:
		return decodeAs(raw, MakeRpc)
	case KindBooleanArray:
		return decodeAs(raw, func(b []bool) Value { return MakeBooleanArray(b...) })
	case KindDoubleArray:
		return decodeAs(raw, func(fs []jsonFloat) Value {
			out := make([]float64, len(fs))
			for i, f := range fs {
				out[i] = float64(f)
			}
			return MakeDoubleArray(out...)
		})
	case KindStringArray:
		return decodeAs(raw, func(s []string) Value { return MakeStringArray(s...) })
	default:
		return Value{}, fmt.Errorf("%w: kind %s", ErrInvalidArgument, k)
	}
}

func decodeAs[T any](raw json.RawMessage, build func(T) Value) (Value, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return Value{}, err
	}
	return build(out), nil
}

// jsonFloat is a float64 that survives JSON when it is NaN or infinite.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	x := float64(f)
	switch {
	case math.IsNaN(x):
		return []byte(`"NaN"`), nil
	case math.IsInf(x, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(x, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(x)
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "NaN":
			*f = jsonFloat(math.NaN())
		case "+Inf", "Inf":
			*f = jsonFloat(math.Inf(1))
		case "-Inf":
			*f = jsonFloat(math.Inf(-1))
		default:
			return fmt.Errorf("%w: double %q", ErrInvalidArgument, s)
		}
		return nil
	}
	var x float64
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	*f = jsonFloat(x)
	return nil
}

// wireObject is ObjectValue with doubles wrapped for non-finite encoding.
func wireObject(v Value) any {
	switch p := v.p.(type) {
	case doublePayload:
		return jsonFloat(p)
	case doubleArrayPayload:
		out := make([]jsonFloat, len(p))
		for i, f := range p {
			out[i] = jsonFloat(f)
		}
		return out
	}
	return v.ObjectValue()
}
