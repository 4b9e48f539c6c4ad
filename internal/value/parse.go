package value

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Parse builds a Value of kind k from its command-line text form.
//
//	boolean        true | false | 1 | 0
//	double         any strconv.ParseFloat input
//	string         taken verbatim
//	raw, rpc       hex digits
//	*_array        comma separated elements; empty text is an empty array
func Parse(k Kind, text string) (Value, error) {
	switch k {
	case KindBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("%w: boolean %q", ErrInvalidArgument, text)
		}
		return MakeBoolean(b), nil
	case KindDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: double %q", ErrInvalidArgument, text)
		}
		return MakeDouble(f), nil
	case KindString:
		return MakeString(text), nil
	case KindRaw, KindRpc:
		b, err := hex.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("%w: hex %q", ErrInvalidArgument, text)
		}
		if k == KindRpc {
			return MakeRpc(b), nil
		}
		return MakeRaw(b), nil
	case KindBooleanArray:
		elems, err := parseElems(text, func(s string) (bool, error) { return strconv.ParseBool(s) })
		if err != nil {
			return Value{}, err
		}
		return MakeBooleanArray(elems...), nil
	case KindDoubleArray:
		elems, err := parseElems(text, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		if err != nil {
			return Value{}, err
		}
		return MakeDoubleArray(elems...), nil
	case KindStringArray:
		elems, _ := parseElems(text, func(s string) (string, error) { return s, nil })
		return MakeStringArray(elems...), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot parse kind %s", ErrInvalidArgument, k)
	}
}

func parseElems[T any](text string, conv func(string) (T, error)) ([]T, error) {
	if strings.TrimSpace(text) == "" {
		return []T{}, nil
	}
	parts := strings.Split(text, ",")
	out := make([]T, 0, len(parts))
	for i, part := range parts {
		v, err := conv(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: element %d %q", ErrInvalidArgument, i, part)
		}
		out = append(out, v)
	}
	return out, nil
}
