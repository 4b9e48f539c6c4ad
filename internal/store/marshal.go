package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/ntcore/internal/value"
)

// marshalValue converts a Value to JSON TEXT for storage.
func marshalValue(v value.Value) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses JSON TEXT and checks it against the kind column.
func unmarshalValue(kind, data string) (value.Value, error) {
	want, err := value.ParseKind(kind)
	if err != nil {
		return value.Value{}, err
	}
	var v value.Value
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return value.Value{}, fmt.Errorf("unmarshal value: %w", err)
	}
	if v.Kind() != want {
		return value.Value{}, &value.TypeMismatchError{Expected: want, Actual: v.Kind()}
	}
	return v, nil
}
