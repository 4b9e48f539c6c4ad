package value

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch matches any *TypeMismatchError via errors.Is.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidArgument is returned for absent or unsupported construction input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// TypeMismatchError is returned by the typed accessors when the stored kind
// differs from the requested one.
type TypeMismatchError struct {
	Expected Kind
	Actual   Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Is lets errors.Is(err, ErrTypeMismatch) match any mismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// IsTypeMismatch reports whether err wraps a *TypeMismatchError and returns it.
func IsTypeMismatch(err error) (*TypeMismatchError, bool) {
	var tm *TypeMismatchError
	if errors.As(err, &tm) {
		return tm, true
	}
	return nil, false
}
