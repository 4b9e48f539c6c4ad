package store

import (
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned when a file carries a schema version
// newer than this build understands.
var ErrUnsupportedVersion = errors.New("unsupported persistence file version")

// PersistentError reports an IO failure on a persistence file.
// It unwraps to the underlying error, so errors.Is(err, fs.ErrNotExist)
// works for missing files.
type PersistentError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistentError) Error() string {
	return fmt.Sprintf("persistent %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistentError) Unwrap() error {
	return e.Err
}

// IsPersistentError reports whether err wraps a *PersistentError.
func IsPersistentError(err error) bool {
	var pe *PersistentError
	return errors.As(err, &pe)
}
