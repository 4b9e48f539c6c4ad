package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHandle is returned for handles the engine does not know,
	// including pollers whose instance was destroyed. It is a hard failure.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrPollCancelled is returned by a poll unblocked by CancelPoll*.
	ErrPollCancelled = errors.New("poll cancelled")

	// ErrAddressInUse is returned by StartServer when another instance of
	// the same engine already serves the address.
	ErrAddressInUse = errors.New("address in use")

	// ErrNoRpcServer is returned by CallRpc for entries nobody serves.
	ErrNoRpcServer = errors.New("no rpc server")
)

// HandleError reports an operation attempted on an invalid handle.
type HandleError struct {
	Op     string
	Handle uint32
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("%s: %v %d", e.Op, ErrInvalidHandle, e.Handle)
}

func (e *HandleError) Unwrap() error {
	return ErrInvalidHandle
}

func invalid[H ~uint32](op string, h H) error {
	return &HandleError{Op: op, Handle: uint32(h)}
}
