package nt

import (
	"errors"
	"fmt"

	"github.com/roach88/ntcore/internal/value"
)

// ErrorCode categorizes errors returned by this package.
type ErrorCode string

const (
	// ErrCodeInvalidState indicates an operation on a closed instance or a
	// listener category that is shutting down.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeEngineFailure indicates a failure reported by the engine.
	ErrCodeEngineFailure ErrorCode = "ENGINE_FAILURE"

	// ErrCodeInvalidArgument indicates malformed input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error is returned by Instance, Entry and Table operations.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failed operation.
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}

// IsInvalidState returns true if err is an INVALID_STATE error.
// Uses errors.As to handle wrapped errors.
func IsInvalidState(err error) bool {
	return hasCode(err, ErrCodeInvalidState)
}

// IsEngineFailure returns true if err is an ENGINE_FAILURE error.
func IsEngineFailure(err error) bool {
	return hasCode(err, ErrCodeEngineFailure)
}

// IsInvalidArgument returns true if err is an INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

func errClosed(op string) *Error {
	return &Error{Code: ErrCodeInvalidState, Op: op, Message: "instance is closed"}
}

// wrapEngine classifies an error returned by the engine. Type mismatches
// are returned unchanged; they are the caller's contract violation.
func wrapEngine(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, value.ErrTypeMismatch):
		return err
	case errors.Is(err, value.ErrInvalidArgument):
		return &Error{Code: ErrCodeInvalidArgument, Op: op, Err: err}
	default:
		return &Error{Code: ErrCodeEngineFailure, Op: op, Err: err}
	}
}
