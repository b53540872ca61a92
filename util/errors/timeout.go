// Package errors classifies failures shared by the dashboard's transports
// and stores.
package errors

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TimeoutError represents a timeout during an operation against a target
// such as a history backend or an ingest address.
type TimeoutError struct {
	Operation string
	Target    string
	Err       error
}

// Error returns a human-readable error message.
func (e *TimeoutError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("timeout: %s on %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("timeout: %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation, target string, err error) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Target:    target,
		Err:       err,
	}
}

// IsTimeout reports whether err is a timeout error. It checks for TimeoutError,
// context.DeadlineExceeded, and gRPC DeadlineExceeded status codes.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.DeadlineExceeded
	}

	return false
}

// WrapTimeout returns err as a TimeoutError for operation on target when it
// is a timeout, and err unchanged otherwise.
func WrapTimeout(operation, target string, err error) error {
	if err == nil || !IsTimeout(err) {
		return err
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return err
	}
	return NewTimeoutError(operation, target, err)
}
