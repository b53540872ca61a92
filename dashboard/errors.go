package dashboard

import (
	"errors"
	"fmt"

	"github.com/xiaonanln/dtnview/telemetry"
)

var (
	// ErrMalformedRecord is wrapped by every error that rejects a single
	// telemetry record.
	ErrMalformedRecord = errors.New("malformed telemetry record")
	// ErrNotConfigured is returned for telemetry that needs the relay
	// configuration before any configuration has been received.
	ErrNotConfigured = errors.New("relay configuration not received yet")
	// ErrUnknownWire is returned when a manual x-drop names a wire that is
	// not in the current scene.
	ErrUnknownWire = errors.New("unknown wire")
)

// RecordError describes why a record was rejected. Index is the offending
// entry within the record, or -1 when the record as a whole is at fault.
type RecordError struct {
	Kind   telemetry.RecordKind
	Index  int
	Reason string
}

func (e *RecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s record: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s record entry %d: %s", e.Kind, e.Index, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

func recordError(kind telemetry.RecordKind, index int, format string, args ...interface{}) error {
	return &RecordError{Kind: kind, Index: index, Reason: fmt.Sprintf(format, args...)}
}
