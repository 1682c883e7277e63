package utils

import (
	"errors"
	"fmt"
)

// Fatal run conditions surfaced in terminal failure snapshots.
var (
	// ErrEmptyLog signals that ingestion produced zero events, so no timespan
	// can be established.
	ErrEmptyLog = errors.New("event log is empty")
	// ErrCancelled signals that the run was cancelled or timed out before the
	// outcome stream was exhausted.
	ErrCancelled = errors.New("run cancelled")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// IngestionError marks a malformed or unreadable log source.
func IngestionError(msg string, err error) error {
	return &AppError{Op: "ingest", Msg: msg, Err: err}
}

// AlgorithmError marks a failure raised by the detection or explanation
// collaborators.
func AlgorithmError(msg string, err error) error {
	return &AppError{Op: "algorithm", Msg: msg, Err: err}
}

// UpstreamError marks a failure of an external dependency such as the broker
// or the marker store.
func UpstreamError(msg string, err error) error {
	return &AppError{Op: "upstream", Msg: msg, Err: err}
}

// InternalError marks a programming or serialization failure.
func InternalError(msg string, err error) error {
	return &AppError{Op: "internal", Msg: msg, Err: err}
}
