package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so every transport maps them to the same status.
type ErrorKind int

const (
	// KindProcessing marks a failure while running a model, parser or encoder.
	KindProcessing ErrorKind = iota
	// KindInvalidInput marks a request the caller has to fix.
	KindInvalidInput
)

func (k ErrorKind) String() string {
	if k == KindInvalidInput {
		return "invalid input"
	}
	return "processing"
}

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op   string
	Kind ErrorKind
	Msg  string
	Err  error
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

// NewAppError constructs a processing AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Kind: KindProcessing, Msg: msg, Err: err}
}

// InvalidInput constructs an AppError the caller is responsible for.
func InvalidInput(op, msg string) error {
	return &AppError{Op: op, Kind: KindInvalidInput, Msg: msg}
}

// KindOf reports the kind of err, treating anything that is not an AppError as a processing failure.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindProcessing
}

// Message returns the human-facing message carried by err. For AppErrors that is Msg
// (plus the cause for processing failures); otherwise the full error string.
func Message(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Kind == KindProcessing && appErr.Err != nil {
		return fmt.Sprintf("%s: %v", appErr.Msg, appErr.Err)
	}
	return appErr.Msg
}
