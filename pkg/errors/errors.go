// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Pulser.
// Every failure in the router core is a value; nothing here terminates the process.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Pulser errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeConfig indicates a configuration error: unknown provider or model,
	// missing credential.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeTransport indicates a transport failure: non-2xx HTTP status,
	// non-zero subprocess exit, network error.
	CodeTransport ErrorCode = "TRANSPORT_ERROR"

	// CodePersistence indicates a context store failure: malformed or
	// unreadable stored record.
	CodePersistence ErrorCode = "PERSISTENCE_ERROR"

	// CodeExhausted indicates every generation tier failed.
	CodeExhausted ErrorCode = "EXHAUSTED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// PulserError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type PulserError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *PulserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *PulserError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *PulserError) MarshalJSON() ([]byte, error) {
	out := struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
	}{
		Message:     e.Message,
		Code:        string(e.Code),
		Recoverable: e.Recoverable,
		Context:     e.Context,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new PulserError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *PulserError {
	return &PulserError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *PulserError) WithContext(key string, value interface{}) *PulserError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *PulserError) WithRecoverable(recoverable bool) *PulserError {
	e.Recoverable = recoverable
	return e
}

// AsPulserError attempts to convert an error to a PulserError.
// Returns the error as PulserError if it is one, or wraps it otherwise.
func AsPulserError(err error) *PulserError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PulserError); ok {
		return pe
	}
	return New(CodeInternal, "wrapped error", err)
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *PulserError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
