// Package apierr is the error taxonomy shared by the client-side core.
//
//   - ValidationError: rejected on the client, never reaches the network.
//   - RequestError: transport failure, no response was received.
//   - BackendError: a response arrived with a non-success status.
//   - DecodeError: a success response arrived but its body could not be read or understood. The
//     backend may have acted on the request.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// FallbackMessage is used when the backend gives no message of its own.
const FallbackMessage = "API request failed"

type ValidationError struct {
	// Fields maps a form field name to its message. May be empty for non-field errors.
	Fields  map[string]string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func Invalid(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func InvalidField(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}, Message: message}
}

type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

type DecodeError struct {
	Op     string
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: unreadable %d response: %v", e.Op, e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type BackendError struct {
	Op      string
	Status  int
	Message string
}

// Error is the backend's message verbatim so it can be shown to the user as-is.
func (e *BackendError) Error() string {
	if e.Message == "" {
		return FallbackMessage
	}
	return e.Message
}

func (e *BackendError) HTTPStatusCode() int { return e.Status }

// IsUnauthorized reports whether err is a BackendError carrying 401.
func IsUnauthorized(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Status == http.StatusUnauthorized
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsRequest(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// FieldErrors returns the field map of a ValidationError, or nil.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
