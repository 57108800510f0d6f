// Package domain provides the core types shared by the dispatch pipeline.
package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates an authentication failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypePermission indicates a permission/authorization failure.
	ErrorTypePermission ErrorType = "permission"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeMethodNotAllowed indicates the route exists but not for the method.
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"

	// ErrorTypeUnsupportedMediaType indicates the request body has an unsupported media type.
	ErrorTypeUnsupportedMediaType ErrorType = "unsupported_media_type"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeMissingContent     ErrorCode = "missing_content"
	ErrorCodeMissingContentType ErrorCode = "missing_content_type"
	ErrorCodeUnsupportedBatch   ErrorCode = "unsupported_batch_media_type"
	ErrorCodeInvalidBatchPart   ErrorCode = "invalid_batch_part"
	ErrorCodeTooManyParts       ErrorCode = "too_many_batch_parts"
	ErrorCodeInvalidAPIKey      ErrorCode = "invalid_api_key"
	ErrorCodeInvalidValue       ErrorCode = "invalid_value"
)

// APIError is a client-visible error. Actions and filters return it to
// produce an error response; the dispatcher treats it as a response rather
// than a fault.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// StatusCode is the suggested HTTP status code
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorTypeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code to the error.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// Response renders the error as a JSON response for req.
func (e *APIError) Response(req *http.Request) *http.Response {
	body, err := json.Marshal(struct {
		Error *APIError `json:"error"`
	}{Error: e})
	if err != nil {
		body = []byte(`{"error":{"type":"server","message":"failed to encode error"}}`)
	}
	resp := NewResponse(req, e.HTTPStatusCode(), body)
	resp.Header.Set("Content-Type", "application/json; charset=utf-8")
	return resp
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// NewResponse builds a complete in-memory response with a known length.
func NewResponse(req *http.Request, status int, body []byte) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// ArgumentError reports a missing or invalid argument. It is returned before
// any work starts.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid argument %q: cannot be nil", e.Name)
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Name, e.Reason)
}

// InvalidStateError reports an operation attempted in a state that cannot
// support it.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Message
}

// InvalidEnumError reports an out-of-range enumeration value.
type InvalidEnumError struct {
	Name  string
	Value int
	Type  string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("the value of argument %q (%d) is invalid for enum type %q", e.Name, e.Value, e.Type)
}

// PanicError is a fault produced by recovering a panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsCanceled reports whether err represents cancellation rather than a fault.
// Canceled outcomes are never logged or handled.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
