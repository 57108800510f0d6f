package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "error with type and message",
			err:      &APIError{Type: ErrorTypeInvalidRequest, Message: "bad request"},
			expected: "invalid_request: bad request",
		},
		{
			name:     "error with type, code, and message",
			err:      &APIError{Type: ErrorTypeAuthentication, Code: ErrorCodeInvalidAPIKey, Message: "bad key"},
			expected: "authentication (invalid_api_key): bad key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"invalid request", &APIError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication error", &APIError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"permission error", &APIError{Type: ErrorTypePermission}, http.StatusForbidden},
		{"not found error", &APIError{Type: ErrorTypeNotFound}, http.StatusNotFound},
		{"method not allowed", &APIError{Type: ErrorTypeMethodNotAllowed}, http.StatusMethodNotAllowed},
		{"unsupported media type", &APIError{Type: ErrorTypeUnsupportedMediaType}, http.StatusUnsupportedMediaType},
		{"server error", &APIError{Type: ErrorTypeServer}, http.StatusInternalServerError},
		{"unknown error type", &APIError{Type: ErrorType("unknown")}, http.StatusInternalServerError},
		{"explicit status code", &APIError{Type: ErrorTypeInvalidRequest, StatusCode: http.StatusConflict}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Chaining(t *testing.T) {
	err := NewAPIError(ErrorTypeInvalidRequest, "test").
		WithCode(ErrorCodeInvalidBatchPart).
		WithStatusCode(http.StatusConflict)

	if err.Type != ErrorTypeInvalidRequest {
		t.Errorf("Type = %v, want %v", err.Type, ErrorTypeInvalidRequest)
	}
	if err.Code != ErrorCodeInvalidBatchPart {
		t.Errorf("Code = %v, want %v", err.Code, ErrorCodeInvalidBatchPart)
	}
	if err.HTTPStatusCode() != http.StatusConflict {
		t.Errorf("HTTPStatusCode() = %d, want %d", err.HTTPStatusCode(), http.StatusConflict)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func(string) *APIError
		expectedType ErrorType
	}{
		{"ErrInvalidRequest", ErrInvalidRequest, ErrorTypeInvalidRequest},
		{"ErrAuthentication", ErrAuthentication, ErrorTypeAuthentication},
		{"ErrNotFound", ErrNotFound, ErrorTypeNotFound},
		{"ErrServer", ErrServer, ErrorTypeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("message")
			if err.Type != tt.expectedType {
				t.Errorf("Type = %v, want %v", err.Type, tt.expectedType)
			}
			if err.Code != "" {
				t.Errorf("Code = %v, want empty", err.Code)
			}
			if err.Message != "message" {
				t.Errorf("Message = %q, want %q", err.Message, "message")
			}
		})
	}
}

func TestAPIError_Response(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	resp := ErrNotFound("nothing here").Response(req)

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if resp.Request != req {
		t.Error("response should reference the request")
	}

	body, _ := io.ReadAll(resp.Body)
	if int64(len(body)) != resp.ContentLength {
		t.Errorf("ContentLength = %d, body is %d bytes", resp.ContentLength, len(body))
	}
	var decoded struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Error.Type != "not_found" || decoded.Error.Message != "nothing here" {
		t.Errorf("body = %s", body)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse(nil, http.StatusAccepted, nil)
	if resp.Status != "202 Accepted" {
		t.Errorf("Status = %q", resp.Status)
	}
	if resp.ContentLength != 0 {
		t.Errorf("ContentLength = %d, want 0", resp.ContentLength)
	}
	if resp.Header == nil {
		t.Error("Header should be initialized")
	}
}

func TestPanicError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &PanicError{Value: inner}
	if !errors.Is(err, inner) {
		t.Error("PanicError should unwrap an error value")
	}
	if got := (&PanicError{Value: "text"}).Unwrap(); got != nil {
		t.Errorf("Unwrap() = %v, want nil", got)
	}
	if got := err.Error(); got != "panic: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsCanceled(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped", fmt.Errorf("send: %w", context.Canceled), true},
		{"fault", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCanceled(tt.err); got != tt.want {
				t.Errorf("IsCanceled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArgumentError(t *testing.T) {
	if got := (&ArgumentError{Name: "req"}).Error(); got != `invalid argument "req": cannot be nil` {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ArgumentError{Name: "limit", Reason: "must be positive"}).Error(); got != `invalid argument "limit": must be positive` {
		t.Errorf("Error() = %q", got)
	}
}
