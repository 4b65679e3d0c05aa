// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses.
// Every handler answers through it so status codes, headers and the error
// envelope stay consistent.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"household/internal/core"
)

// ErrorBody is the envelope for every non-2xx response.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"response encoding failed","kind":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorResponse creates a standard error envelope.
func ErrorResponse(statusCode int, kind, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Kind: kind})
}

// ErrorFromErr maps a domain error to its status and envelope.
func ErrorFromErr(err error) *JSONResponseBuilder {
	status, kind := classifyError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return ErrorResponse(status, kind, msg)
}

// classifyError maps the core sentinels onto HTTP statuses.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, core.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrIO):
		return http.StatusBadGateway, "io"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "too many requests").
		Header("Retry-After", "60")
}

// ServiceUnavailableError creates a 503 response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, "unavailable", message)
}
