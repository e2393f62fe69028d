// Package proxy implements the request pipeline: route matching, protocol
// conversion, upstream forwarding, and response transcoding.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Wire-level error types carried in the response envelope.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeAPI            = "api_error"
	ErrorTypeConnection     = "connection_error"
	ErrorTypeTimeout        = "timeout_error"
	ErrorTypeServer         = "server_error"
	ErrorTypeConversion     = "conversion_error"
)

// upstreamFailureMessage replaces upstream error bodies. Bodies of non-2xx
// upstream responses are never forwarded to the caller.
const upstreamFailureMessage = "The upstream provider returned an error"

// InvalidRequestError represents a malformed inbound request.
type InvalidRequestError struct {
	// Message describes what is invalid about the request
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *InvalidRequestError) Unwrap() error {
	return e.Cause
}

// UpstreamError represents a non-2xx response from an upstream provider.
// The upstream body is retained for logging but never forwarded.
type UpstreamError struct {
	// Status is the HTTP status code the upstream returned
	Status int

	// Body is the upstream response body, kept for diagnostics only
	Body string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// NetworkError represents a transport-level failure reaching the upstream.
type NetworkError struct {
	// Cause is the underlying transport error
	Cause error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents an upstream request that exceeded its deadline.
type TimeoutError struct {
	// Timeout is the deadline that was exceeded
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream request timed out after %s", e.Timeout)
}

// ConversionError represents a body shape a protocol converter could not
// handle. Request-side failures are client errors; response-side failures
// indicate upstream drift and are server errors.
type ConversionError struct {
	// RequestSide is true when the inbound request body failed to convert
	RequestSide bool

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// errorEnvelope is the JSON error body returned to callers.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// classify maps an error to its HTTP status, wire type, and caller-visible
// message.
func classify(err error) (status int, errType, message string) {
	var invalidErr *InvalidRequestError
	if errors.As(err, &invalidErr) {
		return http.StatusBadRequest, ErrorTypeInvalidRequest, invalidErr.Message
	}

	var convErr *ConversionError
	if errors.As(err, &convErr) {
		if convErr.RequestSide {
			return http.StatusBadRequest, ErrorTypeConversion, convErr.Message
		}
		return http.StatusInternalServerError, ErrorTypeConversion, convErr.Message
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return http.StatusGatewayTimeout, ErrorTypeTimeout, timeoutErr.Error()
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return http.StatusBadGateway, ErrorTypeAPI, upstreamFailureMessage
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return http.StatusBadGateway, ErrorTypeConnection, upstreamFailureMessage
	}

	return http.StatusInternalServerError, ErrorTypeServer,
		"An internal error occurred. Please try again later."
}

// WriteError writes an error to the client as a JSON envelope with the
// status code matching the error's classification.
func WriteError(w http.ResponseWriter, err error) {
	status, errType, message := classify(err)
	writeErrorEnvelope(w, status, errType, message)
}

func writeErrorEnvelope(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Type:      errType,
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}
