// Package middleware provides HTTP middleware for the proxy: request ID
// assignment, request logging, and panic recovery.
package middleware

// contextKey is a private type for context values set by this package.
type contextKey string

const (
	// requestIDKey carries the request ID through the request context.
	requestIDKey contextKey = "request_id"
)
