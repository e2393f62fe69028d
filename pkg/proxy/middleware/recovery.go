package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Recovery recovers from panics in downstream handlers, logs the panic
// with its stack trace, and returns a 500 response in the standard error
// envelope. Internal details are never exposed to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(r.Context())
				stack := debug.Stack()

				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(stack),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w,
					`{"error":{"type":"server_error","message":"An internal error occurred. Please try again later.","timestamp":%q}}`,
					time.Now().UTC().Format(time.RFC3339))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
