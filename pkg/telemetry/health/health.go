// Package health exposes liveness endpoints.
package health

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// Handler serves the health endpoints.
type Handler struct {
	version string
	started time.Time
}

// NewHandler creates a health handler reporting the given build version.
func NewHandler(version string) *Handler {
	return &Handler{
		version: version,
		started: time.Now(),
	}
}

// Register mounts the health routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.check)
	mux.HandleFunc("GET /health/detailed", h.detailed)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) detailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"system": map[string]any{
			"platform":   runtime.GOOS,
			"arch":       runtime.GOARCH,
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
		"components": map[string]string{
			"proxy":     "healthy",
			"telemetry": "healthy",
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
