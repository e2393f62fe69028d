// Package mock serves the client-support endpoints that live alongside
// the proxy: user profile, connections, thread sync, internal RPC, error
// reporting, and telemetry ingestion. They return canned data so clients
// work against a local gateway without a real backend.
package mock

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Handler serves the mock endpoints.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a mock endpoint handler.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Register mounts the mock routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/user", h.userInfo)
	mux.HandleFunc("GET /api/connections", h.connections)
	mux.HandleFunc("POST /api/threads/sync", h.syncThread)
	mux.HandleFunc("POST /api/internal", h.internal)
	mux.HandleFunc("POST /api/errors", h.errorReport)
	mux.HandleFunc("POST /api/telemetry", h.telemetry)
}

func (h *Handler) userInfo(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, map[string]any{
		"id":                uuid.NewString(),
		"username":          "USER_001",
		"email":             "user_001@any.com",
		"firstName":         "Any",
		"lastName":          "User",
		"displayName":       "Any User",
		"emailVerified":     true,
		"profilePictureUrl": "https://picsum.photos/200",
		"lastSignInAt":      now,
		"createdAt":         now,
		"updatedAt":         now,
		"siteAdmin":         true,
		"subscriptions":     []any{},
		"plan": map[string]any{
			"type": "free",
			"name": "Free Plan",
			"limits": map[string]any{
				"monthlyUsage": 0,
				"monthlyLimit": 100,
			},
		},
	})
}

func (h *Handler) connections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, []map[string]any{
		{
			"id":          uuid.NewString(),
			"name":        "GitHub",
			"type":        "github",
			"status":      "connected",
			"connectedAt": time.Now().UTC().Format(time.RFC3339),
			"username":    "USER_001",
		},
		{
			"id":          uuid.NewString(),
			"name":        "GitLab",
			"type":        "gitlab",
			"status":      "disconnected",
			"connectedAt": nil,
			"username":    nil,
		},
	})
}

type threadMeta struct {
	ID string `json:"id"`
}

type syncThreadRequest struct {
	ThreadVersions []string      `json:"threadVersions"`
	ThreadMetas    []*threadMeta `json:"threadMetas"`
}

func (h *Handler) syncThread(w http.ResponseWriter, r *http.Request) {
	var req syncThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.logger.Debug("thread sync requested", "versions", len(req.ThreadVersions))

	if len(req.ThreadMetas) == 0 || req.ThreadMetas[0] == nil || req.ThreadMetas[0].ID == "" {
		writeJSON(w, map[string]any{"threadActions": []any{}})
		return
	}

	writeJSON(w, map[string]any{
		"threadActions": []map[string]any{
			{
				"id":     req.ThreadMetas[0].ID,
				"action": "meta",
				"meta": map[string]bool{
					"private": false,
					"public":  false,
				},
			},
		},
	})
}

type internalRequest struct {
	Method string `json:"method"`
	Params struct {
		Thread struct {
			ID       string            `json:"id"`
			Title    string            `json:"title"`
			Messages []json.RawMessage `json:"messages"`
		} `json:"thread"`
	} `json:"params"`
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request) {
	var req internalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	method := r.URL.Query().Get("method")
	if method == "" {
		method = req.Method
	}

	switch method {
	case "uploadThread":
		h.logger.Debug("thread upload received",
			"thread_id", req.Params.Thread.ID,
			"title", req.Params.Thread.Title,
			"messages", len(req.Params.Thread.Messages))
		writeJSON(w, map[string]any{"ok": true})

	case "getUser":
		writeJSON(w, map[string]any{
			"id":            uuid.NewString(),
			"username":      "USER_001",
			"email":         "user_001@any.com",
			"firstName":     "Any",
			"lastName":      "User",
			"emailVerified": true,
		})

	default:
		h.logger.Debug("unknown internal method", "method", method)
		writeJSON(w, map[string]any{"ok": true})
	}
}

type errorReport struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Stack    string `json:"stack"`
	ThreadID string `json:"threadId"`
}

func (h *Handler) errorReport(w http.ResponseWriter, r *http.Request) {
	var report errorReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.logger.Warn("client error reported",
		"type", report.Type,
		"message", report.Message,
		"thread_id", report.ThreadID)
	if report.Stack != "" {
		h.logger.Warn("client error stack", "stack", report.Stack)
	}

	writeJSON(w, map[string]any{"status": "received"})
}

func (h *Handler) telemetry(w http.ResponseWriter, r *http.Request) {
	var events []map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"message":   "ok",
		"published": len(events),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
