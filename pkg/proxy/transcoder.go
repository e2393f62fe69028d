package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"prismgate/pkg/config"
	"prismgate/pkg/sse"
)

// streamCopyBufferSize is the chunk size for incremental relay.
const streamCopyBufferSize = 32 * 1024

// Transcoder relays upstream responses to the client according to the
// route's response type.
type Transcoder struct {
	logger *slog.Logger
}

// NewTranscoder creates a transcoder.
func NewTranscoder(logger *slog.Logger) *Transcoder {
	return &Transcoder{logger: logger}
}

// Transcode writes the upstream response to the client. The response body
// is consumed; the caller retains ownership of closing it.
func (t *Transcoder) Transcode(w http.ResponseWriter, resp *http.Response, route config.Route) error {
	switch route.ResponseType {
	case config.ResponseJSON:
		return t.writeJSON(w, resp, route)
	case config.ResponseHTML:
		return t.writeHTML(w, resp, route)
	case config.ResponseStream:
		return t.writeStream(w, resp, route)
	case config.ResponseSSE:
		return t.writeSSE(w, resp, route)
	default:
		return fmt.Errorf("unknown response type %q", route.ResponseType)
	}
}

// writeJSON buffers the body and re-emits it as JSON. A body that does not
// parse as JSON is returned verbatim as text/plain with the upstream
// status, so plain-text upstream error bodies are not swallowed.
func (t *Transcoder) writeJSON(w http.ResponseWriter, resp *http.Response, route config.Route) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Cause: err}
	}

	if !json.Valid(body) {
		t.forwardHeaders(w, resp, route, false)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		return nil
	}

	t.forwardHeaders(w, resp, route, false)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
	return nil
}

// writeHTML buffers the body as text. Content-type is forced to text/html
// first and forwarded headers are applied afterward, so an upstream
// content-type in the forward list still wins.
func (t *Transcoder) writeHTML(w http.ResponseWriter, resp *http.Response, route config.Route) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Cause: err}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	t.forwardHeaders(w, resp, route, false)
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
	return nil
}

// writeStream relays the body incrementally when the upstream speaks a
// streaming content type, otherwise falls back to a single buffered
// re-emit.
func (t *Transcoder) writeStream(w http.ResponseWriter, resp *http.Response, route config.Route) error {
	contentType := resp.Header.Get("Content-Type")
	streaming := strings.Contains(contentType, "text/event-stream") ||
		strings.Contains(contentType, "application/stream")

	if !streaming {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Cause: err}
		}
		t.forwardHeaders(w, resp, route, false)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		return nil
	}

	t.forwardHeaders(w, resp, route, true)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, streamCopyBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				t.logger.Warn("upstream stream aborted", "error", err)
			}
			return nil
		}
	}
}

// writeSSE re-frames the body as server-sent events, one data line per
// parsed payload.
func (t *Transcoder) writeSSE(w http.ResponseWriter, resp *http.Response, route config.Route) error {
	return t.writeSSEConverted(w, resp, route, nil)
}

// writeSSEConverted is writeSSE with an optional per-event converter
// applied between parsing and re-emission.
func (t *Transcoder) writeSSEConverted(w http.ResponseWriter, resp *http.Response, route config.Route, convert func(string) []string) error {
	t.forwardHeaders(w, resp, route, true)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)

	emit := func(payloads []string) bool {
		for _, p := range payloads {
			if convert != nil {
				for _, c := range convert(p) {
					if _, err := fmt.Fprintf(w, "data: %s\n\n", c); err != nil {
						return false
					}
				}
			} else if _, err := fmt.Fprintf(w, "data: %s\n\n", p); err != nil {
				return false
			}
		}
		if len(payloads) > 0 && flusher != nil {
			flusher.Flush()
		}
		return true
	}

	var framer sse.Framer
	buf := make([]byte, streamCopyBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if !emit(framer.Feed(buf[:n])) {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				emit(framer.Flush())
			} else {
				t.logger.Warn("upstream event stream aborted", "error", err)
			}
			return nil
		}
	}
}

// forwardHeaders copies the route's forwarded response headers to the
// client. Hop-specific headers are dropped on streaming relays.
func (t *Transcoder) forwardHeaders(w http.ResponseWriter, resp *http.Response, route config.Route, filterHop bool) {
	for _, name := range route.ForwardResponseHeaders {
		if filterHop {
			lower := strings.ToLower(name)
			if lower == "connection" || lower == "transfer-encoding" {
				continue
			}
		}
		if values, ok := resp.Header[http.CanonicalHeaderKey(name)]; ok {
			w.Header().Del(name)
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
	}
}
