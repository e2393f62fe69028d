package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prismgate/pkg/config"
)

func upstreamResponse(status int, contentType, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func transcodeRoute(rt config.ResponseType) config.Route {
	return config.Route{
		Path:                   "/api/test",
		Method:                 "POST",
		ResponseType:           rt,
		ForwardResponseHeaders: []string{"content-type", "x-ratelimit-remaining", "connection", "transfer-encoding"},
	}
}

func TestTranscodeJSON(t *testing.T) {
	tr := NewTranscoder(testLogger())
	resp := upstreamResponse(200, "application/json", `{"ok":true}`)
	resp.Header.Set("X-Ratelimit-Remaining", "42")

	w := httptest.NewRecorder()
	if err := tr.Transcode(w, resp, transcodeRoute(config.ResponseJSON)); err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}

	if w.Code != 200 {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	if w.Header().Get("X-Ratelimit-Remaining") != "42" {
		t.Error("forwarded response header missing")
	}
	if w.Body.String() != `{"ok":true}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

// Plain-text upstream error bodies must come back verbatim, not be
// swallowed by the JSON parse.
func TestTranscodeJSONNonJSONFallback(t *testing.T) {
	tr := NewTranscoder(testLogger())
	resp := upstreamResponse(207, "text/plain", "upstream says nope")

	w := httptest.NewRecorder()
	if err := tr.Transcode(w, resp, transcodeRoute(config.ResponseJSON)); err != nil {
		t.Fatal(err)
	}

	if w.Code != 207 {
		t.Errorf("status = %d, want original 207", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content-type = %q, want text/plain", ct)
	}
	if w.Body.String() != "upstream says nope" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestTranscodeHTML(t *testing.T) {
	tr := NewTranscoder(testLogger())
	route := transcodeRoute(config.ResponseHTML)
	route.ForwardResponseHeaders = []string{"x-ratelimit-remaining"}
	resp := upstreamResponse(200, "application/octet-stream", "<html></html>")

	w := httptest.NewRecorder()
	if err := tr.Transcode(w, resp, route); err != nil {
		t.Fatal(err)
	}

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type = %q, want forced text/html", ct)
	}
}

func TestTranscodeHTMLForwardedContentTypeWins(t *testing.T) {
	tr := NewTranscoder(testLogger())
	resp := upstreamResponse(200, "application/xhtml+xml", "<html></html>")

	w := httptest.NewRecorder()
	if err := tr.Transcode(w, resp, transcodeRoute(config.ResponseHTML)); err != nil {
		t.Fatal(err)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/xhtml+xml" {
		t.Errorf("content-type = %q, want upstream value via forward list", ct)
	}
}

func TestTranscodeStreamPassThrough(t *testing.T) {
	tr := NewTranscoder(testLogger())
	resp := upstreamResponse(200, "text/event-stream", "data: a\n\ndata: b\n\n")
	resp.Header.Set("Connection", "keep-alive")
	resp.Header.Set("Transfer-Encoding", "chunked")

	w := httptest.NewRecorder()
	if err := tr.Transcode(w, resp, transcodeRoute(config.ResponseStream)); err != nil {
		t.Fatal(err)
	}

	if w.Body.String() != "data: a\n\ndata: b\n\n" {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("Connection") != "" || w.Header().Get("Transfer-Encoding") != "" {
		t.Error("hop-specific headers leaked through streaming relay")
	}
}

func TestTranscodeStreamBuffersNonStreamingBody(t *testing.T) {
	tr := NewTranscoder(testLogger())
	resp := upstreamResponse(200, "application/json", `{"choices":[]}`)

	w := httptest.NewRecorder()
	if err := tr.Transcode(w, resp, transcodeRoute(config.ResponseStream)); err != nil {
		t.Fatal(err)
	}

	if w.Body.String() != `{"choices":[]}` {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestTranscodeSSE(t *testing.T) {
	tr := NewTranscoder(testLogger())
	resp := upstreamResponse(200, "text/event-stream",
		"data: {\"a\":1}\n\ndata:{\"b\":2}\n\ndata: [DONE]\n\n")

	w := httptest.NewRecorder()
	if err := tr.Transcode(w, resp, transcodeRoute(config.ResponseSSE)); err != nil {
		t.Fatal(err)
	}

	want := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n"
	if w.Body.String() != want {
		t.Errorf("body = %q, want %q", w.Body.String(), want)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestTranscodeSSEConverted(t *testing.T) {
	tr := NewTranscoder(testLogger())
	resp := upstreamResponse(200, "text/event-stream", "data: a\n\ndata: drop\n\n")

	convert := func(p string) []string {
		if p == "drop" {
			return nil
		}
		return []string{p + "!"}
	}

	w := httptest.NewRecorder()
	if err := tr.writeSSEConverted(w, resp, transcodeRoute(config.ResponseSSE), convert); err != nil {
		t.Fatal(err)
	}

	if w.Body.String() != "data: a!\n\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}
