package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"prismgate/pkg/config"
	"prismgate/pkg/convert"
	"prismgate/pkg/proxy/middleware"
)

// bodyPreviewLimit caps the request body excerpt included in logs.
const bodyPreviewLimit = 512

// AuditEntry describes one proxied request for the audit trail.
type AuditEntry struct {
	RequestID string
	Path      string
	Target    string
	Method    string
	Model     string
	Status    int
	Converted bool
	Stream    bool
	Duration  time.Duration
}

// AuditSink receives audit entries. Implementations must not block the
// request path.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry)
}

// Dispatcher is the proxy's request pipeline: route matching, optional
// protocol conversion, upstream forwarding, and response transcoding.
type Dispatcher struct {
	tables     *config.TableHolder
	forwarder  *Forwarder
	transcoder *Transcoder
	logger     *slog.Logger
	audit      AuditSink
}

// NewDispatcher creates a dispatcher. audit may be nil.
func NewDispatcher(tables *config.TableHolder, forwarder *Forwarder, transcoder *Transcoder, logger *slog.Logger, audit AuditSink) *Dispatcher {
	return &Dispatcher{
		tables:     tables,
		forwarder:  forwarder,
		transcoder: transcoder,
		logger:     logger,
		audit:      audit,
	}
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	route, ok := d.tables.Current().Lookup(r.URL.Path)
	if !ok {
		writeErrorEnvelope(w, http.StatusNotFound, ErrorTypeInvalidRequest,
			"no route configured for this path")
		return
	}
	if r.Method != route.Method {
		writeErrorEnvelope(w, http.StatusMethodNotAllowed, ErrorTypeInvalidRequest,
			"method not allowed for this path")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, &InvalidRequestError{Message: "failed to read request body", Cause: err})
		return
	}

	model := gjson.GetBytes(body, "model").String()
	stream := gjson.GetBytes(body, "stream").Bool()

	d.logger.Info("proxying request",
		"method", r.Method,
		"path", route.Path,
		"target", route.TargetURL,
		"model", model,
		"stream", stream,
		"body_preview", preview(body))

	kind := convert.Detect(route, body)
	switch kind {
	case convert.KindChatCompletions:
		body, route, stream, err = convert.ToChatCompletions(body, route)
	case convert.KindGemini:
		body, route, stream, err = convert.ToGemini(body, route)
	}
	if err != nil {
		WriteError(w, &ConversionError{RequestSide: true, Message: err.Error(), Cause: err})
		return
	}
	if kind != convert.KindNone {
		d.logger.Debug("request converted",
			"path", route.Path,
			"target", route.TargetURL,
			"stream", stream)
	}

	resp, err := d.forwarder.Forward(r.Context(), route, r.Header, body)
	if err != nil {
		d.logger.Error("upstream request failed",
			"path", route.Path,
			"target", route.TargetURL,
			"error", err)
		WriteError(w, err)
		d.record(r, route, model, statusFor(err), kind, stream, start)
		return
	}
	defer resp.Body.Close()

	switch {
	case kind != convert.KindNone && stream:
		err = d.transcoder.writeSSEConverted(w, resp, route, streamConverter(kind, model))
	case kind != convert.KindNone:
		// Non-streaming converted responses pass through unchanged.
		err = d.transcoder.writeJSON(w, resp, route)
	default:
		err = d.transcoder.Transcode(w, resp, route)
	}
	if err != nil {
		d.logger.Error("response transcoding failed",
			"path", route.Path,
			"error", err)
		WriteError(w, err)
		d.record(r, route, model, statusFor(err), kind, stream, start)
		return
	}

	d.record(r, route, model, resp.StatusCode, kind, stream, start)
}

// streamConverter returns the per-event response converter for a
// conversion kind.
func streamConverter(kind convert.Kind, model string) func(string) []string {
	switch kind {
	case convert.KindChatCompletions:
		s := &convert.ChatStream{}
		return s.Convert
	case convert.KindGemini:
		return convert.NewGeminiStream(model).Convert
	default:
		return nil
	}
}

func (d *Dispatcher) record(r *http.Request, route config.Route, model string, status int, kind convert.Kind, stream bool, start time.Time) {
	if d.audit == nil {
		return
	}
	d.audit.Record(r.Context(), AuditEntry{
		RequestID: middleware.GetRequestID(r.Context()),
		Path:      route.Path,
		Target:    route.TargetURL,
		Method:    route.Method,
		Model:     model,
		Status:    status,
		Converted: kind != convert.KindNone,
		Stream:    stream,
		Duration:  time.Since(start),
	})
}

// statusFor returns the client-facing status an error classifies to.
func statusFor(err error) int {
	status, _, _ := classify(err)
	return status
}

// preview returns a log-safe excerpt of a request body.
func preview(body []byte) string {
	if len(body) <= bodyPreviewLimit {
		return string(body)
	}
	return string(body[:bodyPreviewLimit]) + "..."
}
