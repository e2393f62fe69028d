package convert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"prismgate/pkg/config"
	"prismgate/pkg/sse"
)

// geminiRequest is the generateContent request body built from a Responses
// request.
type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
}

// geminiChunk is one streamGenerateContent chunk.
type geminiChunk struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata json.RawMessage   `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason *string       `json:"finishReason"`
}

// ToGemini rewrites a Responses request for a Gemini upstream. The route's
// target URL is treated as the models base; the rewritten route points at
// {base}/{model}:generateContent, or the streaming variant when the caller
// asked for a stream. A request without a model is returned untouched so
// the upstream can reject it.
func ToGemini(body []byte, route config.Route) ([]byte, config.Route, bool, error) {
	var req ResponsesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, route, false, fmt.Errorf("failed to parse request body: %w", err)
	}
	if req.Model == "" {
		return body, route, req.Stream, nil
	}

	out := geminiRequest{
		Contents: make([]geminiContent, 0, len(req.Input)),
	}

	var system []string
	for _, item := range req.Input {
		if item.Role == "system" {
			system = append(system, item.Text())
			continue
		}
		role := "user"
		if item.Role == "assistant" {
			role = "model"
		}
		out.Contents = append(out.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: item.Text()}},
		})
	}
	if len(system) > 0 {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}

	if req.Temperature != nil || req.MaxCompletionTokens != nil || req.TopP != nil || req.TopK != nil {
		out.GenerationConfig = &geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxCompletionTokens,
			TopP:            req.TopP,
			TopK:            req.TopK,
		}
	}

	newBody, err := json.Marshal(out)
	if err != nil {
		return nil, route, false, fmt.Errorf("failed to encode request body: %w", err)
	}

	verb := "generateContent"
	respType := config.ResponseJSON
	if req.Stream {
		verb = "streamGenerateContent"
		respType = config.ResponseSSE
	}
	base := strings.TrimSuffix(route.TargetURL, "/")

	rewritten := route.WithTarget(
		fmt.Sprintf("%s/%s:%s", base, req.Model, verb),
		respType,
	)
	rewritten.Path = fmt.Sprintf("%s/%s:%s", strings.TrimSuffix(route.Path, "/"), req.Model, verb)

	return newBody, rewritten, req.Stream, nil
}

// GeminiStream converts a streamGenerateContent SSE stream back into
// Responses events. One instance serves one upstream stream; it is not
// safe for concurrent use.
type GeminiStream struct {
	model   string
	id      string
	created int64
	started bool
}

// NewGeminiStream returns a stream converter for one upstream response.
// Gemini chunks carry no response identity, so one is minted here and held
// constant across the stream's lifecycle events.
func NewGeminiStream(model string) *GeminiStream {
	return &GeminiStream{
		model:   model,
		id:      "resp_" + uuid.NewString(),
		created: time.Now().Unix(),
	}
}

// Convert maps one upstream payload to zero or more Responses event
// payloads. The first chunk carrying candidates additionally yields a
// response.created event; chunks with an unrecognized shape are dropped.
func (s *GeminiStream) Convert(payload string) []string {
	if payload == sse.Done {
		return []string{sse.Done}
	}

	var chunk geminiChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil
	}
	if len(chunk.Candidates) == 0 {
		return nil
	}

	var events []string

	if !s.started {
		s.started = true
		if ev, ok := marshalEvent(ResponseEvent{
			Type: eventCreated,
			Response: ResponseSummary{
				ID:      s.id,
				Object:  "response",
				Created: s.created,
				Model:   s.model,
			},
		}); ok {
			events = append(events, ev)
		}
	}

	cand := chunk.Candidates[0]

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() > 0 {
		if ev, ok := marshalEvent(DeltaEvent{
			Type:  eventTextDelta,
			Delta: text.String(),
		}); ok {
			events = append(events, ev)
		}
	}

	if cand.FinishReason != nil {
		if ev, ok := marshalEvent(ResponseEvent{
			Type: eventCompleted,
			Response: ResponseSummary{
				ID:      s.id,
				Object:  "response",
				Created: s.created,
				Model:   s.model,
				Usage:   chunk.UsageMetadata,
			},
		}); ok {
			events = append(events, ev)
		}
	}

	return events
}
