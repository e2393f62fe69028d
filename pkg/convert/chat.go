package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"prismgate/pkg/config"
	"prismgate/pkg/sse"
)

// chatRequest is the Chat Completions request body built from a Responses
// request.
type chatRequest struct {
	Model       string        `json:"model"`
	Stream      bool          `json:"stream"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatChunk is one Chat Completions streaming chunk.
type chatChunk struct {
	ID      string          `json:"id"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []chatChoice    `json:"choices"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

type chatChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// ToChatCompletions rewrites a Responses request for a Chat Completions
// upstream. It returns the new body, a route copy pointing at the
// chat/completions path, and whether the caller asked for streaming.
func ToChatCompletions(body []byte, route config.Route) ([]byte, config.Route, bool, error) {
	var req ResponsesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, route, false, fmt.Errorf("failed to parse request body: %w", err)
	}

	out := chatRequest{
		Model:       req.Model,
		Stream:      req.Stream,
		MaxTokens:   req.MaxCompletionTokens,
		Temperature: req.Temperature,
		Messages:    make([]chatMessage, 0, len(req.Input)),
	}
	for _, item := range req.Input {
		out.Messages = append(out.Messages, chatMessage{
			Role:    item.Role,
			Content: item.Text(),
		})
	}

	newBody, err := json.Marshal(out)
	if err != nil {
		return nil, route, false, fmt.Errorf("failed to encode request body: %w", err)
	}

	rewritten := route.WithTarget(
		strings.Replace(route.TargetURL, "responses", "chat/completions", 1),
		config.ResponseStream,
	)
	rewritten.Path = strings.Replace(route.Path, "responses", "chat/completions", 1)

	return newBody, rewritten, req.Stream, nil
}

// ChatStream converts a Chat Completions SSE stream back into Responses
// events. One instance serves one upstream stream; it is not safe for
// concurrent use.
type ChatStream struct {
	seenFirst bool
}

// Convert maps one upstream payload to zero or more Responses event
// payloads. The [DONE] sentinel passes through verbatim; chunks with an
// unrecognized shape are dropped.
func (s *ChatStream) Convert(payload string) []string {
	if payload == sse.Done {
		return []string{sse.Done}
	}

	var chunk chatChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil
	}

	first := !s.seenFirst
	if chunk.ID != "" && len(chunk.Choices) > 0 {
		s.seenFirst = true
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		if ev, ok := marshalEvent(DeltaEvent{
			Type:  eventTextDelta,
			Delta: choice.Delta.Content,
		}); ok {
			return []string{ev}
		}
		return nil
	}

	if choice.FinishReason != nil {
		if ev, ok := marshalEvent(ResponseEvent{
			Type: eventCompleted,
			Response: ResponseSummary{
				ID:      chunk.ID,
				Object:  "response",
				Created: chunk.Created,
				Model:   chunk.Model,
				Usage:   chunk.Usage,
			},
		}); ok {
			return []string{ev}
		}
		return nil
	}

	if first && chunk.ID != "" {
		if ev, ok := marshalEvent(ResponseEvent{
			Type: eventCreated,
			Response: ResponseSummary{
				ID:      chunk.ID,
				Object:  "response",
				Created: chunk.Created,
				Model:   chunk.Model,
			},
		}); ok {
			return []string{ev}
		}
	}

	return nil
}
