// Package convert translates between the OpenAI Responses API surface and
// the wire protocols of upstreams that do not speak it: OpenAI-style Chat
// Completions and Google Gemini generateContent. Each converter rewrites
// the outbound request body and route, and reconstructs Responses-style
// events from the upstream's reply.
package convert

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"prismgate/pkg/config"
)

// Kind identifies which converter, if any, applies to a request.
type Kind int

const (
	// KindNone means the request is forwarded as-is.
	KindNone Kind = iota

	// KindChatCompletions bridges Responses requests onto a Chat
	// Completions upstream.
	KindChatCompletions

	// KindGemini bridges Responses requests onto a Gemini
	// generateContent upstream.
	KindGemini
)

// chatModelPrefix restricts the Chat Completions bridge to the model
// family that has no native Responses endpoint upstream.
const chatModelPrefix = "o3"

// Detect decides which converter applies to a request, based on the route
// and a cheap sniff of the body. Requests that need no conversion return
// KindNone.
func Detect(route config.Route, body []byte) Kind {
	if !strings.Contains(route.Path, "responses") {
		return KindNone
	}

	if strings.Contains(route.Path, "/provider/google/") {
		if gjson.GetBytes(body, "model").String() == "" {
			return KindNone
		}
		return KindGemini
	}

	if strings.HasPrefix(gjson.GetBytes(body, "model").String(), chatModelPrefix) {
		return KindChatCompletions
	}

	return KindNone
}

// ResponsesRequest is the inbound Responses-API request body, limited to
// the fields the converters carry across.
type ResponsesRequest struct {
	Model               string      `json:"model"`
	Stream              bool        `json:"stream"`
	Temperature         *float64    `json:"temperature,omitempty"`
	TopP                *float64    `json:"top_p,omitempty"`
	TopK                *int        `json:"top_k,omitempty"`
	MaxCompletionTokens *int        `json:"max_completion_tokens,omitempty"`
	Input               []InputItem `json:"input"`
}

// InputItem is one conversation turn. Content is either a plain string or
// an array of content blocks; it is flattened to text on conversion.
type InputItem struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Text flattens the item's content to a single string: a JSON string is
// used verbatim, an array of blocks has each block's text or content field
// concatenated, and anything else falls back to its raw JSON.
func (it InputItem) Text() string {
	var s string
	if err := json.Unmarshal(it.Content, &s); err == nil {
		return s
	}

	var blocks []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(it.Content, &blocks); err == nil {
		var sb strings.Builder
		for _, b := range blocks {
			sb.WriteString(b.Text)
			sb.WriteString(b.Content)
		}
		return sb.String()
	}

	return string(it.Content)
}

// Event types of the Responses streaming envelope.
const (
	eventCreated   = "response.created"
	eventTextDelta = "response.output_text.delta"
	eventCompleted = "response.completed"
)

// DeltaEvent carries one increment of generated text.
type DeltaEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

// ResponseEvent wraps response lifecycle events (created, completed).
type ResponseEvent struct {
	Type     string          `json:"type"`
	Response ResponseSummary `json:"response"`
}

// ResponseSummary is the response object embedded in lifecycle events.
type ResponseSummary struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

func marshalEvent(v any) (string, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}
