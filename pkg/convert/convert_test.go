package convert

import (
	"encoding/json"
	"strings"
	"testing"

	"prismgate/pkg/config"
)

func chatRoute() config.Route {
	return config.Route{
		Path:         "/api/provider/openai/v1/responses",
		TargetURL:    "https://upstream.example.com/v1/responses",
		Method:       "POST",
		ResponseType: config.ResponseStream,
	}
}

func geminiRoute() config.Route {
	return config.Route{
		Path:         "/api/provider/google/v1/responses",
		TargetURL:    "https://upstream.example.com/v1beta/models",
		Method:       "POST",
		ResponseType: config.ResponseStream,
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		route config.Route
		body  string
		want  Kind
	}{
		{
			name:  "o3 model on responses route",
			route: chatRoute(),
			body:  `{"model":"o3-mini"}`,
			want:  KindChatCompletions,
		},
		{
			name:  "non-o3 model on responses route",
			route: chatRoute(),
			body:  `{"model":"gpt-4o"}`,
			want:  KindNone,
		},
		{
			name:  "google responses route",
			route: geminiRoute(),
			body:  `{"model":"gemini-pro"}`,
			want:  KindGemini,
		},
		{
			name:  "google responses route without model",
			route: geminiRoute(),
			body:  `{"input":[]}`,
			want:  KindNone,
		},
		{
			name: "plain chat completions route",
			route: config.Route{
				Path: "/api/provider/openai/v1/chat/completions",
			},
			body: `{"model":"o3-mini"}`,
			want: KindNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.route, []byte(tt.body)); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToChatCompletions(t *testing.T) {
	body := `{"model":"o3-mini","input":[{"role":"user","content":"hi"}],"stream":false,"temperature":0.2}`

	newBody, route, stream, err := ToChatCompletions([]byte(body), chatRoute())
	if err != nil {
		t.Fatalf("ToChatCompletions() error = %v", err)
	}
	if stream {
		t.Error("stream = true, want false")
	}

	var out map[string]any
	if err := json.Unmarshal(newBody, &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if out["model"] != "o3-mini" {
		t.Errorf("model = %v", out["model"])
	}
	if out["temperature"] != 0.2 {
		t.Errorf("temperature = %v", out["temperature"])
	}
	if _, ok := out["input"]; ok {
		t.Error("input key leaked into chat completions body")
	}

	msgs, ok := out["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("messages = %v", out["messages"])
	}
	msg := msgs[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "hi" {
		t.Errorf("message = %v", msg)
	}

	if !strings.Contains(route.TargetURL, "chat/completions") {
		t.Errorf("target not rewritten: %q", route.TargetURL)
	}
	if !strings.Contains(route.Path, "chat/completions") {
		t.Errorf("path not rewritten: %q", route.Path)
	}
	if route.ResponseType != config.ResponseStream {
		t.Errorf("response type = %q", route.ResponseType)
	}
}

func TestToChatCompletionsMapsTokenLimit(t *testing.T) {
	body := `{"model":"o3","max_completion_tokens":512,"input":[]}`

	newBody, _, _, err := ToChatCompletions([]byte(body), chatRoute())
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]any
	if err := json.Unmarshal(newBody, &out); err != nil {
		t.Fatal(err)
	}
	if out["max_tokens"] != float64(512) {
		t.Errorf("max_tokens = %v, want 512", out["max_tokens"])
	}
	if _, ok := out["max_completion_tokens"]; ok {
		t.Error("max_completion_tokens leaked into chat completions body")
	}
}

func TestToChatCompletionsRouteUnmodified(t *testing.T) {
	orig := chatRoute()
	body := `{"model":"o3-mini","input":[]}`

	if _, _, _, err := ToChatCompletions([]byte(body), orig); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(orig.TargetURL, "responses") {
		t.Errorf("original route mutated: %q", orig.TargetURL)
	}
}

func TestInputItemText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain string", `"hello"`, "hello"},
		{"text blocks", `[{"type":"input_text","text":"a"},{"text":"b"}]`, "ab"},
		{"content blocks", `[{"content":"a"},{"content":"b"}]`, "ab"},
		{"mixed blocks", `[{"text":"a"},{"content":"b"}]`, "ab"},
		{"fallback stringify", `{"weird":true}`, `{"weird":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := InputItem{Role: "user", Content: json.RawMessage(tt.content)}
			if got := it.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChatStreamDelta(t *testing.T) {
	var s ChatStream
	got := s.Convert(`{"id":"x","created":1,"model":"o3","choices":[{"delta":{"content":"ab"}}]}`)

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}

	var ev DeltaEvent
	if err := json.Unmarshal([]byte(got[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "response.output_text.delta" || ev.Delta != "ab" {
		t.Errorf("event = %+v", ev)
	}
}

func TestChatStreamLifecycle(t *testing.T) {
	var s ChatStream

	created := s.Convert(`{"id":"c1","created":10,"model":"o3-mini","choices":[{"delta":{"role":"assistant"}}]}`)
	if len(created) != 1 {
		t.Fatalf("first chunk produced %d events, want 1", len(created))
	}
	var ev ResponseEvent
	if err := json.Unmarshal([]byte(created[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "response.created" {
		t.Errorf("type = %q, want response.created", ev.Type)
	}
	if ev.Response.ID != "c1" || ev.Response.Object != "response" || ev.Response.Model != "o3-mini" {
		t.Errorf("response = %+v", ev.Response)
	}

	// A later role-only chunk is no longer the first and yields nothing.
	if got := s.Convert(`{"id":"c1","created":10,"model":"o3-mini","choices":[{"delta":{}}]}`); got != nil {
		t.Errorf("repeat empty chunk produced %v", got)
	}

	done := s.Convert(`{"id":"c1","created":10,"model":"o3-mini","choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"total_tokens":7}}`)
	if len(done) != 1 {
		t.Fatalf("finish chunk produced %d events, want 1", len(done))
	}
	if err := json.Unmarshal([]byte(done[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "response.completed" {
		t.Errorf("type = %q, want response.completed", ev.Type)
	}
	if string(ev.Response.Usage) != `{"total_tokens":7}` {
		t.Errorf("usage = %s", ev.Response.Usage)
	}
}

func TestChatStreamSentinelAndGarbage(t *testing.T) {
	var s ChatStream

	if got := s.Convert("[DONE]"); len(got) != 1 || got[0] != "[DONE]" {
		t.Errorf("sentinel not passed through: %v", got)
	}
	if got := s.Convert("not json"); got != nil {
		t.Errorf("garbage produced events: %v", got)
	}
	if got := s.Convert(`{"object":"thread.run"}`); got != nil {
		t.Errorf("unrecognized shape produced events: %v", got)
	}
}

func TestToGemini(t *testing.T) {
	body := `{"model":"gemini-pro","stream":false,"input":[{"role":"system","content":"be terse"},{"role":"user","content":"hi"}]}`

	newBody, route, stream, err := ToGemini([]byte(body), geminiRoute())
	if err != nil {
		t.Fatalf("ToGemini() error = %v", err)
	}
	if stream {
		t.Error("stream = true, want false")
	}

	var out geminiRequest
	if err := json.Unmarshal(newBody, &out); err != nil {
		t.Fatal(err)
	}

	if out.SystemInstruction == nil || out.SystemInstruction.Parts[0].Text != "be terse" {
		t.Errorf("systemInstruction = %+v", out.SystemInstruction)
	}
	if len(out.Contents) != 1 {
		t.Fatalf("contents = %+v", out.Contents)
	}
	if out.Contents[0].Role != "user" || out.Contents[0].Parts[0].Text != "hi" {
		t.Errorf("contents[0] = %+v", out.Contents[0])
	}

	if route.TargetURL != "https://upstream.example.com/v1beta/models/gemini-pro:generateContent" {
		t.Errorf("target = %q", route.TargetURL)
	}
	if route.ResponseType != config.ResponseJSON {
		t.Errorf("response type = %q", route.ResponseType)
	}
}

func TestToGeminiStreaming(t *testing.T) {
	body := `{"model":"gemini-pro","stream":true,"temperature":0.5,"max_completion_tokens":256,"top_p":0.9,"top_k":40,"input":[{"role":"user","content":"hi"}]}`

	newBody, route, stream, err := ToGemini([]byte(body), geminiRoute())
	if err != nil {
		t.Fatal(err)
	}
	if !stream {
		t.Error("stream = false, want true")
	}
	if !strings.HasSuffix(route.TargetURL, "gemini-pro:streamGenerateContent") {
		t.Errorf("target = %q", route.TargetURL)
	}
	if route.ResponseType != config.ResponseSSE {
		t.Errorf("response type = %q", route.ResponseType)
	}

	var out geminiRequest
	if err := json.Unmarshal(newBody, &out); err != nil {
		t.Fatal(err)
	}
	gc := out.GenerationConfig
	if gc == nil {
		t.Fatal("generationConfig missing")
	}
	if *gc.Temperature != 0.5 || *gc.MaxOutputTokens != 256 || *gc.TopP != 0.9 || *gc.TopK != 40 {
		t.Errorf("generationConfig = %+v", gc)
	}
}

func TestToGeminiAssistantRole(t *testing.T) {
	body := `{"model":"gemini-pro","input":[{"role":"assistant","content":"earlier answer"}]}`

	newBody, _, _, err := ToGemini([]byte(body), geminiRoute())
	if err != nil {
		t.Fatal(err)
	}

	var out geminiRequest
	if err := json.Unmarshal(newBody, &out); err != nil {
		t.Fatal(err)
	}
	if out.Contents[0].Role != "model" {
		t.Errorf("role = %q, want model", out.Contents[0].Role)
	}
}

func TestToGeminiOmitsEmptyGenerationConfig(t *testing.T) {
	body := `{"model":"gemini-pro","input":[{"role":"user","content":"hi"}]}`

	newBody, _, _, err := ToGemini([]byte(body), geminiRoute())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(newBody), "generationConfig") {
		t.Errorf("generationConfig present in %s", newBody)
	}
}

func TestToGeminiWithoutModelPassesThrough(t *testing.T) {
	orig := geminiRoute()
	body := `{"input":[{"role":"user","content":"hi"}]}`

	newBody, route, _, err := ToGemini([]byte(body), orig)
	if err != nil {
		t.Fatal(err)
	}
	if string(newBody) != body {
		t.Errorf("body rewritten without model: %s", newBody)
	}
	if route.TargetURL != orig.TargetURL {
		t.Errorf("route rewritten without model: %q", route.TargetURL)
	}
}

func TestGeminiStream(t *testing.T) {
	s := NewGeminiStream("gemini-pro")

	first := s.Convert(`{"candidates":[{"content":{"parts":[{"text":"hel"},{"text":"lo"}]}}]}`)
	if len(first) != 2 {
		t.Fatalf("first chunk produced %d events, want created+delta", len(first))
	}

	var created ResponseEvent
	if err := json.Unmarshal([]byte(first[0]), &created); err != nil {
		t.Fatal(err)
	}
	if created.Type != "response.created" || created.Response.Model != "gemini-pro" {
		t.Errorf("created = %+v", created)
	}
	if created.Response.ID == "" {
		t.Error("created event has no response id")
	}

	var delta DeltaEvent
	if err := json.Unmarshal([]byte(first[1]), &delta); err != nil {
		t.Fatal(err)
	}
	if delta.Delta != "hello" {
		t.Errorf("delta = %q, want concatenated parts", delta.Delta)
	}

	second := s.Convert(`{"candidates":[{"content":{"parts":[{"text":"!"}]}}]}`)
	if len(second) != 1 {
		t.Fatalf("second chunk produced %d events, want delta only", len(second))
	}

	last := s.Convert(`{"candidates":[{"content":{"parts":[]},"finishReason":"STOP"}],"usageMetadata":{"totalTokenCount":12}}`)
	if len(last) != 1 {
		t.Fatalf("finish chunk produced %d events, want 1", len(last))
	}
	var completed ResponseEvent
	if err := json.Unmarshal([]byte(last[0]), &completed); err != nil {
		t.Fatal(err)
	}
	if completed.Type != "response.completed" {
		t.Errorf("type = %q", completed.Type)
	}
	if string(completed.Response.Usage) != `{"totalTokenCount":12}` {
		t.Errorf("usage = %s", completed.Response.Usage)
	}
	if completed.Response.ID != created.Response.ID {
		t.Error("lifecycle events carry different response ids")
	}
}

func TestGeminiStreamDropsCandidatelessChunks(t *testing.T) {
	s := NewGeminiStream("gemini-pro")

	if got := s.Convert(`{"promptFeedback":{}}`); got != nil {
		t.Errorf("candidateless chunk produced %v", got)
	}
	if got := s.Convert("not json"); got != nil {
		t.Errorf("garbage produced %v", got)
	}
}
