// Prismgate is a configurable reverse proxy for LLM provider APIs.
//
// It maps local endpoints onto OpenAI-compatible, Anthropic, Google
// Gemini, and relay upstreams, providing:
//   - Per-route header forwarding, injection, and credential pinning
//   - Streaming (SSE) and buffered response relay
//   - Protocol conversion between the Responses API and upstreams that
//     speak Chat Completions or Gemini generateContent
//   - Retry with exponential backoff for transient upstream failures
//
// Usage:
//
//	# Start with the built-in default endpoint table
//	prismgate run
//
//	# Start with a configuration file
//	prismgate run --config /etc/prismgate/config.yaml
//
//	# Check a configuration file without starting
//	prismgate validate --config config.yaml
//
//	# Show version information
//	prismgate version
package main

func main() {
	Execute()
}
