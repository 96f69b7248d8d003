// Package llm provides the Generation Service client: structured JSON
// completions against an OpenAI-compatible chat endpoint (OpenRouter by
// default).
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send a Prompt (system, user, temperature, optional JSON
// schema) and receive the raw JSON payload.
// Client.GenerateInto: Generate plus tolerant decoding into a Go value.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). A Retry-After header overrides the computed delay.
// Context cancellation aborts retries immediately.
//
// # Response Quirks
//
// Providers disagree on where the payload lives. The client accepts message
// content, streaming-style delta content, legacy text completions, function
// call arguments and tool call arguments, and strips Markdown code fences
// before decoding.
package llm
