// Package llm scores article relevance through an OpenAI-compatible chat
// completion API.
//
// Client sends JSON-mode completions and tolerates the usual provider
// quirks: code-fenced payloads, tool-call arguments instead of content, and
// the streaming delta schema on non-streaming responses. It retries HTTP
// 408/429/5xx and network timeouts with exponential backoff, honoring
// Retry-After, and stops as soon as the context is done.
//
// Scorer renders the configured prompt template (tier labels and include
// keywords substituted), submits one article per call, and decodes a
// {"score": <label>, "reason": <text>} payload. MockScorer assigns tiers from
// include keyword hits for dry runs without an API key.
package llm
