// Package llm talks to annotation model backends. Three client kinds share
// one interface: ollama (native local server API), openai (hosted
// OpenAI-style API with enforced JSON response format), and vendor
// (commercial services with per-vendor endpoint quirks). Failures are
// classified into transport, auth, and timeout errors so callers can decide
// what is retryable.
package llm
