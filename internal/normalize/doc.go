// Package normalize turns raw model output into structured annotations.
//
// Backends return free text whose format varies by vendor: fenced code
// blocks, <think> reasoning preambles, prose around the JSON, wrapper
// objects, or nothing usable at all. Normalization is a pure, idempotent
// pipeline: strip wrappers, try a direct parse, fall back to a quote-aware
// balanced-delimiter scan for the first top-level JSON value, unwrap common
// list fields for batch responses, and canonicalize label vocabulary. It
// never returns an error; total failure yields an explicit failure sentinel
// the engine can distinguish from a genuine neutral annotation.
package normalize
