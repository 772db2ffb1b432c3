// Package config loads, normalizes, and validates glosser's TOML
// configuration.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Engine: batching, concurrency, checkpoint cadence, retry limits
//   - Backends: the table of model backends the engine can drive
//   - Prompt: optional user prompt template override
//   - Taxonomy: optional label taxonomy override
//   - Logging: log format and level
//
// Load applies defaults first, then the file, then normalization (path
// expansion, env-var credential resolution) and validation. Callers receive a
// config whose paths are absolute and whose numeric knobs are in range.
package config
