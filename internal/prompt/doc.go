// Package prompt renders the system and user prompts sent to annotation
// backends. Prompts are built from the taxonomy vocabulary; the single-line
// user prompt can be overridden with a text/template file, and a template
// that fails to render falls back to the built-in prompt rather than
// aborting the job.
package prompt
