// Package taxonomy owns the label vocabulary used to annotate subtitle
// lines: sentence types (with follow-up relations), emotions, tones,
// character types, mashup functions, and style effects.
//
// A built-in Chinese-language taxonomy ships with the binary; users can
// replace it with a JSON file. The package also canonicalizes
// model-emitted label values: English-coded labels map to their canonical
// Chinese names, full-width characters are folded, parenthetical comments
// are stripped, and values that are already canonical (or unknown) pass
// through unchanged.
package taxonomy
