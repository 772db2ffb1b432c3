// Package records defines the annotation record persisted for every subtitle
// line and the JSON output store the engine writes through.
//
// The on-disk shape is the one stable artifact this system owns: the
// downstream vector-indexing step parses it, so field names and nesting must
// not change casually. Record IDs are derived deterministically from the
// media ID, optional episode number, and line index, which makes writes
// idempotent: re-annotating a line overwrites rather than duplicates.
package records
