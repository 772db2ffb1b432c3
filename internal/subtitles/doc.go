// Package subtitles parses SRT subtitle files into the ordered, timed lines
// the annotation engine consumes.
//
// Parsing is tolerant: malformed cue blocks are skipped rather than aborting
// the file, and both comma and period millisecond separators are accepted.
// Line indices are assigned by position among the successfully parsed cues,
// so they are stable for a given file regardless of how many blocks were
// skipped.
package subtitles
