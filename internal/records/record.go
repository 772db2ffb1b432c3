package records

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownLabel marks a tag whose value could not be determined. It is
// distinct from both an empty value (never persisted for required tags) and
// any genuine taxonomy label, so consumers can tell "the model said neutral"
// apart from "no usable response".
const UnknownLabel = "未知"

// SourceRef locates a record in its source media. Full media metadata lives
// in the media library keyed by MediaID; records carry only what playback
// needs.
type SourceRef struct {
	MediaID string  `json:"media_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Tags holds the mashup annotation labels for one line.
type Tags struct {
	SentenceType    string   `json:"sentence_type"`
	Emotion         string   `json:"emotion"`
	Tone            string   `json:"tone"`
	PrimaryFunction string   `json:"primary_function"`
	StyleEffect     string   `json:"style_effect"`
	CanFollow       []string `json:"can_follow"`
	CanLeadTo       []string `json:"can_lead_to"`
	Keywords        []string `json:"keywords"`
	CharacterType   string   `json:"character_type"`
}

// EditingParams carries cut-planning hints for one line.
type EditingParams struct {
	Rhythm   string  `json:"rhythm"`
	Duration float64 `json:"duration"`
}

// AnnotationRecord is the persisted annotation for one subtitle line.
type AnnotationRecord struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	Source      SourceRef     `json:"source"`
	Tags        Tags          `json:"mashup_tags"`
	VectorText  string        `json:"vector_text"`
	Editing     EditingParams `json:"editing_params"`
	Summary     string        `json:"semantic_summary"`
	AnnotatedAt float64       `json:"annotated_at"`
}

// ID derives the deterministic record id for a line. Episode 0 means the
// media has no episode dimension.
func RecordID(mediaID string, episode, lineIndex int) string {
	if episode > 0 {
		return fmt.Sprintf("%s_ep%d_line_%d", mediaID, episode, lineIndex)
	}
	return fmt.Sprintf("%s_line_%d", mediaID, lineIndex)
}

// LineIndex recovers the line index encoded in a record id. Used on resume
// to slot previously written records back into the results array.
func (r AnnotationRecord) LineIndex() (int, bool) {
	_, suffix, found := strings.Cut(r.ID, "_line_")
	if !found {
		return 0, false
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// Unknown reports whether the record carries the unknown sentinel, i.e. the
// backend never produced a usable annotation for this line.
func (r AnnotationRecord) Unknown() bool {
	return r.Tags.SentenceType == UnknownLabel
}

// UnknownTags returns the explicit could-not-determine tag set recorded when
// retries are exhausted. Deliberately not the default annotation: searches
// can filter these out.
func UnknownTags() Tags {
	return Tags{
		SentenceType:    UnknownLabel,
		Emotion:         UnknownLabel,
		Tone:            UnknownLabel,
		PrimaryFunction: UnknownLabel,
		StyleEffect:     UnknownLabel,
		CharacterType:   UnknownLabel,
	}
}

// BuildVectorText derives the embedding text for a record: canonical tags,
// the line itself, lead-to relations, and keywords, space-joined with empty
// parts dropped.
func BuildVectorText(text string, tags Tags) string {
	parts := make([]string, 0, 4+len(tags.CanLeadTo)+len(tags.Keywords))
	parts = append(parts, tags.SentenceType, tags.Emotion, tags.Tone, text)
	parts = append(parts, tags.CanLeadTo...)
	parts = append(parts, tags.Keywords...)

	nonEmpty := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, " ")
}
