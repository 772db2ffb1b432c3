package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"glosser/internal/taxonomy"
)

// Annotation is the structured result extracted from one model response (or
// one element of a batch response). Failed marks the explicit failure
// sentinel: no usable annotation could be extracted.
type Annotation struct {
	LineIndex int
	HasIndex  bool

	SentenceType    string
	Emotion         string
	Tone            string
	CharacterType   string
	CanFollow       []string
	CanLeadTo       []string
	Keywords        []string
	PrimaryFunction string
	StyleEffect     string
	EditingRhythm   string
	Summary         string

	Failed bool
}

// Failure returns the failure sentinel.
func Failure() Annotation {
	return Annotation{Failed: true}
}

var (
	fenceRE     = regexp.MustCompile("```(?:json)?")
	reasoningRE = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// Clean strips fenced-block markers and reasoning wrapper segments. Running
// it twice is a no-op.
func Clean(raw string) string {
	cleaned := fenceRE.ReplaceAllString(raw, "")
	cleaned = reasoningRE.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// Single extracts one annotation from a model response.
func Single(raw string) Annotation {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Failure()
	}

	if ann, ok := decodeAnnotation([]byte(cleaned)); ok {
		return ann
	}
	if fragment := extractTopLevel(cleaned, '{', '}'); fragment != "" {
		if ann, ok := decodeAnnotation([]byte(fragment)); ok {
			return ann
		}
	}
	return Failure()
}

// Batch extracts a list of annotations from a batch model response. An empty
// result means the response was unusable; the engine treats that as the
// trigger for single-line fallback.
func Batch(raw string) []Annotation {
	cleaned := Clean(raw)
	if cleaned == "" {
		return nil
	}

	if items := decodeList([]byte(cleaned)); items != nil {
		return items
	}

	// Whichever top-level value starts first wins: an array before any
	// object is the result list itself, otherwise the object may wrap one.
	arrStart := strings.IndexByte(cleaned, '[')
	objStart := strings.IndexByte(cleaned, '{')
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if fragment := extractTopLevel(cleaned, '[', ']'); fragment != "" {
			if items := decodeList([]byte(fragment)); items != nil {
				return items
			}
		}
	}
	if fragment := extractTopLevel(cleaned, '{', '}'); fragment != "" {
		if items := decodeList([]byte(fragment)); items != nil {
			return items
		}
	}
	return nil
}

// listWrapperKeys are the field names under which backends commonly nest the
// result array.
var listWrapperKeys = []string{"results", "items", "data", "annotations", "outputs", "output", "choices"}

func decodeList(data []byte) []Annotation {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var rawItems []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &rawItems); err != nil {
			return nil
		}
		items := make([]Annotation, 0, len(rawItems))
		for _, rawItem := range rawItems {
			if ann, ok := decodeAnnotation(rawItem); ok {
				items = append(items, ann)
			} else {
				items = append(items, Failure())
			}
		}
		return items
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
			return nil
		}
		for _, key := range listWrapperKeys {
			if nested, ok := wrapper[key]; ok {
				if items := decodeList(nested); items != nil {
					return items
				}
			}
		}
		// A bare object is a single-element batch.
		if ann, ok := decodeAnnotation([]byte(trimmed)); ok {
			return []Annotation{ann}
		}
		return nil
	default:
		return nil
	}
}

// payload mirrors the JSON shapes backends emit. flexIndex keeps absence
// distinguishable from zero; flexString/flexStrings absorb scalar-vs-array
// type drift.
type payload struct {
	LineIndex       flexIndex      `json:"line_index"`
	Index           flexIndex      `json:"index"`
	SentenceType    flexString     `json:"sentence_type"`
	Emotion         flexString     `json:"emotion"`
	Tone            flexString     `json:"tone"`
	CharacterType   flexString     `json:"character_type"`
	CanFollow       flexStrings    `json:"can_follow"`
	CanLeadTo       flexStrings    `json:"can_lead_to"`
	Keywords        flexStrings    `json:"keywords"`
	PrimaryFunction flexString     `json:"primary_function"`
	StyleEffect     flexString     `json:"style_effect"`
	EditingRhythm   flexString     `json:"editing_rhythm"`
	Summary         flexString     `json:"semantic_summary"`
	MashupAnalysis  *nestedWrapper `json:"mashup_analysis"`
}

// nestedWrapper matches the alternative response shape some models produce,
// with tags nested under analysis sub-objects.
type nestedWrapper struct {
	QuickTags struct {
		Primary flexString `json:"primary"`
		Style   flexString `json:"style"`
		Rhythm  flexString `json:"rhythm"`
	} `json:"quick_tags"`
	SemanticSummary struct {
		Brief    flexString  `json:"brief"`
		UseCase  flexString  `json:"use_case"`
		Keywords flexStrings `json:"keywords"`
	} `json:"semantic_summary"`
}

func decodeAnnotation(data []byte) (Annotation, bool) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Annotation{}, false
	}

	ann := Annotation{
		SentenceType:    string(p.SentenceType),
		Emotion:         string(p.Emotion),
		Tone:            string(p.Tone),
		CharacterType:   string(p.CharacterType),
		CanFollow:       p.CanFollow,
		CanLeadTo:       p.CanLeadTo,
		Keywords:        p.Keywords,
		PrimaryFunction: string(p.PrimaryFunction),
		StyleEffect:     string(p.StyleEffect),
		EditingRhythm:   string(p.EditingRhythm),
		Summary:         string(p.Summary),
	}
	switch {
	case p.LineIndex.ok:
		ann.LineIndex = p.LineIndex.value
		ann.HasIndex = true
	case p.Index.ok:
		ann.LineIndex = p.Index.value
		ann.HasIndex = true
	}
	if nested := p.MashupAnalysis; nested != nil {
		if ann.PrimaryFunction == "" {
			ann.PrimaryFunction = string(nested.QuickTags.Primary)
		}
		if ann.StyleEffect == "" {
			ann.StyleEffect = string(nested.QuickTags.Style)
		}
		if ann.EditingRhythm == "" {
			ann.EditingRhythm = string(nested.QuickTags.Rhythm)
		}
		if ann.Summary == "" {
			ann.Summary = string(nested.SemanticSummary.Brief)
		}
		if ann.Summary == "" {
			ann.Summary = string(nested.SemanticSummary.UseCase)
		}
		if len(ann.Keywords) == 0 {
			ann.Keywords = nested.SemanticSummary.Keywords
		}
	}

	if ann.empty() {
		return Annotation{}, false
	}
	return ann, true
}

func (a Annotation) empty() bool {
	return a.SentenceType == "" && a.Emotion == "" && a.Tone == "" &&
		a.CharacterType == "" && a.Summary == "" &&
		len(a.CanFollow) == 0 && len(a.CanLeadTo) == 0 && len(a.Keywords) == 0
}

// Canonical returns a copy with label values canonicalized through the
// vocabulary tables. Idempotent; the failure sentinel passes through.
func (a Annotation) Canonical() Annotation {
	if a.Failed {
		return a
	}
	a.SentenceType = taxonomy.Canonical(a.SentenceType, taxonomy.VocabSentenceType)
	a.Emotion = taxonomy.Canonical(a.Emotion, taxonomy.VocabEmotion)
	a.Tone = taxonomy.Canonical(a.Tone, taxonomy.VocabTone)
	a.CharacterType = taxonomy.Canonical(a.CharacterType, taxonomy.VocabCharacterType)
	a.CanFollow = taxonomy.CanonicalAll(a.CanFollow, taxonomy.VocabSentenceType)
	a.CanLeadTo = taxonomy.CanonicalAll(a.CanLeadTo, taxonomy.VocabSentenceType)
	return a
}

// extractTopLevel scans for the first balanced top-level value delimited by
// open/close, tracking string and escape state so braces inside quoted text
// do not confuse the depth count.
func extractTopLevel(text string, open, close byte) string {
	inString := false
	escaped := false
	depth := 0
	start := -1
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			if depth == 0 {
				start = i
			}
			depth++
		case ch == close && depth > 0:
			depth--
			if depth == 0 && start >= 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
