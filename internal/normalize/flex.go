package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexString decodes a JSON string, number, or null into a string. Models
// occasionally emit numbers where strings belong.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	// Unusable shape for this field; drop it rather than failing the whole
	// annotation.
	*f = ""
	return nil
}

// flexIndex decodes a JSON number or numeric string into an int, recording
// whether a usable value was present. Garbage leaves the index absent
// instead of failing the enclosing annotation.
type flexIndex struct {
	value int
	ok    bool
}

func (f *flexIndex) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		f.value, f.ok = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			f.value, f.ok = parsed, true
		}
	}
	return nil
}

// flexStrings decodes a JSON array of strings, a single string, or null into
// a string slice.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = nil
		return nil
	}
	var list []flexString
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(string(item)); s != "" {
				out = append(out, s)
			}
		}
		*f = out
		return nil
	}
	var single flexString
	if err := json.Unmarshal(data, &single); err == nil && single != "" {
		*f = []string{string(single)}
		return nil
	}
	*f = nil
	return nil
}
