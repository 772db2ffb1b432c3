package taxonomy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalEnglishIDs(t *testing.T) {
	cases := []struct {
		value string
		vocab Vocabulary
		want  string
	}{
		{"question", VocabSentenceType, "问句"},
		{"ANSWER", VocabSentenceType, "答句"},
		{"interjection", VocabSentenceType, "感叹"},
		{"angry", VocabEmotion, "愤怒"},
		{"threatening", VocabTone, "威胁"},
		{"emperor", VocabCharacterType, "皇帝"},
	}
	for _, tc := range cases {
		if got := Canonical(tc.value, tc.vocab); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestCanonicalPassThrough(t *testing.T) {
	// Already-canonical names and unknown values survive unchanged.
	if got := Canonical("问句", VocabSentenceType); got != "问句" {
		t.Fatalf("canonical name mangled: %q", got)
	}
	if got := Canonical("自创标签", VocabSentenceType); got != "自创标签" {
		t.Fatalf("unknown value dropped: %q", got)
	}
}

func TestCanonicalStripsParentheticalAndWidth(t *testing.T) {
	if got := Canonical("答句(answer)", VocabSentenceType); got != "答句" {
		t.Fatalf("parenthetical not stripped: %q", got)
	}
	// Full-width parenthesis and full-width latin id.
	if got := Canonical("答句（answer）", VocabSentenceType); got != "答句" {
		t.Fatalf("full-width parenthetical not stripped: %q", got)
	}
	if got := Canonical("ｑｕｅｓｔｉｏｎ", VocabSentenceType); got != "问句" {
		t.Fatalf("full-width id not folded: %q", got)
	}
}

func TestCanonicalAllPreservesOrder(t *testing.T) {
	got := CanonicalAll([]string{"question", "嘲讽", "mock"}, VocabSentenceType)
	want := []string{"问句", "嘲讽", "嘲讽"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadDefaultWhenPathEmpty(t *testing.T) {
	tax, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tax.SentenceTypes) == 0 || len(tax.Emotions) == 0 {
		t.Fatal("default taxonomy incomplete")
	}
}

func TestLoadFromFile(t *testing.T) {
	custom := Taxonomy{
		SentenceTypes: []Label{{ID: "q", Name: "问", CanFollow: []string{"答"}}},
		Emotions:      []Label{{ID: "joy", Name: "喜"}},
	}
	data, err := json.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tax.SentenceTypes) != 1 || tax.SentenceTypes[0].Name != "问" {
		t.Fatalf("custom taxonomy not loaded: %+v", tax)
	}
	if follows := tax.CanFollowFor("q"); len(follows) != 1 || follows[0] != "答" {
		t.Fatalf("CanFollowFor = %v", follows)
	}
}

func TestLoadRejectsEmptySentenceTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	if err := os.WriteFile(path, []byte(`{"emotions":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty sentence_types")
	}
}
