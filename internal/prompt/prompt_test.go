package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"glosser/internal/taxonomy"
)

func TestLineBuiltin(t *testing.T) {
	builder, err := NewBuilder(taxonomy.Default(), "")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	system, user := builder.Line("你会后悔的", []string{"前一句", "后一句"})
	if !strings.Contains(system, "JSON") {
		t.Fatal("system prompt missing JSON-only instruction")
	}
	if !strings.Contains(user, "你会后悔的") {
		t.Fatal("user prompt missing current line")
	}
	if !strings.Contains(user, `["前一句","后一句"]`) {
		t.Fatalf("context not rendered as JSON list:\n%s", user)
	}
	if !strings.Contains(user, "问句(question)") {
		t.Fatal("sentence type menu missing name(id) form")
	}
}

func TestLineMenuExcerpts(t *testing.T) {
	builder, err := NewBuilder(taxonomy.Default(), "")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	_, user := builder.Line("text", nil)
	// The default taxonomy has 21 sentence types; the menu caps at 10.
	if strings.Contains(user, "(shock)") {
		t.Fatal("sentence type menu not excerpted")
	}
	if !strings.Contains(user, "(surrender)") {
		t.Fatal("tenth sentence type missing from menu")
	}
}

func TestBatchPinsCountAndOrder(t *testing.T) {
	builder, err := NewBuilder(taxonomy.Default(), "")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	system, user := builder.Batch([]string{"第一句", "第二句", "第三句"})
	if !strings.Contains(system, "长度必须为 3") {
		t.Fatalf("system prompt missing result count:\n%s", system)
	}
	if !strings.Contains(system, "line_index") {
		t.Fatal("system prompt missing line_index requirement")
	}
	if !strings.Contains(user, "1. \"第一句\"") || !strings.Contains(user, "3. \"第三句\"") {
		t.Fatalf("lines not numbered from 1:\n%s", user)
	}
}

func TestCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.tmpl")
	content := "LINE={{.CurrentLine}} CTX={{.ContextLines}} TYPES={{.SentenceTypes}}"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	builder, err := NewBuilder(taxonomy.Default(), path)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	_, user := builder.Line("hello", []string{"ctx"})
	if !strings.HasPrefix(user, "LINE=hello CTX=[\"ctx\"]") {
		t.Fatalf("custom template not applied: %q", user)
	}
}

func TestCustomTemplateRenderFailureFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.tmpl")
	// Parses fine but fails at render time: no such field.
	if err := os.WriteFile(path, []byte(`{{.Missing.Field}}`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	builder, err := NewBuilder(taxonomy.Default(), path)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	_, user := builder.Line("fallback line", nil)
	if !strings.Contains(user, "fallback line") || !strings.Contains(user, "可选标签") {
		t.Fatalf("render failure did not fall back to built-in prompt:\n%s", user)
	}
}

func TestCustomTemplateParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.tmpl")
	if err := os.WriteFile(path, []byte(`{{.Broken`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if _, err := NewBuilder(taxonomy.Default(), path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBatchAlwaysBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.tmpl")
	if err := os.WriteFile(path, []byte(`OVERRIDE`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	builder, err := NewBuilder(taxonomy.Default(), path)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	_, user := builder.Batch([]string{"一句"})
	if strings.Contains(user, "OVERRIDE") {
		t.Fatal("batch prompt must not use the single-line template override")
	}
}
