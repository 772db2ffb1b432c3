package subtitles

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeSRT(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.srt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}
	return path
}

func TestParseSRTBasic(t *testing.T) {
	path := writeSRT(t, `1
00:00:01,000 --> 00:00:02,500
Hello there.

2
00:00:03,000 --> 00:00:04,000
General Kenobi!
You are a bold one.
`)
	lines, err := ParseSRT(path)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Index != 0 || lines[1].Index != 1 {
		t.Fatalf("indices not sequential: %+v", lines)
	}
	if lines[0].Text != "Hello there." {
		t.Fatalf("text = %q", lines[0].Text)
	}
	if math.Abs(lines[0].Start-1.0) > 1e-9 || math.Abs(lines[0].End-2.5) > 1e-9 {
		t.Fatalf("timing = %v..%v", lines[0].Start, lines[0].End)
	}
	if lines[1].Text != "General Kenobi! You are a bold one." {
		t.Fatalf("multiline text not joined: %q", lines[1].Text)
	}
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	path := writeSRT(t, `1
00:00:01,000 --> 00:00:02,000
Good line.

not a cue at all

3
garbage --> timing
Broken timing.

4
00:00:05,000 --> 00:00:06,000

5
00:00:07.250 --> 00:00:08.750
Period separators accepted.
`)
	lines, err := ParseSRT(path)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (malformed skipped): %+v", len(lines), lines)
	}
	if lines[1].Text != "Period separators accepted." {
		t.Fatalf("unexpected second line: %q", lines[1].Text)
	}
	if math.Abs(lines[1].Start-7.25) > 1e-9 {
		t.Fatalf("period-separated start = %v, want 7.25", lines[1].Start)
	}
	// Indices are positions among parsed cues, not source sequence numbers.
	if lines[1].Index != 1 {
		t.Fatalf("index = %d, want 1", lines[1].Index)
	}
}

func TestParseSRTStripsByteOrderMark(t *testing.T) {
	path := writeSRT(t, "\uFEFF1\n00:00:01,000 --> 00:00:02,000\nFirst line.\n")
	lines, err := ParseSRT(path)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(lines) != 1 || lines[0].Text != "First line." {
		t.Fatalf("BOM-prefixed file misparsed: %+v", lines)
	}
}

func TestParseSRTEmptyFile(t *testing.T) {
	path := writeSRT(t, "")
	lines, err := ParseSRT(path)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("got %d lines, want 0", len(lines))
	}
}

func TestParseSRTMissingFile(t *testing.T) {
	if _, err := ParseSRT(filepath.Join(t.TempDir(), "absent.srt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLineDuration(t *testing.T) {
	if d := (Line{Start: 2, End: 5}).Duration(); d != 3 {
		t.Fatalf("duration = %v, want 3", d)
	}
	if d := (Line{Start: 5, End: 2}).Duration(); d != 0 {
		t.Fatalf("inverted duration = %v, want 0", d)
	}
}
