package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"Media", "Job", "Progress"},
		[][]string{{"show", "abc12345", "3/10"}, {"movie"}},
	)
	if !strings.Contains(out, "show") || !strings.Contains(out, "movie") {
		t.Fatalf("rows missing:\n%s", out)
	}
	width := 0
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "│") {
			continue
		}
		if width == 0 {
			width = len(line)
		}
		if len(line) != width {
			t.Fatalf("short row not padded to table width:\n%s", out)
		}
	}
}

func TestRenderTableRightAlignsNumericColumns(t *testing.T) {
	out := renderTable(
		[]string{"Media", "Progress"},
		[][]string{{"show", "3/10"}, {"a-much-longer-media-id", "100/100"}},
		2,
	)
	// Right alignment pushes the short progress value against the column's
	// closing border.
	if !strings.Contains(out, "   3/10 ") {
		t.Fatalf("progress column not right-aligned:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("empty headers should render nothing")
	}
}
