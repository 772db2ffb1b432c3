package subtitles

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Line is one timed text unit from a subtitle file. Index is the line's
// stable position among the parsed cues and doubles as its result slot in the
// engine.
type Line struct {
	Index int
	Text  string
	Start float64
	End   float64
}

// Duration returns the line's on-screen duration in seconds, never negative.
func (l Line) Duration() float64 {
	if l.End <= l.Start {
		return 0
	}
	return l.End - l.Start
}

// ParseSRT reads an SRT file and returns its cues in order. Malformed blocks
// are skipped. An unreadable file is the only error condition; a readable
// file with no valid cues returns an empty slice.
func ParseSRT(path string) ([]Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return parseSRTContent(string(data)), nil
}

func parseSRTContent(content string) []Line {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\uFEFF")
	blocks := splitBlocks(content)

	lines := make([]Line, 0, len(blocks))
	for _, block := range blocks {
		line, ok := parseBlock(block)
		if !ok {
			continue
		}
		line.Index = len(lines)
		lines = append(lines, line)
	}
	return lines
}

func splitBlocks(content string) []string {
	raw := strings.Split(strings.TrimSpace(content), "\n")
	var blocks []string
	var current []string
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

// parseBlock handles one cue: sequence number, timing line, then text lines.
// Blocks without a timing line or without text are rejected.
func parseBlock(block string) (Line, bool) {
	parts := strings.Split(block, "\n")
	timingIdx := -1
	for i, part := range parts {
		if strings.Contains(part, "-->") {
			timingIdx = i
			break
		}
	}
	if timingIdx == -1 || timingIdx == len(parts)-1 {
		return Line{}, false
	}

	timing := strings.SplitN(parts[timingIdx], "-->", 2)
	if len(timing) != 2 {
		return Line{}, false
	}
	start, err := parseTimestamp(timing[0])
	if err != nil {
		return Line{}, false
	}
	end, err := parseTimestamp(timing[1])
	if err != nil {
		return Line{}, false
	}

	text := strings.TrimSpace(strings.Join(parts[timingIdx+1:], " "))
	if text == "" {
		return Line{}, false
	}
	return Line{Text: text, Start: start, End: end}, true
}

func parseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// SRT uses a comma for milliseconds; tolerate a period.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(strings.TrimSpace(hms[0]))
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(strings.TrimSpace(timeParts[1]))
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
