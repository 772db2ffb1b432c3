package engine

import (
	"context"
	"math"
	"time"

	"glosser/internal/logging"
	"glosser/internal/normalize"
	"glosser/internal/records"
	"glosser/internal/subtitles"
)

// processUnit annotates one batch unit. With a batch size of 1 the engine
// runs in single-line mode; otherwise every unit, including a short tail
// unit, tries one batch call first and falls back per line for anything the
// batch response did not cover.
func (e *Engine) processUnit(ctx context.Context, unit batchUnit) {
	if e.settings.BatchSize == 1 {
		line := unit.lines[0]
		e.recordResult(line.Index, e.annotateLine(ctx, line, unit.context[line.Index]))
		return
	}

	items := e.chatBatch(ctx, unit)
	assigned := mapBatchResults(unit, items)
	for _, line := range unit.lines {
		if ann, ok := assigned[line.Index]; ok {
			e.recordResult(line.Index, e.buildRecord(line, ann))
			continue
		}
		e.logger.Debug("batch result missing, annotating line individually",
			logging.FieldLine, line.Index)
		e.recordResult(line.Index, e.annotateLine(ctx, line, unit.context[line.Index]))
	}
}

// chatBatch issues the batch call with retries. A backend error or an
// unusable response both consume an attempt; exhaustion returns nil, which
// sends every line of the unit down the single-line path.
func (e *Engine) chatBatch(ctx context.Context, unit batchUnit) []normalize.Annotation {
	texts := make([]string, len(unit.lines))
	for i, line := range unit.lines {
		texts[i] = line.Text
	}
	system, user := e.prompts.Batch(texts)

	for attempt := 0; attempt <= e.settings.MaxRetries; attempt++ {
		raw, err := e.client.Chat(ctx, system, user)
		if err != nil {
			e.noteError(err)
			e.logger.Debug("batch call failed",
				logging.FieldUnit, unit.lines[0].Index,
				logging.Int("attempt", attempt+1),
				logging.Error(err))
			continue
		}
		if items := normalize.Batch(raw); len(items) > 0 {
			return items
		}
		e.logger.Debug("batch response unusable",
			logging.FieldUnit, unit.lines[0].Index,
			logging.Int("attempt", attempt+1))
	}
	return nil
}

// mapBatchResults maps normalized batch items onto the unit's lines, keyed
// by global line index. An exact count match maps positionally and is
// authoritative. On mismatch, explicit line_index values are consulted
// first (1-based, then 0-based, both relative to the unit), then an
// in-range positional slot for items that carry no index at all. Lines left
// unmapped escalate to the single-line path.
func mapBatchResults(unit batchUnit, items []normalize.Annotation) map[int]normalize.Annotation {
	assigned := make(map[int]normalize.Annotation)
	if len(items) == 0 {
		return assigned
	}

	if len(items) == len(unit.lines) {
		for i, line := range unit.lines {
			if !items[i].Failed {
				assigned[line.Index] = items[i]
			}
		}
		return assigned
	}

	byIndex := make(map[int]int, len(items))
	for pos, item := range items {
		if item.HasIndex && !item.Failed {
			if _, taken := byIndex[item.LineIndex]; !taken {
				byIndex[item.LineIndex] = pos
			}
		}
	}
	used := make(map[int]bool, len(items))
	for i, line := range unit.lines {
		// Each item maps to at most one line; the 0-based fallback must not
		// reassign an item the 1-based pass already placed.
		if pos, ok := byIndex[i+1]; ok && !used[pos] {
			assigned[line.Index] = items[pos]
			used[pos] = true
			continue
		}
		if pos, ok := byIndex[i]; ok && !used[pos] {
			assigned[line.Index] = items[pos]
			used[pos] = true
			continue
		}
		if i < len(items) && !items[i].Failed && !items[i].HasIndex && !used[i] {
			assigned[line.Index] = items[i]
			used[i] = true
		}
	}
	return assigned
}

// annotateLine runs the single-line path with retries. Exhaustion produces
// the unknown-sentinel record so the job still progresses.
func (e *Engine) annotateLine(ctx context.Context, line subtitles.Line, neighbors []string) *records.AnnotationRecord {
	system, user := e.prompts.Line(line.Text, neighbors)

	for attempt := 0; attempt <= e.settings.MaxRetries; attempt++ {
		raw, err := e.client.Chat(ctx, system, user)
		if err != nil {
			e.noteError(err)
			e.logger.Debug("line call failed",
				logging.FieldLine, line.Index,
				logging.Int("attempt", attempt+1),
				logging.Error(err))
			continue
		}
		if ann := normalize.Single(raw); !ann.Failed {
			return e.buildRecord(line, ann)
		}
		e.logger.Debug("line response unusable",
			logging.FieldLine, line.Index,
			logging.Int("attempt", attempt+1))
	}

	e.logger.Warn("retries exhausted, recording unknown annotation", logging.FieldLine, line.Index)
	return e.unknownRecord(line)
}

func (e *Engine) buildRecord(line subtitles.Line, ann normalize.Annotation) *records.AnnotationRecord {
	ann = ann.Canonical()
	tags := records.Tags{
		SentenceType:    ann.SentenceType,
		Emotion:         ann.Emotion,
		Tone:            ann.Tone,
		PrimaryFunction: ann.PrimaryFunction,
		StyleEffect:     ann.StyleEffect,
		CanFollow:       ann.CanFollow,
		CanLeadTo:       ann.CanLeadTo,
		Keywords:        ann.Keywords,
		CharacterType:   ann.CharacterType,
	}
	return &records.AnnotationRecord{
		ID:          records.RecordID(e.spec.MediaID, e.spec.Episode, line.Index),
		Text:        line.Text,
		Source:      records.SourceRef{MediaID: e.spec.MediaID, Start: line.Start, End: line.End},
		Tags:        tags,
		VectorText:  records.BuildVectorText(line.Text, tags),
		Editing:     records.EditingParams{Rhythm: ann.EditingRhythm, Duration: round2(line.Duration())},
		Summary:     ann.Summary,
		AnnotatedAt: now(),
	}
}

func (e *Engine) unknownRecord(line subtitles.Line) *records.AnnotationRecord {
	tags := records.UnknownTags()
	return &records.AnnotationRecord{
		ID:          records.RecordID(e.spec.MediaID, e.spec.Episode, line.Index),
		Text:        line.Text,
		Source:      records.SourceRef{MediaID: e.spec.MediaID, Start: line.Start, End: line.End},
		Tags:        tags,
		VectorText:  records.BuildVectorText(line.Text, tags),
		Editing:     records.EditingParams{Duration: round2(line.Duration())},
		AnnotatedAt: now(),
	}
}

// recordResult stores a finished line under the single-writer-per-index
// discipline and triggers the incremental save cadence. A line already
// completed (loaded from checkpoint) is never overwritten.
func (e *Engine) recordResult(idx int, rec *records.AnnotationRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx < 0 || idx >= e.total || e.completed[idx] {
		return
	}
	e.results[idx] = rec
	e.completed[idx] = true
	e.completedCount++
	if e.completedCount-e.lastSaveCount >= e.settings.SaveInterval {
		e.saveLocked(context.Background())
	}
}

func (e *Engine) noteError(err error) {
	e.mu.Lock()
	e.lastErr = err.Error()
	e.mu.Unlock()
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func now() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}
