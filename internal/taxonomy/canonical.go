package taxonomy

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Vocabulary identifies which canonical lookup table applies to a value.
type Vocabulary int

const (
	VocabSentenceType Vocabulary = iota
	VocabEmotion
	VocabTone
	VocabCharacterType
)

var sentenceTypeNames = map[string]string{
	"question": "问句", "answer": "答句", "command": "命令", "threat": "威胁",
	"counter_question": "反问", "mock": "嘲讽", "refuse": "拒绝", "fear": "害怕",
	"surrender": "求饶", "counter_attack": "反击", "anger": "愤怒", "exclaim": "感叹",
	"persuade": "劝说", "agree": "同意", "action": "行动", "interrupt": "打断",
	"reveal": "揭示", "obey": "服从", "comment": "评论", "shock": "震惊",
	"interjection": "感叹", "statement": "陈述",
}

var emotionNames = map[string]string{
	"angry": "愤怒", "rage": "狂怒", "fear": "害怕", "mock": "嘲讽",
	"proud": "得意", "arrogant": "嚣张", "helpless": "无奈", "calm": "冷静",
	"shock": "震惊", "funny": "搞笑", "absurd": "荒诞", "tsundere": "傲娇",
}

var toneNames = map[string]string{
	"strong": "强硬", "weak": "软弱", "provocative": "挑衅", "humble": "卑微",
	"arrogant": "傲慢", "questioning": "质疑", "certain": "肯定", "hesitant": "犹豫",
	"pleading": "恳求", "threatening": "威胁",
}

var characterTypeNames = map[string]string{
	"emperor": "皇帝", "official": "大臣", "hero": "英雄", "villain": "反派",
	"comic": "搞笑角色", "victim": "受害者", "bystander": "旁观者", "wise": "智者",
}

func tableFor(vocab Vocabulary) map[string]string {
	switch vocab {
	case VocabSentenceType:
		return sentenceTypeNames
	case VocabEmotion:
		return emotionNames
	case VocabTone:
		return toneNames
	case VocabCharacterType:
		return characterTypeNames
	default:
		return nil
	}
}

var caseFolder = cases.Fold()

// Canonical maps a model-emitted label value to its canonical name. English
// ids resolve through the vocabulary table; values that already are canonical
// names pass through; unrecognized values are returned cleaned but otherwise
// unchanged, never dropped.
func Canonical(value string, vocab Vocabulary) string {
	cleaned := cleanLabel(value)
	if cleaned == "" {
		return cleaned
	}
	table := tableFor(vocab)
	if table == nil {
		return cleaned
	}
	if name, ok := table[caseFolder.String(cleaned)]; ok {
		return name
	}
	return cleaned
}

// CanonicalAll canonicalizes every value in a list, preserving order.
func CanonicalAll(values []string, vocab Vocabulary) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, Canonical(value, vocab))
	}
	return out
}

// cleanLabel normalizes a raw label value: full-width characters are folded
// to their half-width forms and a trailing parenthetical comment such as
// "答句(answer)" is stripped.
func cleanLabel(value string) string {
	folded := width.Fold.String(strings.TrimSpace(value))
	if idx := strings.IndexByte(folded, '('); idx >= 0 {
		folded = folded[:idx]
	}
	return strings.TrimSpace(folded)
}
