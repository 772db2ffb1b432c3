package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Label is one taxonomy entry. ID is the stable English key the prompt asks
// the model to emit; Name is the canonical display form.
type Label struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	CanFollow []string `json:"can_follow,omitempty"`
}

// Taxonomy is the full label vocabulary rendered into prompts and used to
// canonicalize responses.
type Taxonomy struct {
	SentenceTypes    []Label  `json:"sentence_types"`
	Emotions         []Label  `json:"emotions"`
	Tones            []Label  `json:"tones"`
	CharacterTypes   []Label  `json:"character_types"`
	PrimaryFunctions []string `json:"primary_functions"`
	StyleEffects     []string `json:"style_effects"`
}

// Load reads a taxonomy JSON file. An empty path returns the built-in
// taxonomy.
func Load(path string) (*Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	var tax Taxonomy
	if err := json.Unmarshal(data, &tax); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(tax.SentenceTypes) == 0 {
		return nil, fmt.Errorf("taxonomy %s: sentence_types must not be empty", path)
	}
	return &tax, nil
}

// Names returns the canonical names of a label list.
func Names(labels []Label) []string {
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		names = append(names, label.Name)
	}
	return names
}

// CanFollowFor returns the follow-up relations for a sentence type id.
func (t *Taxonomy) CanFollowFor(id string) []string {
	for _, label := range t.SentenceTypes {
		if label.ID == id {
			return label.CanFollow
		}
	}
	return nil
}

// Default returns the built-in mashup taxonomy.
func Default() *Taxonomy {
	return &Taxonomy{
		SentenceTypes: []Label{
			{ID: "question", Name: "问句", CanFollow: []string{"陈述", "感叹", "命令"}},
			{ID: "answer", Name: "答句", CanFollow: []string{"问句", "反问", "质疑"}},
			{ID: "statement", Name: "陈述", CanFollow: []string{"问句", "评论"}},
			{ID: "command", Name: "命令", CanFollow: []string{"陈述", "揭示"}},
			{ID: "threat", Name: "威胁", CanFollow: []string{"拒绝", "反击", "嘲讽"}},
			{ID: "counter_question", Name: "反问", CanFollow: []string{"命令", "威胁", "嘲讽"}},
			{ID: "mock", Name: "嘲讽", CanFollow: []string{"感叹", "求饶", "震惊"}},
			{ID: "refuse", Name: "拒绝", CanFollow: []string{"命令", "劝说", "威胁"}},
			{ID: "fear", Name: "害怕", CanFollow: []string{"威胁", "揭示"}},
			{ID: "surrender", Name: "求饶", CanFollow: []string{"威胁", "反击"}},
			{ID: "counter_attack", Name: "反击", CanFollow: []string{"威胁", "嘲讽", "命令"}},
			{ID: "anger", Name: "愤怒", CanFollow: []string{"嘲讽", "拒绝", "打断"}},
			{ID: "exclaim", Name: "感叹", CanFollow: []string{"揭示", "震惊", "行动"}},
			{ID: "persuade", Name: "劝说", CanFollow: []string{"拒绝", "愤怒"}},
			{ID: "agree", Name: "同意", CanFollow: []string{"劝说", "命令", "问句"}},
			{ID: "action", Name: "行动", CanFollow: []string{"命令", "威胁"}},
			{ID: "interrupt", Name: "打断", CanFollow: []string{"陈述", "劝说"}},
			{ID: "reveal", Name: "揭示", CanFollow: []string{"问句", "反问"}},
			{ID: "obey", Name: "服从", CanFollow: []string{"命令", "威胁"}},
			{ID: "comment", Name: "评论", CanFollow: []string{"行动", "揭示", "感叹"}},
			{ID: "shock", Name: "震惊", CanFollow: []string{"揭示", "反击"}},
		},
		Emotions: []Label{
			{ID: "angry", Name: "愤怒"},
			{ID: "rage", Name: "狂怒"},
			{ID: "fear", Name: "害怕"},
			{ID: "mock", Name: "嘲讽"},
			{ID: "proud", Name: "得意"},
			{ID: "arrogant", Name: "嚣张"},
			{ID: "helpless", Name: "无奈"},
			{ID: "calm", Name: "冷静"},
			{ID: "shock", Name: "震惊"},
			{ID: "funny", Name: "搞笑"},
			{ID: "absurd", Name: "荒诞"},
			{ID: "tsundere", Name: "傲娇"},
		},
		Tones: []Label{
			{ID: "strong", Name: "强硬"},
			{ID: "weak", Name: "软弱"},
			{ID: "provocative", Name: "挑衅"},
			{ID: "humble", Name: "卑微"},
			{ID: "arrogant", Name: "傲慢"},
			{ID: "questioning", Name: "质疑"},
			{ID: "certain", Name: "肯定"},
			{ID: "hesitant", Name: "犹豫"},
			{ID: "pleading", Name: "恳求"},
			{ID: "threatening", Name: "威胁"},
		},
		CharacterTypes: []Label{
			{ID: "emperor", Name: "皇帝"},
			{ID: "official", Name: "大臣"},
			{ID: "hero", Name: "英雄"},
			{ID: "villain", Name: "反派"},
			{ID: "comic", Name: "搞笑角色"},
			{ID: "victim", Name: "受害者"},
			{ID: "bystander", Name: "旁观者"},
			{ID: "wise", Name: "智者"},
		},
		PrimaryFunctions: []string{
			"强行解释", "身份反转", "场景嫁接", "金句引用",
			"情绪递进", "节奏转折", "悬念铺垫", "打脸收尾",
		},
		StyleEffects: []string{
			"反讽高级黑", "自嘲解构", "谐音梗王", "一本正经胡说",
			"反差萌", "暴力美学", "无厘头", "其他",
		},
	}
}
