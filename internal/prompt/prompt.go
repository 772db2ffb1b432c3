package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"glosser/internal/taxonomy"
)

// Prompt rendering caps. Long vocabularies are excerpted so the label menu
// stays small relative to the lines being annotated.
const (
	maxSentenceTypes    = 10
	maxPrimaryFunctions = 8
	maxStyleEffects     = 8
)

const lineSystemPrompt = `你是专业的影视混剪创作专家，擅长分析台词在混剪中的使用潜力。
你需要分析每句台词的句型、情绪、语气等特征，帮助创作者找到能"接上"的下一句台词。
请严格按照JSON格式输出，不要添加任何额外说明。`

// Builder renders prompts for one taxonomy. A Builder is immutable and safe
// for concurrent use.
type Builder struct {
	tax    *taxonomy.Taxonomy
	custom *template.Template
}

// NewBuilder returns a Builder for the taxonomy. templatePath optionally
// names a text/template file overriding the single-line user prompt; an
// empty path selects the built-in prompt.
func NewBuilder(tax *taxonomy.Taxonomy, templatePath string) (*Builder, error) {
	b := &Builder{tax: tax}
	if strings.TrimSpace(templatePath) == "" {
		return b, nil
	}
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	tmpl, err := template.New("user_prompt").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", templatePath, err)
	}
	b.custom = tmpl
	return b, nil
}

// TemplateVars are the variables available to a custom user-prompt template.
type TemplateVars struct {
	CurrentLine      string
	ContextLines     string
	SentenceTypes    string
	Emotions         string
	Tones            string
	CharacterTypes   string
	PrimaryFunctions string
	StyleEffects     string
}

// Line builds the system and user prompts for annotating a single line with
// its surrounding context.
func (b *Builder) Line(current string, context []string) (system, user string) {
	vars := b.vars(current, context)
	if b.custom != nil {
		var buf strings.Builder
		if err := b.custom.Execute(&buf, vars); err == nil {
			return lineSystemPrompt, buf.String()
		}
		// Render failure falls through to the built-in prompt.
	}
	return lineSystemPrompt, b.builtinLine(vars)
}

// Batch builds the system and user prompts for annotating an ordered batch
// of lines in one request. The system prompt pins the required result count
// and 1-based line_index tagging.
func (b *Builder) Batch(lines []string) (system, user string) {
	vars := b.vars("", nil)

	system = fmt.Sprintf(`你是专业的影视混剪创作专家，擅长分析台词在混剪中的使用潜力。
你需要批量分析多句台词的句型、情绪、语气等特征。

重要要求：
1. 必须为每一句台词都生成标注，不能遗漏任何一句
2. 输出必须是一个JSON对象，包含 results 数组，长度必须为 %d
3. results 数组顺序必须与输入台词顺序完全一致
4. 只输出JSON，不要添加任何其他说明文字

每个标注对象必须包含以下字段：
- line_index: 台词序号（从1开始）
- sentence_type: 句型分类
- emotion: 情绪标签
- tone: 语气标签
- character_type: 角色类型
- can_follow: 能接在什么句型后面的数组
- can_lead_to: 后面能接什么句型的数组
- keywords: 关键词数组
- primary_function: 混剪功能
- style_effect: 风格效果
- semantic_summary: 混剪用途描述`, len(lines))

	var listing strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&listing, "%d. %q\n", i+1, line)
	}

	user = fmt.Sprintf(`## 任务
批量分析以下 %d 句台词在**脱离原片语境**后的混剪潜力。

## 待分析台词
%s
## 可选标签

### 句型分类
%s

### 情绪标签
%s

### 语气标签
%s

### 角色类型
%s

### 混剪功能
%s

### 风格效果
%s

## 输出格式（严格JSON对象，results为数组）
{
    "results": [
        {
            "line_index": 1,
            "sentence_type": "句型ID",
            "emotion": "情绪名称",
            "tone": "语气名称",
            "character_type": "角色类型",
            "can_follow": ["能接在什么句型后面"],
            "can_lead_to": ["后面能接什么句型"],
            "keywords": ["关键词"],
            "primary_function": "混剪功能",
            "style_effect": "风格效果",
            "semantic_summary": "混剪用途描述"
        }
    ]
}`, len(lines), listing.String(), vars.SentenceTypes, vars.Emotions, vars.Tones,
		vars.CharacterTypes, vars.PrimaryFunctions, vars.StyleEffects)

	return system, user
}

func (b *Builder) vars(current string, context []string) TemplateVars {
	return TemplateVars{
		CurrentLine:      current,
		ContextLines:     jsonList(context),
		SentenceTypes:    sentenceTypeMenu(b.tax.SentenceTypes),
		Emotions:         strings.Join(taxonomy.Names(b.tax.Emotions), ", "),
		Tones:            strings.Join(taxonomy.Names(b.tax.Tones), ", "),
		CharacterTypes:   strings.Join(taxonomy.Names(b.tax.CharacterTypes), ", "),
		PrimaryFunctions: strings.Join(head(b.tax.PrimaryFunctions, maxPrimaryFunctions), ", "),
		StyleEffects:     strings.Join(head(b.tax.StyleEffects, maxStyleEffects), ", "),
	}
}

func (b *Builder) builtinLine(vars TemplateVars) string {
	return fmt.Sprintf(`## 任务
分析以下台词在**脱离原片语境**后的混剪潜力，重点关注：
1. 这句话是什么类型？（问句？命令？威胁？嘲讽？）
2. 这句话后面能接什么类型的台词？
3. 这句话适合接在什么类型的台词后面？

## 当前台词
%q

## 上下文参考
%s

## 可选标签

### 句型分类（必选一个）
%s

### 情绪标签（必选一个）
%s

### 语气标签（必选一个）
%s

### 角色类型（必选一个）
%s

### 混剪功能（选最合适的）
%s

### 风格效果（选最合适的）
%s

## 输出格式（严格JSON）
{
  "sentence_type": "句型ID（如question, threat, mock等）",
  "emotion": "情绪名称",
  "tone": "语气名称",
  "character_type": "角色类型名称",
  "can_follow": ["能接在什么句型后面", "最多3个"],
  "can_lead_to": ["后面能接什么句型", "最多3个"],
  "keywords": ["关键词1", "关键词2", "最多3个"],
  "primary_function": "混剪功能",
  "style_effect": "风格效果",
  "editing_rhythm": "剪辑节奏建议",
  "semantic_summary": "一句话描述这句台词的混剪用途（20字以内）"
}`, vars.CurrentLine, vars.ContextLines, vars.SentenceTypes, vars.Emotions,
		vars.Tones, vars.CharacterTypes, vars.PrimaryFunctions, vars.StyleEffects)
}

// sentenceTypeMenu renders "名称(id)" pairs so the model can answer with
// either form.
func sentenceTypeMenu(labels []taxonomy.Label) string {
	if len(labels) > maxSentenceTypes {
		labels = labels[:maxSentenceTypes]
	}
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s(%s)", label.Name, label.ID))
	}
	return strings.Join(parts, ", ")
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func jsonList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
