package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ollamaClient talks to a native Ollama server. Ollama has no trusted
// structured-output mode, so the system prompt is reinforced with a
// JSON-only instruction and the request sets format "json" (honored by
// recent servers, ignored by older ones).
type ollamaClient struct {
	*core
}

func newOllamaClient(base *core) *ollamaClient {
	// A base URL copied from an OpenAI-style config often carries a /v1
	// suffix the native API does not use.
	base.cfg.BaseURL = strings.TrimSuffix(base.cfg.BaseURL, "/v1")
	return &ollamaClient{core: base}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options"`
	Format   string         `json:"format"`
	Think    bool           `json:"think"`
}

type ollamaChatResponse struct {
	Message struct {
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	// generate-endpoint response shape.
	Response string `json:"response"`
}

func (c *ollamaClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := ollamaChatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt + "\n\n请严格按照JSON格式输出，不要输出任何其他内容。"},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
		Format: "json",
		Think:  false,
	}
	status, body, err := c.postJSON(ctx, c.cfg.BaseURL+"/api/chat", nil, payload)
	if err != nil {
		return "", err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", classifyStatus(c.cfg.ID, status, string(body))
	}
	var parsed ollamaChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("decode response: %w", err)}
	}
	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		// Reasoning models sometimes leave the answer buried in the
		// thinking field; pass it through for the normalizer to mine.
		content = strings.TrimSpace(parsed.Message.Thinking)
	}
	if content == "" {
		content = strings.TrimSpace(parsed.Response)
	}
	if content == "" {
		return "", &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("empty completion: %s", snippet(string(body)))}
	}
	return content, nil
}

func (c *ollamaClient) TestConnection(ctx context.Context) Probe {
	started := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	models, err := c.ListModels(probeCtx)
	if err != nil {
		return Probe{Latency: time.Since(started), Detail: err.Error()}
	}
	if !modelAvailable(c.cfg.Model, models) {
		detail := fmt.Sprintf("model %s not found", c.cfg.Model)
		if len(models) > 0 {
			if len(models) > 5 {
				models = models[:5]
			}
			detail += ", available: " + strings.Join(models, ", ")
		}
		return Probe{Latency: time.Since(started), Detail: detail}
	}

	payload := map[string]any{
		"model":   c.cfg.Model,
		"prompt":  "Say 'OK'",
		"stream":  false,
		"options": map[string]any{"num_predict": 5},
	}
	status, body, err := c.postJSON(probeCtx, c.cfg.BaseURL+"/api/generate", nil, payload)
	if err != nil {
		return Probe{Latency: time.Since(started), Detail: err.Error()}
	}
	if status != http.StatusOK {
		return Probe{Latency: time.Since(started), Detail: classifyStatus(c.cfg.ID, status, string(body)).Error()}
	}
	return Probe{
		OK:      true,
		Latency: time.Since(started),
		Detail:  fmt.Sprintf("model %s available", c.cfg.Model),
	}
}

// ListModels returns the model tags known to the server.
func (c *ollamaClient) ListModels(ctx context.Context) ([]string, error) {
	status, body, err := c.getJSON(ctx, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, classifyStatus(c.cfg.ID, status, string(body))
	}
	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("decode tags: %w", err)}
	}
	names := make([]string, 0, len(parsed.Models))
	for _, model := range parsed.Models {
		if model.Name != "" {
			names = append(names, model.Name)
		}
	}
	return names, nil
}

// modelAvailable matches the configured model against the server's tag
// list: exact match, untagged name against any tag of that name, or tagged
// name against tags sharing the base name and tag.
func modelAvailable(target string, available []string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}
	base, tag, tagged := strings.Cut(target, ":")
	for _, name := range available {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == target {
			return true
		}
		if !tagged && strings.HasPrefix(name, target+":") {
			return true
		}
		if tagged && strings.HasPrefix(name, base+":") && strings.Contains(name, tag) {
			return true
		}
	}
	return false
}
