package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// openAIClient talks to OpenAI or any service exposing the same API shape.
// It requests structured output via response_format, which compatible
// services honor.
type openAIClient struct {
	*core
}

func newOpenAIClient(base *core) *openAIClient {
	base.cfg.BaseURL = ensureV1(base.cfg.BaseURL)
	return &openAIClient{core: base}
}

// ensureV1 appends the /v1 API prefix unless the URL already carries one
// somewhere in its path.
func ensureV1(baseURL string) string {
	if strings.Contains(baseURL, "/v1") {
		return baseURL
	}
	return baseURL + "/v1"
}

func (c *openAIClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	return c.chatCompletion(ctx, c.cfg.BaseURL+"/chat/completions", payload)
}

func (c *openAIClient) TestConnection(ctx context.Context) Probe {
	started := time.Now()
	if c.cfg.APIKey == "" {
		return Probe{Detail: "api key not configured"}
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	payload := chatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: "Hi"}},
		MaxTokens: 5,
	}
	status, body, err := c.postJSON(probeCtx, c.cfg.BaseURL+"/chat/completions", c.authHeaders(), payload)
	if err != nil {
		return Probe{Latency: time.Since(started), Detail: err.Error()}
	}
	if status != http.StatusOK {
		return Probe{Latency: time.Since(started), Detail: classifyStatus(c.cfg.ID, status, string(body)).Error()}
	}
	return Probe{
		OK:      true,
		Latency: time.Since(started),
		Detail:  fmt.Sprintf("model %s reachable", c.cfg.Model),
	}
}
