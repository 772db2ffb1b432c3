package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Known commercial vendors with endpoint or feature quirks.
const (
	vendorZhipu    = "zhipu"
	vendorAliyun   = "aliyun"
	vendorDeepSeek = "deepseek"
	vendorGeneric  = "generic"
)

// vendorClient talks to commercial APIs that are OpenAI-shaped but differ
// in endpoint paths and structured-output support. The vendor is detected
// from the base URL.
type vendorClient struct {
	*core
	vendor string
}

func newVendorClient(base *core) *vendorClient {
	return &vendorClient{core: base, vendor: detectVendor(base.cfg.BaseURL)}
}

func detectVendor(baseURL string) string {
	url := strings.ToLower(baseURL)
	switch {
	case strings.Contains(url, "bigmodel.cn") || strings.Contains(url, "zhipu"):
		return vendorZhipu
	case strings.Contains(url, "dashscope") || strings.Contains(url, "aliyun"):
		return vendorAliyun
	case strings.Contains(url, "deepseek"):
		return vendorDeepSeek
	default:
		return vendorGeneric
	}
}

// endpoint resolves the chat completion URL for the detected vendor. Zhipu
// publishes the full API path; Aliyun exposes OpenAI compatibility under
// /compatible-mode/v1; everything else gets the standard /v1 prefix.
func (c *vendorClient) endpoint() string {
	base := c.cfg.BaseURL
	switch c.vendor {
	case vendorZhipu:
	case vendorAliyun:
		if !strings.Contains(base, "compatible-mode") {
			base += "/compatible-mode/v1"
		}
	default:
		base = ensureV1(base)
	}
	return base + "/chat/completions"
}

// structuredOutput reports whether the vendor honors response_format for
// the configured model. Zhipu only supports it on the glm-4 family.
func (c *vendorClient) structuredOutput() bool {
	if c.vendor == vendorZhipu {
		return strings.Contains(strings.ToLower(c.cfg.Model), "glm-4")
	}
	return true
}

func (c *vendorClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.structuredOutput() {
		payload.ResponseFormat = map[string]string{"type": jsonResponseType}
	}
	return c.chatCompletion(ctx, c.endpoint(), payload)
}

func (c *vendorClient) TestConnection(ctx context.Context) Probe {
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
	status, body, err := c.postJSON(probeCtx, c.endpoint(), c.authHeaders(), payload)
	if err != nil {
		return Probe{Latency: time.Since(started), Detail: err.Error()}
	}
	if status != http.StatusOK {
		return Probe{Latency: time.Since(started), Detail: classifyStatus(c.cfg.ID, status, string(body)).Error()}
	}
	return Probe{OK: true, Latency: time.Since(started), Detail: c.vendor + " reachable"}
}
