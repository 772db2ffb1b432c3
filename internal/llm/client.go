package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// KindOllama is a native local Ollama server.
	KindOllama = "ollama"
	// KindOpenAI is an OpenAI-style hosted API.
	KindOpenAI = "openai"
	// KindVendor is a commercial API with per-vendor endpoint quirks.
	KindVendor = "vendor"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxTokens    = 2000
	defaultTemperature  = 0.7
	probeTimeout        = 15 * time.Second
	jsonResponseType    = "json_object"
	payloadSnippetLimit = 160
)

// Config captures the settings required to talk to one backend.
type Config struct {
	ID             string
	Kind           string
	BaseURL        string
	Model          string
	APIKey         string
	MaxTokens      int
	Temperature    float64
	TimeoutSeconds int
}

// Probe is the result of a connection test.
type Probe struct {
	OK      bool
	Latency time.Duration
	Detail  string
}

// Client is one annotation backend. Implementations are safe for concurrent
// use.
type Client interface {
	ID() string
	Model() string
	// Chat sends a system/user prompt pair and returns the raw response
	// text. Normalization happens downstream; the client only guarantees
	// error classification.
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// TestConnection verifies the backend is reachable and the configured
	// model usable. It reports rather than errors: an unreachable backend
	// is a Probe with OK false.
	TestConnection(ctx context.Context) Probe
}

// Option customizes a client.
type Option func(*core)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *core) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a client for the configured kind.
func New(cfg Config, opts ...Option) (Client, error) {
	base := newCore(cfg, opts...)
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case KindOllama:
		return newOllamaClient(base), nil
	case KindOpenAI:
		return newOpenAIClient(base), nil
	case KindVendor:
		return newVendorClient(base), nil
	default:
		return nil, fmt.Errorf("backend %s: unknown kind %q", cfg.ID, cfg.Kind)
	}
}

// core holds the configuration and HTTP plumbing shared by all client kinds.
type core struct {
	cfg        Config
	httpClient *http.Client
}

func newCore(cfg Config, opts ...Option) *core {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &core{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *core) ID() string    { return c.cfg.ID }
func (c *core) Model() string { return c.cfg.Model }

func (c *core) timeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return defaultTimeout
}

// postJSON issues a POST with a JSON body and returns the status code and
// response body. Request construction and wire failures come back already
// classified.
func (c *core) postJSON(ctx context.Context, url string, headers map[string]string, payload any) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("encode body: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, classifyError(c.cfg.ID, c.timeout(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, classifyError(c.cfg.ID, c.timeout(), err)
	}
	return resp.StatusCode, body, nil
}

func (c *core) getJSON(ctx context.Context, url string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("new request: %w", err)}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, classifyError(c.cfg.ID, c.timeout(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, classifyError(c.cfg.ID, c.timeout(), err)
	}
	return resp.StatusCode, body, nil
}

func (c *core) authHeaders() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even with
		// stream off; tolerate it.
		Delta chatCompletionMessage `json:"delta"`
		Text  string                `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
}

// chatCompletion issues an OpenAI-style chat completion and extracts the
// response text. Shared by the openai and vendor clients.
func (c *core) chatCompletion(ctx context.Context, url string, payload chatCompletionRequest) (string, error) {
	status, body, err := c.postJSON(ctx, url, c.authHeaders(), payload)
	if err != nil {
		return "", err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", classifyStatus(c.cfg.ID, status, string(body))
	}
	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("decode response: %w", err)}
	}
	if completion.Error != nil {
		return "", &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("api error: %s", strings.TrimSpace(completion.Error.Message))}
	}
	content := extractCompletionText(completion)
	if content == "" {
		return "", &TransportError{Backend: c.cfg.ID, Err: fmt.Errorf("empty completion: %s", snippet(string(body)))}
	}
	return content, nil
}

func extractCompletionText(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func snippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	runes := []rune(clean)
	if len(runes) > payloadSnippetLimit {
		clean = string(runes[:payloadSnippetLimit]) + "..."
	}
	return clean
}
