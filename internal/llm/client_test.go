package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, cfg Config) Client {
	t.Helper()
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestOllamaChat(t *testing.T) {
	var captured ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": `{"sentence_type":"question"}`},
		})
	}))
	defer server.Close()

	client := newTestClient(t, Config{ID: "local", Kind: KindOllama, BaseURL: server.URL, Model: "qwen3:4b"})
	got, err := client.Chat(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != `{"sentence_type":"question"}` {
		t.Fatalf("content = %q", got)
	}
	if captured.Format != "json" || captured.Think {
		t.Fatalf("request options: format=%q think=%v", captured.Format, captured.Think)
	}
	if !strings.Contains(captured.Messages[0].Content, "JSON") {
		t.Fatal("system prompt not reinforced with JSON-only instruction")
	}
}

func TestOllamaThinkingFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"content":  "",
				"thinking": `reasoning... {"sentence_type":"threat"}`,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, Config{ID: "local", Kind: KindOllama, BaseURL: server.URL, Model: "qwen3"})
	got, err := client.Chat(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(got, `"sentence_type":"threat"`) {
		t.Fatalf("thinking not passed through: %q", got)
	}
}

func TestOllamaTrimsV1Suffix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("v1 suffix not trimmed, path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{"content": "{}"}})
	}))
	defer server.Close()

	client := newTestClient(t, Config{ID: "local", Kind: KindOllama, BaseURL: server.URL + "/v1", Model: "m"})
	if _, err := client.Chat(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestOpenAIChat(t *testing.T) {
	var captured chatCompletionRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": `{"ok":1}`}}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, Config{ID: "hosted", Kind: KindOpenAI, BaseURL: server.URL, Model: "gpt-4o-mini", APIKey: "sk-test"})
	got, err := client.Chat(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != `{"ok":1}` {
		t.Fatalf("content = %q", got)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", auth)
	}
	if captured.ResponseFormat["type"] != jsonResponseType {
		t.Fatalf("response_format = %v", captured.ResponseFormat)
	}
}

func TestOpenAIAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, Config{ID: "hosted", Kind: KindOpenAI, BaseURL: server.URL, Model: "m", APIKey: "bad"})
	_, err := client.Chat(context.Background(), "s", "u")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", authErr.Status)
	}
}

func TestTimeoutClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client, err := New(
		Config{ID: "slow", Kind: KindOpenAI, BaseURL: server.URL, Model: "m", APIKey: "k"},
		WithHTTPClient(&http.Client{Timeout: 30 * time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Chat(context.Background(), "s", "u")
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestTransportErrorOnRefusedConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, Config{ID: "down", Kind: KindOllama, BaseURL: url, Model: "m"})
	_, err := client.Chat(context.Background(), "s", "u")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestDetectVendor(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://open.bigmodel.cn/api/paas/v4", vendorZhipu},
		{"https://dashscope.aliyuncs.com", vendorAliyun},
		{"https://api.deepseek.com", vendorDeepSeek},
		{"https://example.com/llm", vendorGeneric},
	}
	for _, tc := range cases {
		if got := detectVendor(tc.url); got != tc.want {
			t.Errorf("detectVendor(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestVendorEndpoints(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://open.bigmodel.cn/api/paas/v4", "https://open.bigmodel.cn/api/paas/v4/chat/completions"},
		{"https://dashscope.aliyuncs.com", "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"},
		{"https://dashscope.aliyuncs.com/compatible-mode/v1", "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"},
		{"https://api.example.com", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1", "https://api.example.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		client := newVendorClient(newCore(Config{ID: "v", BaseURL: tc.base}))
		if got := client.endpoint(); got != tc.want {
			t.Errorf("endpoint(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestVendorStructuredOutputGate(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "{}"}}},
		})
	}))
	defer server.Close()

	// The test server URL is not a zhipu host, so force the vendor.
	base := newCore(Config{ID: "zp", BaseURL: server.URL + "/api/paas/v4", Model: "glm-3-turbo", APIKey: "k"})
	client := &vendorClient{core: base, vendor: vendorZhipu}
	if _, err := client.Chat(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if captured.ResponseFormat != nil {
		t.Fatal("response_format sent to model without structured output support")
	}

	base = newCore(Config{ID: "zp", BaseURL: server.URL + "/api/paas/v4", Model: "glm-4-flash", APIKey: "k"})
	client = &vendorClient{core: base, vendor: vendorZhipu}
	if _, err := client.Chat(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if captured.ResponseFormat["type"] != jsonResponseType {
		t.Fatal("response_format missing for glm-4 model")
	}
}

func TestOllamaProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]any{
				"models": []map[string]any{{"name": "qwen3:4b"}, {"name": "llama3:latest"}},
			})
		case "/api/generate":
			json.NewEncoder(w).Encode(map[string]any{"response": "OK"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, Config{ID: "local", Kind: KindOllama, BaseURL: server.URL, Model: "qwen3:4b"})
	probe := client.TestConnection(context.Background())
	if !probe.OK {
		t.Fatalf("probe failed: %s", probe.Detail)
	}

	missing := newTestClient(t, Config{ID: "local", Kind: KindOllama, BaseURL: server.URL, Model: "mistral"})
	probe = missing.TestConnection(context.Background())
	if probe.OK {
		t.Fatal("probe succeeded for missing model")
	}
	if !strings.Contains(probe.Detail, "mistral") || !strings.Contains(probe.Detail, "qwen3:4b") {
		t.Fatalf("detail missing model context: %q", probe.Detail)
	}
}

func TestProbeWithoutAPIKey(t *testing.T) {
	client := newTestClient(t, Config{ID: "hosted", Kind: KindOpenAI, BaseURL: "https://api.example.com", Model: "m"})
	probe := client.TestConnection(context.Background())
	if probe.OK {
		t.Fatal("probe succeeded without api key")
	}
	if !strings.Contains(probe.Detail, "api key") {
		t.Fatalf("detail = %q", probe.Detail)
	}
}

func TestModelAvailable(t *testing.T) {
	available := []string{"qwen3:4b", "llama3:latest"}
	cases := []struct {
		target string
		want   bool
	}{
		{"qwen3:4b", true},
		{"llama3", true},
		{"qwen3:8b", false},
		{"mistral", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := modelAvailable(tc.target, available); got != tc.want {
			t.Errorf("modelAvailable(%q) = %v, want %v", tc.target, got, tc.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry([]Config{
		{ID: "a", Kind: KindOllama, BaseURL: "http://localhost:11434", Model: "qwen3"},
		{ID: "b", Kind: KindOpenAI, BaseURL: "https://api.example.com", Model: "gpt-4o", APIKey: "k"},
	})
	first, err := registry.Client("a")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	second, err := registry.Client("a")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if first != second {
		t.Fatal("registry did not cache the client")
	}
	if _, err := registry.Client("missing"); err == nil {
		t.Fatal("expected error for unconfigured backend")
	}
	ids := registry.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("IDs = %v", ids)
	}
}

func TestUnknownKind(t *testing.T) {
	if _, err := New(Config{ID: "x", Kind: "grpc"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
