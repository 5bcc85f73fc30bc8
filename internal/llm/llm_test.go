package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	for _, p := range []string{"anthropic", "openai", "openrouter"} {
		if _, err := NewProvider(p, "some-model"); err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	if _, err := NewProvider("unknown", "some-model"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesProviders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("OLLAMA_HOST", "")

	for _, name := range []string{"anthropic", "openai", "openrouter", "ollama"} {
		provider, err := NewProvider(name, "m")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if provider.Name() != name {
			t.Errorf("expected name %q, got %q", name, provider.Name())
		}
	}

	provider, _ := NewProvider("ollama", "llama3")
	if provider.(*OllamaProvider).baseURL != "http://localhost:11434" {
		t.Errorf("expected default ollama host, got %q", provider.(*OllamaProvider).baseURL)
	}
}

func TestOpenAICompatibleProvider(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"{\"total\": 5}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`)
	}))
	defer srv.Close()

	p := NewOpenAICompatibleProvider("gateway", "key", srv.URL, "m")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{System("sys"), User("hi")},
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `{"total": 5}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.InputTokens != 7 || resp.OutputTokens != 3 {
		t.Errorf("unexpected usage %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if got["model"] != "m" {
		t.Errorf("expected default model in request, got %v", got["model"])
	}
	if got["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("expected default max_tokens, got %v", got["max_tokens"])
	}
}

func TestAnthropicProviderSplitsSystemPrompt(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}],"model":"claude","stop_reason":"end_turn","usage":{"input_tokens":4,"output_tokens":2}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", "claude")
	p.url = srv.URL
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{System("one"), System("two"), User("q")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ab" {
		t.Errorf("expected concatenated text, got %q", resp.Content)
	}
	if got.System != "one\n\ntwo" {
		t.Errorf("unexpected system prompt %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestAnthropicProviderSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", "claude")
	p.url = srv.URL
	_, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{User("q")}})
	if err == nil || !strings.Contains(err.Error(), "slow down") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"ok"},"model":"llama3","done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":1}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "llama3")
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{User("q")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" || resp.InputTokens != 5 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestOllamaProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "nope").Complete(context.Background(), CompletionRequest{})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{Messages: []Message{User("hello")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{Messages: []Message{User("hello")}}
	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, req); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	if _, err := rl.Complete(ctx, req); err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls to reach the provider, got %d", mock.CallCount())
	}
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeoutProvider(t *testing.T) {
	p := Wrap(blockingProvider{}, Options{Timeout: 20 * time.Millisecond})
	_, err := p.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWrapWithoutOptionsIsIdentity(t *testing.T) {
	mock := NewMockProvider("test")
	if Wrap(mock, Options{}) != Provider(mock) {
		t.Error("expected Wrap with zero options to return the provider unchanged")
	}
}

func TestUsageTracker(t *testing.T) {
	mock := NewMockProvider("test")
	tracker := NewUsageTracker(mock, "gpt-4o")

	for i := 0; i < 3; i++ {
		if _, err := tracker.Complete(context.Background(), CompletionRequest{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	mock.Err = errors.New("down")
	_, _ = tracker.Complete(context.Background(), CompletionRequest{})

	u := tracker.Usage()
	if u.Calls != 4 {
		t.Errorf("expected 4 calls, got %d", u.Calls)
	}
	if u.InputTokens != 30 || u.OutputTokens != 60 {
		t.Errorf("unexpected tokens %d/%d", u.InputTokens, u.OutputTokens)
	}
	if u.CostUSD <= 0 {
		t.Errorf("expected a priced usage, got %f", u.CostUSD)
	}
}

func TestEstimateCostUnknownModel(t *testing.T) {
	if cost := EstimateCost("unknown-model", 1000, 500); cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestEstimateCostAccuracy(t *testing.T) {
	// gpt-4-turbo-preview: $10/1M input, $30/1M output
	cost := EstimateCost("gpt-4-turbo-preview", 1_000_000, 1_000_000)
	expected := 40.0
	if cost < expected-0.01 || cost > expected+0.01 {
		t.Errorf("expected cost ~$%.2f, got $%.2f", expected, cost)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
		{"a longer piece of text that has more characters", 11},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
