package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	*usageTracker
	provider AIProvider
	content  string
	err      error

	mu    sync.Mutex
	calls []AIRequest
}

func newFakeClient(p AIProvider, content string, err error) *fakeClient {
	return &fakeClient{usageTracker: newUsageTracker(p), provider: p, content: content, err: err}
}

func (f *fakeClient) Generate(_ context.Context, req *AIRequest) (*AIResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &AIResponse{ID: req.ID, Provider: f.provider, Model: req.Model, Content: f.content}, nil
}

func (f *fakeClient) GetProvider() AIProvider        { return f.provider }
func (f *fakeClient) Health(ctx context.Context) error { return nil }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestProviderForModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  AIProvider
	}{
		{"claude-sonnet-4-5", ProviderClaude},
		{"Claude-Opus-4-1", ProviderClaude},
		{"gpt-5", ProviderGPT4},
		{"o3-mini", ProviderGPT4},
		{"o4-mini", ProviderGPT4},
		{"gemini-2.5-pro", ProviderGemini},
		{"llama3.1:8b", ProviderOllama},
		{"", ProviderOllama},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ProviderForModel(tc.model))
		})
	}
}

func TestRouter_RoutesByModelPrefix(t *testing.T) {
	claude := newFakeClient(ProviderClaude, "from claude", nil)
	gemini := newFakeClient(ProviderGemini, "from gemini", nil)
	router := NewAIRouter(nil, []AIClient{claude, gemini})

	resp, err := router.Generate(context.Background(), &AIRequest{Model: "gemini-2.5-flash", Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "from gemini", resp.Content)
	assert.Equal(t, 0, claude.callCount())
	require.Equal(t, 1, gemini.callCount())
	assert.Equal(t, "gemini-2.5-flash", gemini.calls[0].Model)
	assert.NotEmpty(t, gemini.calls[0].ID)
	assert.InDelta(t, 0.4, gemini.calls[0].Temperature, 0.0001)
}

func TestRouter_FallbackDropsForeignModel(t *testing.T) {
	claude := newFakeClient(ProviderClaude, "", fmt.Errorf("%s down", prefixServiceError))
	openai := newFakeClient(ProviderGPT4, "from openai", nil)

	var mu sync.Mutex
	results := map[string]int{}
	router := NewAIRouter(nil, []AIClient{claude, openai}, WithRecorder(func(p AIProvider, result string) {
		mu.Lock()
		results[string(p)+"/"+result]++
		mu.Unlock()
	}))

	resp, err := router.Generate(context.Background(), &AIRequest{Model: "claude-sonnet-4-5", Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, ProviderGPT4, resp.Provider)
	require.Equal(t, 1, openai.callCount())
	assert.Empty(t, openai.calls[0].Model, "a claude model id must not be sent to openai")
	assert.Equal(t, 1, results["claude/error"])
	assert.Equal(t, 1, results["gpt4/success"])
}

func TestRouter_AllProvidersFail(t *testing.T) {
	boom := errors.New("boom")
	router := NewAIRouter(nil, []AIClient{newFakeClient(ProviderClaude, "", boom)})

	_, err := router.Generate(context.Background(), &AIRequest{Model: "claude-sonnet-4-5"})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRouter_NoProvider(t *testing.T) {
	router := NewAIRouter(nil, nil)

	_, err := router.Generate(context.Background(), &AIRequest{Model: "gpt-5"})

	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRouter_OllamaDoesNotFallBackToPaidProviders(t *testing.T) {
	claude := newFakeClient(ProviderClaude, "paid", nil)
	ollama := newFakeClient(ProviderOllama, "", errors.New("model missing"))
	router := NewAIRouter(nil, []AIClient{claude, ollama})

	_, err := router.Generate(context.Background(), &AIRequest{Model: "llama3.1:8b"})

	require.Error(t, err)
	assert.Equal(t, 0, claude.callCount())
}

func TestRouter_RateLimitFallsThrough(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.RateLimits[ProviderClaude] = 1
	claude := newFakeClient(ProviderClaude, "claude", nil)
	openai := newFakeClient(ProviderGPT4, "openai", nil)
	router := NewAIRouter(cfg, []AIClient{claude, openai})

	first, err := router.Generate(context.Background(), &AIRequest{Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	second, err := router.Generate(context.Background(), &AIRequest{Model: "claude-sonnet-4-5"})
	require.NoError(t, err)

	assert.Equal(t, "claude", first.Content)
	assert.Equal(t, "openai", second.Content)
}

func TestRouter_CancelledContext(t *testing.T) {
	router := NewAIRouter(nil, []AIClient{newFakeClient(ProviderClaude, "x", nil)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Generate(ctx, &AIRequest{Model: "claude-sonnet-4-5"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouterConfig_WithRateLimit(t *testing.T) {
	base := DefaultRouterConfig()
	cfg := base.WithRateLimit(10)

	assert.Equal(t, 10, cfg.RateLimits[ProviderClaude])
	assert.Equal(t, 1000, cfg.RateLimits[ProviderOllama])
	assert.Equal(t, 100, base.RateLimits[ProviderClaude], "original config is not mutated")
}

func TestRouter_HealthStatusDefaultsHealthy(t *testing.T) {
	router := NewAIRouter(nil, []AIClient{newFakeClient(ProviderGemini, "x", nil)})

	assert.Equal(t, map[AIProvider]bool{ProviderGemini: true}, router.GetHealthStatus())
	assert.Contains(t, router.GetProviderUsage(), ProviderGemini)
}

func TestCleanKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quoted bearer value", `"Bearer sk-ant-abc123"`, "sk-ant-abc123"},
		{"single quotes and lower-case prefix", ` 'bearer sk-proj-9' `, "sk-proj-9"},
		{"escaped and real line breaks", "sk-ant-abc\\n123\r\n\t", "sk-ant-abc123"},
		{"zero-width characters", "AIza\u200bSy-\ufeffabc123", "AIzaSy-abc123"},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, cleanKey(tc.in))
		})
	}
}

func TestNewClients_SkipsBlankKeys(t *testing.T) {
	clients, err := NewClients(context.Background(), ProviderKeys{Anthropic: `"  "`, OpenAI: "Bearer sk-1"})

	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, ProviderGPT4, clients[0].GetProvider())
}
