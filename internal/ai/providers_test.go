package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestClaudeClient_Generate(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"msg_1","content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("test-key")
	c.baseURL = srv.URL

	resp, err := c.Generate(context.Background(), &AIRequest{Prompt: "plan", System: "be terse", JSONMode: true})

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, defaultClaudeModel, got.Model)
	assert.Contains(t, got.System, "be terse")
	assert.Contains(t, got.System, "JSON")
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.EqualValues(t, 1, c.GetUsage().RequestCount)
}

func TestClaudeClient_ClassifiesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{529, true},
		{http.StatusUnauthorized, false},
		{http.StatusPaymentRequired, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := NewClaudeClient("k")
			c.baseURL = srv.URL
			_, err := c.Generate(context.Background(), &AIRequest{Prompt: "x"})

			require.Error(t, err)
			assert.Equal(t, tc.retryable, IsRetryable(err))
			assert.EqualValues(t, 1, c.GetUsage().ErrorCount)
		})
	}
}

func TestOpenAIClient_JSONMode(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"c1","model":"gpt-5","choices":[{"message":{"role":"assistant","content":"{}"}}],"usage":{"total_tokens":7}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test")
	c.baseURL = srv.URL

	resp, err := c.Generate(context.Background(), &AIRequest{Model: "gpt-5-mini", Prompt: "p", System: "s", JSONMode: true})

	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, "gpt-5-mini", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL + "/")
	_, err := c.Generate(context.Background(), &AIRequest{Model: "llama3.1:8b", Prompt: "p"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), prefixModelNotFound)
	assert.False(t, IsRetryable(err))
}

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, f.err
}

func TestGeminiClient_Generate(t *testing.T) {
	models := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: `{"ok":`}, {Text: `true}`}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     12,
			CandidatesTokenCount: 3,
			TotalTokenCount:      15,
		},
	}}
	g := newGeminiClient(models)

	resp, err := g.Generate(context.Background(), &AIRequest{Prompt: "p", System: "s", JSONMode: true, Temperature: 0.3})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, defaultGeminiModel, models.model)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
	require.NotNil(t, models.config.SystemInstruction)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestGeminiClient_ClassifiesQuotaErrors(t *testing.T) {
	g := newGeminiClient(&fakeModels{err: errors.New("Error 429, Message: quota, Status: RESOURCE_EXHAUSTED")})

	_, err := g.Generate(context.Background(), &AIRequest{Prompt: "p"})

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.EqualValues(t, 1, g.GetUsage().ErrorCount)
}
