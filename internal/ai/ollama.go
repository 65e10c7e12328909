package ai

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

const defaultOllamaModel = "qwen2.5:14b"

// OllamaClient implements the Ollama local AI API client.
// Ollama serves an OpenAI-compatible chat completions endpoint.
type OllamaClient struct {
	*usageTracker
	baseURL    string
	httpClient *http.Client
}

// NewOllamaClient creates a new Ollama API client
func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		usageTracker: newUsageTracker(ProviderOllama),
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // local inference on large models is slow
		},
	}
}

// Generate implements the AIClient interface for Ollama
func (o *OllamaClient) Generate(ctx context.Context, req *AIRequest) (*AIResponse, error) {
	startTime := time.Now()

	model := defaultOllamaModel
	if req.Model != "" {
		model = req.Model
	}

	resp, err := o.makeRequest(ctx, buildChatRequest(req, model, 4096))
	if err != nil {
		o.recordError()
		return failedResponse(req, ProviderOllama, err, startTime), err
	}

	// local inference is free
	o.record(resp.Usage.TotalTokens, 0, time.Since(startTime))

	return &AIResponse{
		ID:       req.ID,
		Provider: ProviderOllama,
		Model:    model,
		Content:  resp.content(),
		Metadata: map[string]interface{}{
			"model": resp.Model,
		},
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Duration:  time.Since(startTime),
		CreatedAt: time.Now(),
	}, nil
}

// makeRequest sends HTTP request to Ollama API
func (o *OllamaClient) makeRequest(ctx context.Context, req *chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama server at %s: %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case 404:
			return nil, fmt.Errorf("%s Model '%s' not installed. Run: ollama pull %s", prefixModelNotFound, req.Model, req.Model)
		case 500, 502, 503, 504:
			return nil, fmt.Errorf("%s Ollama server error (status %d)", prefixServiceError, resp.StatusCode)
		default:
			return nil, fmt.Errorf("API_ERROR: Ollama request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}

	var ollamaResp chatResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if ollamaResp.Error != nil {
		return nil, fmt.Errorf("Ollama API error: %s", ollamaResp.Error.Message)
	}
	return &ollamaResp, nil
}

// GetProvider returns the provider identifier
func (o *OllamaClient) GetProvider() AIProvider {
	return ProviderOllama
}

// Health checks if the Ollama server is reachable
func (o *OllamaClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("Ollama server not reachable at %s: %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s Ollama health check returned status %d", prefixServiceError, resp.StatusCode)
	}
	return nil
}
