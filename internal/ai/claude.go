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

const (
	defaultClaudeModel = "claude-sonnet-4-5"
	claudeHealthModel  = "claude-haiku-4-5"
)

// ClaudeClient implements the Claude/Anthropic API client
type ClaudeClient struct {
	*usageTracker
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Claude API request/response structures
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float32         `json:"temperature,omitempty"`
	System      string          `json:"system,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClaudeClient creates a new Claude API client
func NewClaudeClient(apiKey string) *ClaudeClient {
	return &ClaudeClient{
		usageTracker: newUsageTracker(ProviderClaude),
		apiKey:       cleanKey(apiKey),
		baseURL:      "https://api.anthropic.com/v1/messages",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Generate implements the AIClient interface for Claude
func (c *ClaudeClient) Generate(ctx context.Context, req *AIRequest) (*AIResponse, error) {
	startTime := time.Now()

	model := defaultClaudeModel
	if req.Model != "" {
		model = req.Model
	}

	system := req.System
	if req.JSONMode {
		// Anthropic has no JSON response mode; ask for it in the system prompt.
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}

	claudeReq := &claudeRequest{
		Model:       model,
		MaxTokens:   maxTokensOr(req.MaxTokens, 4096),
		Messages:    []claudeMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		System:      system,
	}

	resp, err := c.makeRequest(ctx, claudeReq)
	if err != nil {
		c.recordError()
		return failedResponse(req, ProviderClaude, err, startTime), err
	}

	cost := c.calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	c.record(resp.Usage.InputTokens+resp.Usage.OutputTokens, cost, time.Since(startTime))

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &AIResponse{
		ID:       req.ID,
		Provider: ProviderClaude,
		Model:    model,
		Content:  content.String(),
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			Cost:             cost,
		},
		Duration:  time.Since(startTime),
		CreatedAt: time.Now(),
	}, nil
}

// makeRequest sends HTTP request to Claude API
func (c *ClaudeClient) makeRequest(ctx context.Context, req *claudeRequest) (*claudeResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case 429:
			return nil, fmt.Errorf("%s Claude API rate limit exceeded", prefixRateLimit)
		case 403:
			return nil, fmt.Errorf("%s Claude API access denied - check API key permissions", prefixForbidden)
		case 401:
			return nil, fmt.Errorf("%s Invalid Claude API key", prefixUnauthorized)
		case 402:
			return nil, fmt.Errorf("%s Claude API quota exhausted", prefixQuotaExceeded)
		case 500, 502, 503, 504, 529:
			return nil, fmt.Errorf("%s Claude service temporarily unavailable (status %d)", prefixServiceError, resp.StatusCode)
		default:
			return nil, fmt.Errorf("API_ERROR: Claude request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if claudeResp.Error != nil {
		return nil, fmt.Errorf("Claude API error: %s", claudeResp.Error.Message)
	}

	return &claudeResp, nil
}

// GetProvider returns the provider identifier
func (c *ClaudeClient) GetProvider() AIProvider {
	return ProviderClaude
}

// Health checks if Claude API is accessible
func (c *ClaudeClient) Health(ctx context.Context) error {
	_, err := c.makeRequest(ctx, &claudeRequest{
		Model:     claudeHealthModel,
		MaxTokens: 5,
		Messages:  []claudeMessage{{Role: "user", Content: "ping"}},
	})
	return err
}

// calculateCost estimates cost based on Sonnet-class pricing
func (c *ClaudeClient) calculateCost(inputTokens, outputTokens int) float64 {
	inputCostPer1K := 0.003
	outputCostPer1K := 0.015

	return float64(inputTokens)/1000.0*inputCostPer1K + float64(outputTokens)/1000.0*outputCostPer1K
}

func maxTokensOr(requested, def int) int {
	if requested > 0 {
		return requested
	}
	return def
}
