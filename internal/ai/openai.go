package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOpenAIModel = "gpt-5"

// OpenAIClient implements the OpenAI chat completions client
type OpenAIClient struct {
	*usageTracker
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Chat completions wire format, shared with Ollama's compatible endpoint
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float32         `json:"temperature,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (r *chatResponse) content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

func buildChatRequest(req *AIRequest, model string, maxTokens int) *chatRequest {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	out := &chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokensOr(req.MaxTokens, maxTokens),
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return out
}

// NewOpenAIClient creates a new OpenAI API client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		usageTracker: newUsageTracker(ProviderGPT4),
		apiKey:       cleanKey(apiKey),
		baseURL:      "https://api.openai.com/v1/chat/completions",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Generate implements the AIClient interface for OpenAI
func (o *OpenAIClient) Generate(ctx context.Context, req *AIRequest) (*AIResponse, error) {
	startTime := time.Now()

	model := defaultOpenAIModel
	if req.Model != "" {
		model = req.Model
	}
	openAIReq := buildChatRequest(req, model, 4096)

	resp, err := o.makeRequest(ctx, openAIReq)
	if err != nil {
		o.recordError()
		return failedResponse(req, ProviderGPT4, err, startTime), err
	}

	cost := o.calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	o.record(resp.Usage.TotalTokens, cost, time.Since(startTime))

	return &AIResponse{
		ID:       req.ID,
		Provider: ProviderGPT4,
		Model:    model,
		Content:  resp.content(),
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			Cost:             cost,
		},
		Duration:  time.Since(startTime),
		CreatedAt: time.Now(),
	}, nil
}

// makeRequest sends HTTP request to OpenAI API
func (o *OpenAIClient) makeRequest(ctx context.Context, req *chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
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
			return nil, fmt.Errorf("%s OpenAI rate limit exceeded", prefixRateLimit)
		case 401:
			return nil, fmt.Errorf("%s Invalid OpenAI API key", prefixUnauthorized)
		case 403:
			return nil, fmt.Errorf("%s OpenAI access denied", prefixForbidden)
		case 500, 502, 503, 504:
			return nil, fmt.Errorf("%s OpenAI service temporarily unavailable (status %d)", prefixServiceError, resp.StatusCode)
		default:
			return nil, fmt.Errorf("API_ERROR: OpenAI request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}

	var openAIResp chatResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if openAIResp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}

	return &openAIResp, nil
}

// GetProvider returns the provider identifier
func (o *OpenAIClient) GetProvider() AIProvider {
	return ProviderGPT4
}

// Health checks if OpenAI API is accessible
func (o *OpenAIClient) Health(ctx context.Context) error {
	_, err := o.makeRequest(ctx, &chatRequest{
		Model:     "gpt-4o-mini",
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 5,
	})
	return err
}

func (o *OpenAIClient) calculateCost(inputTokens, outputTokens int) float64 {
	inputCostPer1K := 0.00125
	outputCostPer1K := 0.01

	return float64(inputTokens)/1000.0*inputCostPer1K + float64(outputTokens)/1000.0*outputCostPer1K
}
