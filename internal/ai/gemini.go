package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the slice of the genai Models service the client uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient wraps the official genai client
type GeminiClient struct {
	*usageTracker
	models contentGenerator
}

// NewGeminiClient creates a Gemini client backed by the Gemini API
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cleanKey(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiClient(cli.Models), nil
}

func newGeminiClient(models contentGenerator) *GeminiClient {
	return &GeminiClient{usageTracker: newUsageTracker(ProviderGemini), models: models}
}

// Generate implements the AIClient interface for Gemini
func (g *GeminiClient) Generate(ctx context.Context, req *AIRequest) (*AIResponse, error) {
	startTime := time.Now()

	model := defaultGeminiModel
	if req.Model != "" {
		model = req.Model
	}

	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokensOr(req.MaxTokens, 8192)),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.models.GenerateContent(ctx, model, []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}, cfg)
	if err != nil {
		err = classifyGeminiError(err)
		g.recordError()
		return failedResponse(req, ProviderGemini, err, startTime), err
	}

	var content strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				content.WriteString(part.Text)
			}
		}
	}

	usage := &Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	usage.Cost = float64(usage.PromptTokens)/1000.0*0.0003 + float64(usage.CompletionTokens)/1000.0*0.0025
	g.record(usage.TotalTokens, usage.Cost, time.Since(startTime))

	return &AIResponse{
		ID:        req.ID,
		Provider:  ProviderGemini,
		Model:     model,
		Content:   content.String(),
		Usage:     usage,
		Duration:  time.Since(startTime),
		CreatedAt: time.Now(),
	}, nil
}

// classifyGeminiError maps genai API errors onto the shared error prefixes
func classifyGeminiError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%s Gemini rate limit exceeded: %w", prefixRateLimit, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "UNAUTHENTICATED"):
		return fmt.Errorf("%s Invalid Gemini API key: %w", prefixUnauthorized, err)
	case strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED"):
		return fmt.Errorf("%s Gemini access denied: %w", prefixForbidden, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || strings.Contains(msg, "UNAVAILABLE"):
		return fmt.Errorf("%s Gemini service temporarily unavailable: %w", prefixServiceError, err)
	default:
		return err
	}
}

// GetProvider returns the provider identifier
func (g *GeminiClient) GetProvider() AIProvider {
	return ProviderGemini
}

// Health issues a minimal generation against the default model
func (g *GeminiClient) Health(ctx context.Context) error {
	_, err := g.models.GenerateContent(ctx, defaultGeminiModel,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: "ping"}}}},
		&genai.GenerateContentConfig{MaxOutputTokens: 5},
	)
	return err
}
