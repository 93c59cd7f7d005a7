package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/snow-ghost/patrefine/pkg/limiter"
	"github.com/snow-ghost/patrefine/pkg/registry"
	"github.com/snow-ghost/patrefine/pkg/tokens"
)

// GeminiProvider implements the Provider interface for the Gemini API.
type GeminiProvider struct {
	*BaseProvider
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string, counter *tokens.Counter) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiProvider{
		BaseProvider: NewBaseProvider(counter),
		client:       client,
	}, nil
}

// Chat performs a single-turn generation. System messages become the system instruction.
func (p *GeminiProvider) Chat(ctx context.Context, mc registry.ModelConfig, req ChatRequest) (ChatResponse, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(mc, req)),
	}
	if t := temperature(mc, req); t > 0 {
		config.Temperature = genai.Ptr(float32(t))
	}

	var system []string
	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, mc.Name(), contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return ChatResponse{}, limiter.NewHTTPError(apiErr.Code, "gemini API error", apiErr.Message)
		}
		return ChatResponse{}, fmt.Errorf("gemini API request failed: %w", err)
	}

	chatResp := ChatResponse{
		Text:     resp.Text(),
		Model:    mc.ID,
		Provider: mc.Provider,
	}
	if resp.UsageMetadata != nil {
		chatResp.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) > 0 {
		chatResp.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	p.fillUsage(&chatResp, mc, req)
	return chatResp, nil
}
