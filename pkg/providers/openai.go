package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/snow-ghost/patrefine/pkg/limiter"
	"github.com/snow-ghost/patrefine/pkg/registry"
	"github.com/snow-ghost/patrefine/pkg/tokens"
)

// OpenAIProvider implements the Provider interface for OpenAI and any
// OpenAI-compatible endpoint (vLLM, LM Studio, OpenRouter).
type OpenAIProvider struct {
	*BaseProvider
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(baseURL, apiKey string, counter *tokens.Counter) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIProvider{
		BaseProvider: NewBaseProvider(counter),
		client:       openai.NewClientWithConfig(config),
	}
}

// Chat performs chat completion using OpenAI API
func (p *OpenAIProvider) Chat(ctx context.Context, mc registry.ModelConfig, req ChatRequest) (ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       mc.Name(),
		Messages:    messages,
		MaxTokens:   maxTokens(mc, req),
		Temperature: float32(temperature(mc, req)),
	})
	if err != nil {
		return ChatResponse{}, openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("openai API returned no choices")
	}

	chatResp := ChatResponse{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
		Model:        mc.ID,
		Provider:     mc.Provider,
		FinishReason: string(resp.Choices[0].FinishReason),
	}
	p.fillUsage(&chatResp, mc, req)
	return chatResp, nil
}

// openAIError keeps the HTTP status visible to the retry policy.
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return limiter.NewHTTPError(apiErr.HTTPStatusCode, "openai API error", apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return limiter.NewHTTPError(reqErr.HTTPStatusCode, "openai request failed", reqErr.Error())
	}
	return fmt.Errorf("openai API request failed: %w", err)
}
