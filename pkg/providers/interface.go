// Package providers talks to hosted and local language models.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/snow-ghost/patrefine/pkg/limiter"
	"github.com/snow-ghost/patrefine/pkg/registry"
	"github.com/snow-ghost/patrefine/pkg/tokens"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage counts tokens consumed by one call.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// ChatResponse is a provider-neutral completion.
type ChatResponse struct {
	Text         string `json:"text"`
	Usage        Usage  `json:"usage"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Chat performs chat completion
	Chat(ctx context.Context, mc registry.ModelConfig, req ChatRequest) (ChatResponse, error)
}

// BaseProvider provides common functionality for all providers
type BaseProvider struct {
	counter *tokens.Counter
}

// NewBaseProvider creates a new base provider
func NewBaseProvider(counter *tokens.Counter) *BaseProvider {
	if counter == nil {
		counter = tokens.NewCounter()
	}
	return &BaseProvider{counter: counter}
}

// EstimateUsage estimates token usage when not provided by the provider
func (b *BaseProvider) EstimateUsage(model string, messages []Message, responseText string) Usage {
	u := Usage{Estimated: true}
	for _, msg := range messages {
		u.PromptTokens += b.counter.Count(model, msg.Content)
	}
	u.CompletionTokens = b.counter.Count(model, responseText)
	return u
}

// fillUsage replaces an empty provider-reported usage with an estimate.
func (b *BaseProvider) fillUsage(resp *ChatResponse, mc registry.ModelConfig, req ChatRequest) {
	if resp.Usage.PromptTokens == 0 && resp.Usage.CompletionTokens == 0 {
		resp.Usage = b.EstimateUsage(mc.Name(), req.Messages, resp.Text)
	}
}

// statusError converts a non-2xx response into a retry-aware error.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return limiter.NewHTTPError(resp.StatusCode, fmt.Sprintf("%s API returned %s", provider, resp.Status), string(body))
}

// maxTokens picks the request limit, then the model's, then a default of 8192.
func maxTokens(mc registry.ModelConfig, req ChatRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if mc.MaxTokens > 0 {
		return mc.MaxTokens
	}
	return 8192
}

func temperature(mc registry.ModelConfig, req ChatRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return mc.Temperature
}
