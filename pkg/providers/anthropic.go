package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/snow-ghost/patrefine/pkg/registry"
	"github.com/snow-ghost/patrefine/pkg/tokens"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements the Provider interface for Anthropic Claude API
type AnthropicProvider struct {
	*BaseProvider
	client  *http.Client
	baseURL string
	apiKey  string
}

// AnthropicMessage represents a message in Anthropic format
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicRequest represents the request format for Anthropic API
type AnthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

// AnthropicResponse represents the response format from Anthropic API
type AnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	StopReason string `json:"stop_reason"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(baseURL, apiKey string, counter *tokens.Counter) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicProvider{
		BaseProvider: NewBaseProvider(counter),
		// generation of a whole model can take minutes
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Chat performs chat completion using Anthropic API
func (p *AnthropicProvider) Chat(ctx context.Context, mc registry.ModelConfig, req ChatRequest) (ChatResponse, error) {
	anthropicReq := AnthropicRequest{
		Model:       mc.Name(),
		MaxTokens:   maxTokens(mc, req),
		Temperature: temperature(mc, req),
	}
	var system []string
	for _, msg := range req.Messages {
		// Anthropic takes the system prompt as a top-level field
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		anthropicReq.Messages = append(anthropicReq.Messages, AnthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	anthropicReq.System = strings.Join(system, "\n\n")

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, statusError("anthropic", resp)
	}

	var anthropicResp AnthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return ChatResponse{}, fmt.Errorf("failed to decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, content := range anthropicResp.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}

	chatResp := ChatResponse{
		Text: text.String(),
		Usage: Usage{
			PromptTokens:     anthropicResp.Usage.InputTokens,
			CompletionTokens: anthropicResp.Usage.OutputTokens,
		},
		Model:        mc.ID,
		Provider:     mc.Provider,
		FinishReason: anthropicResp.StopReason,
	}
	p.fillUsage(&chatResp, mc, req)
	return chatResp, nil
}
