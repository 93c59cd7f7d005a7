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

// OllamaProvider implements the Provider interface for Ollama API
type OllamaProvider struct {
	*BaseProvider
	client  *http.Client
	baseURL string
}

// OllamaRequest represents the request format for Ollama API
type OllamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// OllamaResponse represents the response format from Ollama API
type OllamaResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(baseURL string, counter *tokens.Counter) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		BaseProvider: NewBaseProvider(counter),
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Chat performs chat completion using Ollama API
func (p *OllamaProvider) Chat(ctx context.Context, mc registry.ModelConfig, req ChatRequest) (ChatResponse, error) {
	ollamaReq := OllamaRequest{
		Model:    mc.Name(),
		Messages: req.Messages,
		Stream:   false,
		Options: map[string]any{
			"num_predict": maxTokens(mc, req),
		},
	}
	if t := temperature(mc, req); t > 0 {
		ollamaReq.Options["temperature"] = t
	}

	reqBody, err := json.Marshal(ollamaReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("ollama API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, statusError("ollama", resp)
	}

	var ollamaResp OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return ChatResponse{}, fmt.Errorf("failed to decode ollama response: %w", err)
	}

	chatResp := ChatResponse{
		Text: ollamaResp.Message.Content,
		Usage: Usage{
			PromptTokens:     ollamaResp.PromptEvalCount,
			CompletionTokens: ollamaResp.EvalCount,
		},
		Model:        mc.ID,
		Provider:     mc.Provider,
		FinishReason: ollamaResp.DoneReason,
	}
	p.fillUsage(&chatResp, mc, req)
	return chatResp, nil
}
