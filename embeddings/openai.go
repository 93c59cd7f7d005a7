package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements the Embedder interface using an OpenAI-compatible embeddings API
type OpenAIEmbedder struct {
	client *openai.Client
	config *EmbeddingConfig
}

// NewOpenAIEmbedder creates an embedder. An empty baseURL uses the OpenAI endpoint.
func NewOpenAIEmbedder(apiKey, baseURL string, config *EmbeddingConfig) (*OpenAIEmbedder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// EmbedText converts text to a vector using the embeddings endpoint
func (o *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds multiple texts in a single request, in input order.
func (o *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = truncate(text, o.config.MaxTokens)
	}

	req := openai.EmbeddingRequest{
		Input: input,
		Model: openai.SmallEmbedding3,
	}
	if o.config.Model != "" {
		req.Model = openai.EmbeddingModel(o.config.Model)
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(result) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		result[d.Index] = d.Embedding
	}
	return result, nil
}

// truncate cuts text to roughly maxTokens tokens at four characters per token.
func truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}
