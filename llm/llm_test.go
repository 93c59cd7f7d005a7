package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/patrefine/pkg/limiter"
	"github.com/snow-ghost/patrefine/pkg/providers"
	"github.com/snow-ghost/patrefine/pkg/registry"
)

type fakeProvider struct {
	errs []error
	reqs []providers.ChatRequest
}

func (f *fakeProvider) Chat(ctx context.Context, mc registry.ModelConfig, req providers.ChatRequest) (providers.ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return providers.ChatResponse{}, err
	}
	return providers.ChatResponse{
		Text:  "```csp\nP() = Skip;\n```",
		Usage: providers.Usage{PromptTokens: 12, CompletionTokens: 7},
	}, nil
}

type recorder struct {
	mu       sync.Mutex
	statuses []string
	input    int
}

func (r *recorder) RecordRequest(provider, model, status string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) RecordTokens(provider, model string, in, out int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input += in
}

func fastGuard() *limiter.Guard {
	cfg := limiter.DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.Jitter = false
	return limiter.NewGuard(cfg, nil, nil)
}

func TestGenerator_Generate(t *testing.T) {
	p := &fakeProvider{}
	rec := &recorder{}
	g := New(p, registry.ModelConfig{ID: "anthropic:claude", Provider: "anthropic"}, Options{
		Guard:    fastGuard(),
		Recorder: rec,
		System:   "You write PAT models.",
	})

	text, err := g.Generate(context.Background(), "model a lift")
	require.NoError(t, err)
	assert.Contains(t, text, "P() = Skip;")

	require.Len(t, p.reqs, 1)
	assert.Equal(t, []providers.Message{
		{Role: "system", Content: "You write PAT models."},
		{Role: "user", Content: "model a lift"},
	}, p.reqs[0].Messages)
	assert.Equal(t, []string{"ok"}, rec.statuses)
	assert.Equal(t, 12, rec.input)
}

func TestGenerator_RetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{errs: []error{limiter.NewHTTPError(529, "overloaded", "")}}
	g := New(p, registry.ModelConfig{ID: "anthropic:claude", Provider: "anthropic"}, Options{Guard: fastGuard()})

	_, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Len(t, p.reqs, 2)
}

func TestGenerator_PermanentError(t *testing.T) {
	boom := errors.New("invalid api key")
	p := &fakeProvider{errs: []error{boom}}
	rec := &recorder{}
	g := New(p, registry.ModelConfig{ID: "openai:gpt-4o", Provider: "openai"}, Options{Guard: fastGuard(), Recorder: rec})

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "openai:gpt-4o")
	assert.Len(t, p.reqs, 1)
	assert.Equal(t, []string{"error"}, rec.statuses)
}
