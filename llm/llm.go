// Package llm adapts a chat provider to the single-prompt generator the
// refinement loop talks to.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/pkg/limiter"
	"github.com/snow-ghost/patrefine/pkg/providers"
	"github.com/snow-ghost/patrefine/pkg/registry"
	"github.com/snow-ghost/patrefine/pkg/tracing"
)

// Recorder receives per-request metrics.
type Recorder interface {
	RecordRequest(provider, model, status string, d time.Duration)
	RecordTokens(provider, model string, inputTokens, outputTokens int)
}

// Options tune a Generator. Zero values are usable.
type Options struct {
	Guard    *limiter.Guard
	Recorder Recorder
	// System is sent as a system message ahead of every prompt when set.
	System string
}

// Generator implements core.Generator over a chat provider.
type Generator struct {
	provider providers.Provider
	model    registry.ModelConfig
	guard    *limiter.Guard
	recorder Recorder
	system   string
	tracer   trace.Tracer
}

var _ core.Generator = (*Generator)(nil)

// New creates a generator for one model.
func New(p providers.Provider, mc registry.ModelConfig, opts Options) *Generator {
	if opts.Guard == nil {
		opts.Guard = limiter.NewGuard(nil, nil, nil)
	}
	return &Generator{
		provider: p,
		model:    mc,
		guard:    opts.Guard,
		recorder: opts.Recorder,
		system:   opts.System,
		tracer:   otel.Tracer("github.com/snow-ghost/patrefine/llm"),
	}
}

// Model returns the configured model.
func (g *Generator) Model() registry.ModelConfig {
	return g.model
}

// Generate sends prompt as a single user turn and returns the completion text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartRequestSpan(ctx, g.tracer, g.model.Name(), g.model.Provider)
	defer span.End()

	req := providers.ChatRequest{}
	if g.system != "" {
		req.Messages = append(req.Messages, providers.Message{Role: "system", Content: g.system})
	}
	req.Messages = append(req.Messages, providers.Message{Role: "user", Content: prompt})

	start := time.Now()
	var resp providers.ChatResponse
	err := g.guard.Execute(ctx, g.model, func(ctx context.Context) error {
		var err error
		resp, err = g.provider.Chat(ctx, g.model, req)
		return err
	})
	elapsed := time.Since(start)

	if err != nil {
		g.record("error", elapsed, providers.Usage{})
		tracing.RecordSpanError(span, err)
		slog.WarnContext(ctx, "generator request failed",
			"provider", g.model.Provider, "model", g.model.Name(), "error", err)
		return "", fmt.Errorf("generate with %s: %w", g.model.ID, err)
	}

	g.record("ok", elapsed, resp.Usage)
	tracing.RecordSpanTokens(span, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	slog.DebugContext(ctx, "generator request completed",
		"provider", g.model.Provider,
		"model", g.model.Name(),
		"duration_ms", elapsed.Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"estimated", resp.Usage.Estimated,
		"finish_reason", resp.FinishReason,
	)
	return resp.Text, nil
}

func (g *Generator) record(status string, d time.Duration, u providers.Usage) {
	if g.recorder == nil {
		return
	}
	g.recorder.RecordRequest(g.model.Provider, g.model.Name(), status, d)
	g.recorder.RecordTokens(g.model.Provider, g.model.Name(), u.PromptTokens, u.CompletionTokens)
}
