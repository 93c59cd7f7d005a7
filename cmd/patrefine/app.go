package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/snow-ghost/patrefine/checker/pat"
	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/embeddings"
	"github.com/snow-ghost/patrefine/llm"
	llmmock "github.com/snow-ghost/patrefine/llm/mock"
	"github.com/snow-ghost/patrefine/oracle"
	"github.com/snow-ghost/patrefine/pkg/limiter"
	"github.com/snow-ghost/patrefine/pkg/logging"
	"github.com/snow-ghost/patrefine/pkg/metrics"
	"github.com/snow-ghost/patrefine/pkg/providers"
	"github.com/snow-ghost/patrefine/pkg/registry"
	"github.com/snow-ghost/patrefine/pkg/tokens"
	"github.com/snow-ghost/patrefine/pkg/tracing"
	"github.com/snow-ghost/patrefine/prompt"
	"github.com/snow-ghost/patrefine/retrieval"
	"github.com/snow-ghost/patrefine/store"
	"github.com/snow-ghost/patrefine/vectordb"
	"github.com/snow-ghost/patrefine/worker"
)

// app is the wired process: logger, metrics, tracing and a controller.
type app struct {
	cfg        *worker.Config
	logger     *logging.Logger
	registry   *prometheus.Registry
	controller *worker.Controller
	closers    []func(context.Context) error
}

func newApp(ctx context.Context, cfg *worker.Config) (*app, error) {
	lg, err := logging.NewLogger(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stderr"})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(lg.GetSlog())

	a := &app{cfg: cfg, logger: lg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPrometheusMetrics(a.registry)

	shutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "patrefine",
		ServiceVersion: version,
		JaegerEndpoint: cfg.JaegerEndpoint,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	gen, err := newGenerator(ctx, cfg, lg, m)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	kb, err := a.openKB()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	syntax, err := prompt.LoadSyntax(cfg.SyntaxPath)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	retriever, err := newRetriever(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	checkerCfg := pat.DefaultConfig()
	checkerCfg.Command = cfg.CheckerCommand
	checkerCfg.Binary = cfg.CheckerBinary
	checkerCfg.Module = cfg.CheckerModule
	checkerCfg.Timeout = cfg.CheckerTimeout
	adapter := oracle.New(pat.New(checkerCfg))
	adapter.Observer = oracle.Observers{m, lg}

	c := worker.NewController(gen, adapter, store.New(cfg.WorkDir), kb)
	c.Retriever = retriever
	c.Syntax = syntax
	c.Metrics = m
	c.Budgets = cfg.Budgets()
	a.controller = c

	slog.InfoContext(ctx, "patrefine configured",
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"kb_backend", cfg.KBBackend,
		"work_dir", cfg.WorkDir,
		"checker_timeout", cfg.CheckerTimeout)
	return a, nil
}

// Close releases everything the app opened, last opened first.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *app) openKB() (core.KnowledgeBase, error) {
	kb, closeKB, err := openKnowledgeBase(a.cfg.KBBackend, a.cfg.KBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return closeKB() })
	return kb, nil
}

// newGenerator builds the generator for LLM_PROVIDER. The mock provider replays the
// JSON array of responses in LLM_MOCK_RESPONSES.
func newGenerator(ctx context.Context, cfg *worker.Config, lg *logging.Logger, m *metrics.PrometheusMetrics) (core.Generator, error) {
	if cfg.LLMProvider == "mock" {
		if cfg.LLMMockResponses == "" {
			return nil, fmt.Errorf("LLM_MOCK_RESPONSES is required for the mock provider")
		}
		return llmmock.Load(cfg.LLMMockResponses)
	}

	reg, err := registry.NewLoader(cfg.ModelsConfig).LoadRegistry()
	if err != nil {
		return nil, err
	}
	mc, ok := reg.Resolve(cfg.LLMProvider, cfg.LLMModel)
	if !ok {
		return nil, fmt.Errorf("no model configured for provider %q", cfg.LLMProvider)
	}
	if cfg.LLMBaseURL != "" {
		mc.BaseURL = cfg.LLMBaseURL
	}

	p, err := providers.NewProviderFactory(tokens.NewCounter()).CreateProviderFromConfig(ctx, mc)
	if err != nil {
		return nil, err
	}
	guard := limiter.NewGuard(limiter.DefaultRetryConfig(), limiter.DefaultCircuitBreakerConfig(), lg.GetZap())
	return llm.New(p, mc, llm.Options{Guard: guard, Recorder: m}), nil
}

// newRetriever indexes the example file. Without examples there is no retriever.
func newRetriever(ctx context.Context, cfg *worker.Config) (core.ExampleRetriever, error) {
	examples, err := retrieval.LoadExamples(cfg.RAGPath)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		slog.InfoContext(ctx, "no retrieval examples, generating without examples", "path", cfg.RAGPath)
		return nil, nil
	}

	embedder, dim, err := newEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, err
	}
	idx, err := retrieval.NewIndex(embedder,
		vectordb.NewMemoryVectorStore(&vectordb.VectorStoreConfig{Collection: "examples", Dimension: dim}),
		retrieval.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	if err := idx.Build(ctx, examples); err != nil {
		return nil, err
	}
	return idx, nil
}

func newEmbedder(ctx context.Context, kind string) (embeddings.Embedder, int, error) {
	switch kind {
	case "openai":
		cfg := embeddings.DefaultConfig()
		e, err := embeddings.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), os.Getenv("EMBEDDING_BASE_URL"), cfg)
		return e, cfg.Dimension, err
	case "gemini":
		e, err := embeddings.NewGenAIEmbedder(ctx, os.Getenv("GEMINI_API_KEY"), "")
		return e, 3072, err
	case "", "tfidf":
		cfg := embeddings.LocalConfig()
		return embeddings.NewTFIDFEmbedder(cfg), cfg.Dimension, nil
	default:
		return nil, 0, fmt.Errorf("unsupported embedder %q", kind)
	}
}
