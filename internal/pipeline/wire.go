package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/catalog"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/dimensional"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/extraction"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm/gemini"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm/openai"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/pricing"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/textlayer"
)

// Components is everything a binary needs after Build.
type Components struct {
	Processor *Processor
	Generator llm.Generator
	Index     *catalog.Index
	Engine    *pricing.Engine
}

// NewGenerator selects the generative client named by cfg.Provider.
func NewGenerator(cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, error) {
	switch cfg.Provider {
	case "", "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			RatePerSec:  cfg.RatePerSec,
			Burst:       cfg.Burst,
		}, logger), nil
	case "gemini":
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			RatePerSec:  cfg.RatePerSec,
			Burst:       cfg.Burst,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}

// OpenCatalog builds the vector index and, when the index is empty and a
// catalog file is configured, loads the file into it.
func OpenCatalog(ctx context.Context, cfg common.CatalogConfig, openAIKey string, logger *slog.Logger) (*catalog.Index, error) {
	idx, err := catalog.NewIndex(catalog.NewEmbedding(cfg.EmbeddingModel, openAIKey), cfg.PersistDir, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Path == "" || idx.Count() > 0 {
		return idx, nil
	}
	entries, err := catalog.LoadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.Path, err)
	}
	if err := idx.Add(ctx, entries); err != nil {
		return nil, fmt.Errorf("index catalog %s: %w", cfg.Path, err)
	}
	return idx, nil
}

// Build assembles the full pipeline from configuration. sink and metrics may be nil.
func Build(ctx context.Context, cfg *common.Config, sink progress.Sink, metrics *Metrics, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	gen, err := NewGenerator(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	idx, err := OpenCatalog(ctx, cfg.Catalog, cfg.LLM.APIKey, logger)
	if err != nil {
		return nil, err
	}
	pcfg, err := pricing.LoadConfig(cfg.Pricing.ConfigPath)
	if err != nil {
		return nil, err
	}

	prober := textlayer.NewProber(textlayer.Config{
		Pdftotext:     cfg.TextLayer.Pdftotext,
		MinTextChars:  cfg.TextLayer.MinTextChars,
		MinChunkChars: cfg.TextLayer.MinChunkChars,
	}, textlayer.ExecRunner{Logger: logger}, logger)
	orch := extraction.NewOrchestrator(gen, prober, textlayer.NewPDFPages(), sink, logger)
	inference := dimensional.NewInterceptor(gen, logger,
		dimensional.WithConcurrency(cfg.LLM.InferenceConcurrency),
		dimensional.WithProgress(sink),
	)
	engine := pricing.NewEngine(idx, gen, logger,
		pricing.WithConfig(pcfg),
		pricing.WithBatchSize(cfg.Pricing.BatchSize),
		pricing.WithProgress(sink),
	)

	opts := []Option{
		WithVerification(cfg.Pricing.Verify),
		WithMargins(pcfg.Margins),
		WithProgress(sink),
	}
	if metrics != nil {
		opts = append(opts, WithMetrics(metrics))
	}
	proc := NewProcessor(logger, orch, inference, engine, opts...)
	logger.Info("pipeline.built", "provider", cfg.LLM.Provider, "catalog_entries", idx.Count(),
		"verify", cfg.Pricing.Verify, "batch_size", cfg.Pricing.BatchSize)
	return &Components{Processor: proc, Generator: gen, Index: idx, Engine: engine}, nil
}
