// Package pipeline wires extraction, dimensional inference, pricing and the
// budget summary into one call per document.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/budget"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/dimensional"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/extraction"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/pricing"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
)

// Processor runs the stages in order: extract, refine, price, summarize.
type Processor struct {
	logger    *slog.Logger
	extractor *extraction.Orchestrator
	inference *dimensional.Interceptor
	pricing   *pricing.Engine
	margins   entity.MarginConfig
	verify    bool
	sink      progress.Sink
	metrics   *Metrics
}

type Option func(*Processor)

// WithVerification toggles the model check of catalog candidates.
func WithVerification(on bool) Option { return func(p *Processor) { p.verify = on } }

// WithMargins sets the overhead, profit and tax rates used for the summary.
// Without it the pricing engine's configured margins apply.
func WithMargins(m entity.MarginConfig) Option { return func(p *Processor) { p.margins = m } }

func WithProgress(sink progress.Sink) Option {
	return func(p *Processor) {
		if sink != nil {
			p.sink = sink
		}
	}
}

func WithMetrics(m *Metrics) Option { return func(p *Processor) { p.metrics = m } }

func NewProcessor(logger *slog.Logger, extractor *extraction.Orchestrator, inference *dimensional.Interceptor, engine *pricing.Engine, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:    logger,
		extractor: extractor,
		inference: inference,
		pricing:   engine,
		margins:   engine.Config().Margins,
		verify:    true,
		sink:      progress.Nop{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessDocument turns one measurement document into a priced budget.
// Only a document with no obtainable content is an error; every other
// failure lowers completeness or confidence instead.
func (p *Processor) ProcessDocument(ctx context.Context, data []byte, mimeType, subscriberKey string) (entity.BudgetResult, error) {
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)
	jobID := common.JobIDFromContext(ctx)

	stage := time.Now()
	ext, err := p.extractor.Extract(ctx, extraction.Document{Data: data, MimeType: mimeType}, subscriberKey)
	p.observe("extraction", stage)
	if err != nil {
		p.count(string(ext.Path), "failed")
		progress.Emit(ctx, p.sink, subscriberKey, progress.Event{Type: progress.TypeFailed, Message: err.Error()})
		p.logger.Error("pipeline.extract.failed", "req_id", reqID, "job_id", jobID, "mime", mimeType, "error", err)
		return entity.BudgetResult{}, err
	}
	res := p.PriceExtracted(ctx, ext, subscriberKey)
	p.logger.Info("pipeline.done",
		"req_id", reqID,
		"job_id", jobID,
		"path", res.Path,
		"pages", res.PageCount,
		"items", len(res.Items),
		"failed_units", ext.Failed,
		"estimated", res.Summary.EstimatedItems,
		"total", res.Summary.Total,
		"project_type", res.ProjectTypeGuess,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// PriceExtracted runs inference, pricing and the summary over items that were
// already extracted, e.g. by a provider batch job.
func (p *Processor) PriceExtracted(ctx context.Context, ext extraction.Result, subscriberKey string) entity.BudgetResult {
	stage := time.Now()
	items, stats := p.inference.Refine(ctx, ext.Items, subscriberKey)
	p.observe("inference", stage)

	stage = time.Now()
	priced := p.pricing.Price(ctx, items, p.verify, subscriberKey)
	p.observe("pricing", stage)

	res := entity.BudgetResult{
		Items:            priced,
		Summary:          budget.Summarize(priced, p.margins),
		ProjectTypeGuess: budget.GuessProjectType(priced),
		PageCount:        ext.PageCount,
		Path:             string(ext.Path),
	}

	p.count(res.Path, "ok")
	if p.metrics != nil {
		p.metrics.ItemsExtracted.Add(float64(len(ext.Items)))
		p.metrics.InferenceRewrites.Add(float64(stats.Rewritten))
		for _, it := range priced {
			p.metrics.ItemsPriced.WithLabelValues(string(it.MatchKind)).Inc()
		}
	}
	progress.Emit(ctx, p.sink, subscriberKey, progress.Event{
		Type:    progress.TypeDone,
		Message: fmt.Sprintf("Budget ready: %d items", len(priced)),
		Current: len(priced),
		Total:   len(priced),
		Path:    res.Path,
	})
	p.logger.Debug("pipeline.priced", "items", len(priced), "rewritten", stats.Rewritten)
	return res
}

// ProcessFile reads path and infers its mime type from the extension.
func (p *Processor) ProcessFile(ctx context.Context, path, subscriberKey string) (entity.BudgetResult, error) {
	mt := constants.MimeForExt(filepath.Ext(path))
	if mt == "" {
		return entity.BudgetResult{}, common.NewAppError("UNSUPPORTED", "unsupported file type: "+filepath.Ext(path), common.ErrUnsupported)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.BudgetResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return p.ProcessDocument(ctx, data, mt, subscriberKey)
}

func (p *Processor) observe(stage string, since time.Time) {
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
	}
}

func (p *Processor) count(path, outcome string) {
	if p.metrics == nil {
		return
	}
	if path == "" {
		path = "none"
	}
	p.metrics.DocumentsTotal.WithLabelValues(path, outcome).Inc()
}
