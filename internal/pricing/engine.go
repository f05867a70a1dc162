package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/catalog"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
)

const (
	DefaultBatchSize = 5
	candidateLimit   = 3
)

// Match confidences, highest first.
const (
	ConfidenceVerifiedLabor    = 95
	ConfidenceLabor            = 85
	ConfidenceVerifiedMaterial = 75
	ConfidenceMaterial         = 60
	ConfidenceEstimate         = 30
	ConfidenceFailed           = 0
)

var bracketed = regexp.MustCompile(`\[[^\]]*\]`)

// Engine prices extracted items against the catalog.
type Engine struct {
	search    catalog.Searcher
	verifier  llm.Generator
	cfg       Config
	sink      progress.Sink
	batchSize int
	log       *slog.Logger
}

type Option func(*Engine)

func WithConfig(cfg Config) Option { return func(e *Engine) { e.cfg = cfg } }

func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

func WithProgress(sink progress.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// NewEngine builds an engine. verifier may be nil, which disables the
// verification step regardless of the per-call flag.
func NewEngine(search catalog.Searcher, verifier llm.Generator, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		search:    search,
		verifier:  verifier,
		cfg:       DefaultConfig(),
		sink:      progress.Nop{},
		batchSize: DefaultBatchSize,
		log:       logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Price returns one priced item per input item, in input order. Items run
// in parallel inside a batch; batches run one after another. Per-item
// failures degrade to an estimate and never fail the call.
func (e *Engine) Price(ctx context.Context, items []entity.MeasurementItem, useVerification bool, subscriberKey string) []entity.PricedMeasurementItem {
	start := time.Now()
	out := make([]entity.PricedMeasurementItem, len(items))
	batches := (len(items) + e.batchSize - 1) / e.batchSize

	for b := 0; b < batches; b++ {
		lo := b * e.batchSize
		hi := min(lo+e.batchSize, len(items))

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				out[i] = e.priceOne(ctx, items[i], useVerification)
				return nil
			})
		}
		_ = g.Wait()

		e.log.Debug("pricing.batch.done", "batch", b+1, "batches", batches, "items", hi-lo)
		progress.Emit(ctx, e.sink, subscriberKey, progress.Event{
			Type:    progress.TypePricing,
			Message: fmt.Sprintf("Pricing items %d-%d of %d", lo+1, hi, len(items)),
			Current: b + 1,
			Total:   batches,
		})
	}

	e.log.Info("pricing.done",
		"items", len(items),
		"batches", batches,
		"verify", useVerification && e.verifier != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (e *Engine) priceOne(ctx context.Context, item entity.MeasurementItem, verify bool) (priced entity.PricedMeasurementItem) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("pricing.item.panic", "order", item.Order, "panic", r)
			priced = e.estimate(item, ConfidenceFailed)
		}
	}()

	query := SearchQuery(item.Description)
	candidates, err := e.candidates(ctx, query, item.Chapter)
	if err != nil {
		e.log.Warn("pricing.item.search_failed", "order", item.Order, "error", err)
		return e.estimate(item, ConfidenceFailed)
	}
	if len(candidates) == 0 {
		return e.estimate(item, ConfidenceEstimate)
	}

	if verify && e.verifier != nil {
		idx, err := e.verifyCandidates(ctx, item, query, candidates)
		switch {
		case err != nil:
			e.log.Warn("pricing.item.verify_failed", "order", item.Order, "error", err)
		case idx > 0:
			chosen := candidates[idx-1]
			conf := ConfidenceVerifiedMaterial
			if chosen.Kind == constants.KindLabor {
				conf = ConfidenceVerifiedLabor
			}
			return e.match(item, chosen, conf, candidates)
		}
	}

	for _, c := range candidates {
		if c.Kind == constants.KindLabor {
			return e.match(item, c, ConfidenceLabor, candidates)
		}
	}
	for _, c := range candidates {
		if c.Kind == constants.KindMaterial {
			return e.match(item, c, ConfidenceMaterial, candidates)
		}
	}
	return e.estimate(item, ConfidenceEstimate)
}

// candidates searches labor first and materials only when no labor entry came back.
func (e *Engine) candidates(ctx context.Context, query, chapter string) ([]entity.CatalogEntry, error) {
	for _, kind := range []constants.ItemKind{constants.KindLabor, constants.KindMaterial} {
		found, err := e.search.Search(ctx, query, candidateLimit, chapter, kind)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", kind, err)
		}
		if len(found) > 0 {
			for i := range found {
				if found[i].Kind == "" {
					found[i].Kind = kind
				}
			}
			return found, nil
		}
	}
	return nil, nil
}

func (e *Engine) verifyCandidates(ctx context.Context, item entity.MeasurementItem, query string, candidates []entity.CatalogEntry) (int, error) {
	raw, err := e.verifier.Generate(ctx, llm.BuildVerificationPrompt(item, query, candidates), llm.VerificationSchema(len(candidates)))
	if err != nil {
		return 0, err
	}
	res, err := llm.Decode[llm.VerificationResult](raw)
	if err != nil {
		return 0, err
	}
	if res.SelectedIndex < 0 || res.SelectedIndex > len(candidates) {
		return 0, fmt.Errorf("selected index %d out of range", res.SelectedIndex)
	}
	return res.SelectedIndex, nil
}

func (e *Engine) match(item entity.MeasurementItem, entry entity.CatalogEntry, confidence int, candidates []entity.CatalogEntry) entity.PricedMeasurementItem {
	price := entry.Price
	if entry.Kind == constants.KindMaterial {
		price *= e.cfg.MaterialMarkup
	}
	p := entity.NewPricedItem(item, roundCents(price), entry.Kind, confidence)
	p.MatchedCode = entry.Code
	proj := entry.Project()
	p.MatchedEntry = &proj
	p.Candidates = make([]entity.CatalogProjection, len(candidates))
	for i, c := range candidates {
		p.Candidates[i] = c.Project()
	}
	return p
}

func (e *Engine) estimate(item entity.MeasurementItem, confidence int) entity.PricedMeasurementItem {
	return entity.NewPricedItem(item, e.cfg.EstimatePrice(item.Unit), constants.KindEstimate, confidence)
}

// SearchQuery strips bracketed annotations such as the dimensional
// inference note from a description.
func SearchQuery(desc string) string {
	return strings.Join(strings.Fields(bracketed.ReplaceAllString(desc, " ")), " ")
}

func roundCents(f float64) float64 {
	return math.Round(f*100) / 100
}
