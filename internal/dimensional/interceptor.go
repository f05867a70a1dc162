package dimensional

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
)

// Stats counts what a Refine call did.
type Stats struct {
	Candidates int
	Rewritten  int
	Failed     int
}

// Interceptor rewrites generic-unit items ("ud", "pa") into physical units
// when their description prints literal dimensions.
type Interceptor struct {
	gen         llm.Generator
	sink        progress.Sink
	log         *slog.Logger
	concurrency int
}

type Option func(*Interceptor)

// WithConcurrency sets how many inference calls may run at once. Output order
// does not depend on it.
func WithConcurrency(n int) Option {
	return func(i *Interceptor) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithProgress attaches a progress sink.
func WithProgress(sink progress.Sink) Option {
	return func(i *Interceptor) {
		if sink != nil {
			i.sink = sink
		}
	}
}

func NewInterceptor(gen llm.Generator, logger *slog.Logger, opts ...Option) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Interceptor{gen: gen, sink: progress.Nop{}, log: logger, concurrency: 1}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Refine returns a copy of items where every generic-unit item with literal
// dimensions has its unit, quantity and description rewritten. Failed calls
// leave the item as it was.
func (i *Interceptor) Refine(ctx context.Context, items []entity.MeasurementItem, subscriberKey string) ([]entity.MeasurementItem, Stats) {
	start := time.Now()
	out := make([]entity.MeasurementItem, len(items))
	copy(out, items)

	var targets []int
	for idx, it := range out {
		if constants.IsGenericUnit(it.Unit) {
			targets = append(targets, idx)
		}
	}
	stats := Stats{Candidates: len(targets)}
	if len(targets) == 0 {
		return out, stats
	}

	var rewritten, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for n, idx := range targets {
		g.Go(func() error {
			progress.Emit(gctx, i.sink, subscriberKey, progress.Event{
				Type:    progress.TypeInference,
				Message: fmt.Sprintf("Checking dimensions %d of %d", n+1, len(targets)),
				Current: n + 1,
				Total:   len(targets),
			})
			refined, changed, err := i.refineOne(gctx, out[idx])
			switch {
			case err != nil:
				failed.Add(1)
				i.log.Warn("inference.item.failed", "order", out[idx].Order, "error", err)
			case changed:
				rewritten.Add(1)
				out[idx] = refined
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Rewritten = int(rewritten.Load())
	stats.Failed = int(failed.Load())
	i.log.Info("inference.done",
		"candidates", stats.Candidates,
		"rewritten", stats.Rewritten,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, stats
}

func (i *Interceptor) refineOne(ctx context.Context, item entity.MeasurementItem) (entity.MeasurementItem, bool, error) {
	raw, err := i.gen.Generate(ctx, llm.BuildDimensionPrompt(item), llm.DimensionSchema())
	if err != nil {
		return item, false, err
	}
	dim, err := llm.Decode[llm.DimensionResult](raw)
	if err != nil {
		return item, false, err
	}
	d, ok := Resolve(item, dim)
	if !ok {
		return item, false, nil
	}
	return Annotate(item, d, dim.Reasoning), true, nil
}
