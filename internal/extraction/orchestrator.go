package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/textlayer"
)

// Orchestrator picks the text or vision path for a document and turns it into
// an ordered list of measurement items.
type Orchestrator struct {
	gen    llm.Generator
	prober TextProber
	pages  PageSource
	sink   progress.Sink
	log    *slog.Logger
}

func NewOrchestrator(gen llm.Generator, prober TextProber, pages PageSource, sink progress.Sink, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Orchestrator{gen: gen, prober: prober, pages: pages, sink: sink, log: logger}
}

// Extract runs PROBING -> {TEXT_PARALLEL | VISION_SEQUENTIAL} -> DONE.
// Units (chunks or pages) are processed strictly in order so every prompt sees
// the chapter and section left by the previous one. A failed unit contributes
// zero items; only a document with no obtainable content is an error.
func (o *Orchestrator) Extract(ctx context.Context, doc Document, subscriberKey string) (Result, error) {
	start := time.Now()
	mt := constants.NormalizeMime(doc.MimeType)
	if len(doc.Data) == 0 {
		return Result{}, ErrNoContent
	}

	var (
		res Result
		err error
	)
	switch {
	case mt == constants.MimeText:
		probe := o.prober.ProbeText(string(doc.Data))
		if !probe.HasTextLayer {
			return Result{}, fmt.Errorf("%w: empty text document", ErrNoContent)
		}
		res, err = o.textPath(ctx, probe, subscriberKey)
	case constants.IsImage(mt):
		o.emitPath(ctx, subscriberKey, constants.PathVision, 1)
		res, err = o.visionPath(ctx, 1, func(int) ([]byte, string, error) { return doc.Data, mt, nil }, subscriberKey)
	default:
		probe := o.prober.Probe(ctx, doc.Data)
		if probe.HasTextLayer {
			res, err = o.textPath(ctx, probe, subscriberKey)
			break
		}
		n, cErr := o.pages.Count(doc.Data)
		if cErr != nil || n == 0 {
			o.log.Error("extraction.pages.unreadable", "name", doc.Name, "error", cErr)
			return Result{}, fmt.Errorf("%w: %v", ErrNoContent, cErr)
		}
		o.emitPath(ctx, subscriberKey, constants.PathVision, n)
		res, err = o.visionPath(ctx, n, func(page int) ([]byte, string, error) {
			b, pErr := o.pages.Page(doc.Data, page)
			return b, constants.MimePDF, pErr
		}, subscriberKey)
	}
	if err != nil {
		return res, err
	}

	o.log.Info("extraction.done",
		"name", doc.Name,
		"path", res.Path,
		"pages", res.PageCount,
		"items", len(res.Items),
		"failed_units", res.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (o *Orchestrator) textPath(ctx context.Context, probe textlayer.Result, subscriberKey string) (Result, error) {
	total := len(probe.Chunks)
	o.emitPath(ctx, subscriberKey, constants.PathText, total)

	res := Result{Path: constants.PathText, PageCount: probe.PageCount}
	ectx := entity.NewExtractionContext()
	for i, chunk := range probe.Chunks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		o.emitUnit(ctx, subscriberKey, "block", i+1, total)

		prompt := llm.BuildChunkPrompt(chunk.Text, i+1, total, ectx, lastTail(res.Items))
		out, err := o.extractUnit(ctx, prompt)
		if err != nil {
			res.Failed++
			o.log.Warn("extraction.chunk.failed", "chunk", i+1, "page", chunk.Page, "error", err)
			continue
		}
		res.Items, ectx = assemble(res.Items, out, ectx, chunk.Page)
	}
	return res, nil
}

func (o *Orchestrator) visionPath(ctx context.Context, total int, page func(n int) ([]byte, string, error), subscriberKey string) (Result, error) {
	res := Result{Path: constants.PathVision, PageCount: total}
	ectx := entity.NewExtractionContext()
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pageNum := i + 1
		o.emitUnit(ctx, subscriberKey, "page", pageNum, total)

		data, mt, err := page(pageNum)
		if err != nil {
			res.Failed++
			o.log.Warn("extraction.page.isolate_failed", "page", pageNum, "error", err)
			continue
		}
		prompt := llm.BuildPagePrompt(llm.Media{MimeType: mt, Data: data}, pageNum, total, ectx, lastTail(res.Items))
		out, err := o.extractUnit(ctx, prompt)
		if err != nil {
			res.Failed++
			o.log.Warn("extraction.page.failed", "page", pageNum, "error", err)
			continue
		}
		res.Items, ectx = assemble(res.Items, out, ectx, pageNum)
	}
	if res.Failed == total {
		o.log.Warn("extraction.vision.all_pages_failed", "pages", total)
	}
	return res, nil
}

func (o *Orchestrator) extractUnit(ctx context.Context, prompt llm.Prompt) (llm.ExtractionResult, error) {
	raw, err := o.gen.Generate(ctx, prompt, llm.ExtractionSchema())
	if err != nil {
		return llm.ExtractionResult{}, err
	}
	return llm.Decode[llm.ExtractionResult](raw)
}

func (o *Orchestrator) emitPath(ctx context.Context, key string, path constants.ExtractionPath, units int) {
	msg := fmt.Sprintf("Text layer found, analyzing %d blocks", units)
	if path == constants.PathVision {
		msg = fmt.Sprintf("No text layer, analyzing %d pages visually", units)
	}
	progress.Emit(ctx, o.sink, key, progress.Event{
		Type:    progress.TypePathSelected,
		Message: msg,
		Total:   units,
		Path:    string(path),
	})
}

func (o *Orchestrator) emitUnit(ctx context.Context, key, unit string, i, n int) {
	progress.Emit(ctx, o.sink, key, progress.Event{
		Type:    progress.TypeExtraction,
		Message: fmt.Sprintf("Analyzing %s %d of %d", unit, i, n),
		Current: i,
		Total:   n,
	})
}
