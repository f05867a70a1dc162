package textlayer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultMinTextChars  = 500
	DefaultMinChunkChars = 50
	// a page of a dense cost table fits well below this
	DefaultMaxChunkChars = 24000

	// pageBreak is the form feed pdftotext writes between pages.
	pageBreak = "\f"
)

// Config controls the probe thresholds and the pdftotext binary.
type Config struct {
	Pdftotext     string
	MinTextChars  int
	MinChunkChars int
	MaxChunkChars int
}

// Chunk is the normalised text of one physical page.
type Chunk struct {
	Page int
	Text string
}

// Result is the outcome of a probe. A failed probe is a Result with
// HasTextLayer false, never an error.
type Result struct {
	HasTextLayer bool
	Chunks       []Chunk
	PageCount    int
	TextChars    int
}

// PageChunks returns the chunk texts in page order.
func (r Result) PageChunks() []string {
	out := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		out = append(out, c.Text)
	}
	return out
}

// Prober decides whether a document carries a usable text layer.
type Prober struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

func NewProber(cfg Config, runner Runner, logger *slog.Logger) *Prober {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	if cfg.MinChunkChars <= 0 {
		cfg.MinChunkChars = DefaultMinChunkChars
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &Prober{cfg: cfg, runner: runner, log: logger}
}

// Probe extracts the text layer of a PDF and splits it on page breaks. A layer
// of at least MinTextChars characters counts as text-bearing.
func (p *Prober) Probe(ctx context.Context, doc []byte) Result {
	start := time.Now()
	text, err := p.pdfToText(ctx, doc)
	if err != nil {
		p.log.Info("textlayer.probe.unavailable", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}
	}

	chars := utf8.RuneCountInString(strings.TrimSpace(strings.ReplaceAll(text, pageBreak, "")))
	pages := 1 + strings.Count(strings.TrimRight(text, pageBreak+"\n"), pageBreak)
	if chars < p.cfg.MinTextChars {
		p.log.Info("textlayer.probe.too_short", "chars", chars, "threshold", p.cfg.MinTextChars)
		return Result{PageCount: pages, TextChars: chars}
	}

	res := p.split(text)
	res.TextChars = chars
	res.PageCount = pages
	p.log.Info("textlayer.probe.ok",
		"chars", chars,
		"pages", pages,
		"chunks", len(res.Chunks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// ProbeText treats plain-text input as its own text layer.
func (p *Prober) ProbeText(text string) Result {
	res := p.split(text)
	res.TextChars = utf8.RuneCountInString(strings.TrimSpace(text))
	res.PageCount = 1 + strings.Count(strings.TrimRight(text, pageBreak+"\n"), pageBreak)
	return res
}

func (p *Prober) split(text string) Result {
	var res Result
	for i, raw := range strings.Split(text, pageBreak) {
		page := Normalize(raw)
		if page == "" || utf8.RuneCountInString(page) < p.cfg.MinChunkChars {
			continue
		}
		pieces := splitLong(page, p.cfg.MaxChunkChars)
		if len(pieces) > 1 {
			p.log.Warn("textlayer.chunk.split", "page", i+1, "chars", utf8.RuneCountInString(page), "pieces", len(pieces))
		}
		for _, piece := range pieces {
			res.Chunks = append(res.Chunks, Chunk{Page: i + 1, Text: piece})
		}
	}
	res.HasTextLayer = len(res.Chunks) > 0
	return res
}

// splitLong cuts text into pieces of at most max characters, preferring line
// breaks and never splitting a rune.
func splitLong(text string, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}
	var (
		out []string
		b   strings.Builder
		n   int
	)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
		n = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for r := []rune(line); len(r) > max; r = []rune(line) {
			flush()
			b.WriteString(string(r[:max]))
			flush()
			line = string(r[max:])
		}
		ln := utf8.RuneCountInString(line)
		if n+ln > max {
			flush()
		}
		b.WriteString(line)
		n += ln
	}
	flush()
	return out
}

func (p *Prober) pdfToText(ctx context.Context, doc []byte) (string, error) {
	f, err := os.CreateTemp("", "budget-probe-*.pdf")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil {
			p.log.Warn("textlayer.tempfile.remove_failed", "path", f.Name(), "error", err)
		}
	}()
	if _, err := f.Write(doc); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", f.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
