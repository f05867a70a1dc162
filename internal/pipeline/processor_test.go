package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/budget"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/catalog"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/dimensional"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/extraction"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/pricing"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/textlayer"
)

// routingGenerator answers extraction, dimension and verification prompts.
type routingGenerator struct {
	mu     sync.Mutex
	chunks map[string]string
	calls  map[string]int
}

func (g *routingGenerator) Generate(_ context.Context, p llm.Prompt, _ map[string]any) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	switch {
	case strings.Contains(p.System, "literal physical dimensions"):
		g.calls["dimension"]++
		return json.RawMessage(`{"has_dimensions":false,"reasoning":"no measurements printed"}`), nil
	case strings.Contains(p.System, "price matches"):
		g.calls["verify"]++
		return json.RawMessage(`{"selected_index":1}`), nil
	}
	g.calls["extract"]++
	if p.HasMedia() {
		g.calls["vision"]++
	}
	for marker, answer := range g.chunks {
		if strings.Contains(p.Text, marker) {
			return json.RawMessage(answer), nil
		}
	}
	return json.RawMessage(`{"items":[]}`), nil
}

type pdftotextStub struct{ out string }

func (s pdftotextStub) Run(context.Context, string, ...string) ([]byte, []byte, error) {
	return []byte(s.out), nil, nil
}

type countingPages struct{ calls int }

func (c *countingPages) Count([]byte) (int, error) { c.calls++; return 2, nil }
func (c *countingPages) Page([]byte, int) ([]byte, error) {
	c.calls++
	return []byte("%PDF"), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *recordingSink) Emit(_ context.Context, _ string, e progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func repeatLines(line string, n int) string {
	return strings.TrimSpace(strings.Repeat(line+"\n", n))
}

type fixture struct {
	proc  *Processor
	gen   *routingGenerator
	pages *countingPages
	sink  *recordingSink
}

func newFixture(t *testing.T, metrics *Metrics) fixture {
	t.Helper()
	page1 := "01 DEMOLICIONES\n" + repeatLines("01.01  Demolición de tabique de ladrillo hueco sencillo     m2     10,50", 5)
	page2 := repeatLines("01.02  Retirada de puerta interior de madera con marco      ud      2", 5)
	prober := textlayer.NewProber(textlayer.Config{}, pdftotextStub{out: page1 + "\f" + page2 + "\f"}, nil)

	gen := &routingGenerator{chunks: map[string]string{
		"Block 1 of 2": `{"detected_chapter":"01 DEMOLICIONES","items":[{"code":"01.01","description":"Demolición de tabique","unit":"m2","quantity":10.5}]}`,
		"Block 2 of 2": `{"items":[{"code":"01.02","description":"Retirada de puerta","unit":"ud","quantity":2}]}`,
	}}
	pages := &countingPages{}
	sink := &recordingSink{}

	index, err := catalog.NewIndex(catalog.HashEmbedding(0), "", nil)
	require.NoError(t, err)
	require.NoError(t, index.Add(context.Background(), []entity.CatalogEntry{
		{Code: "DEM010", Description: "Demolición de tabique de ladrillo", Unit: "m2", Price: 9.8, Kind: constants.KindLabor},
		{Code: "CAR100", Description: "Retirada de puerta interior con marco", Unit: "ud", Price: 22, Kind: constants.KindLabor},
	}))

	orch := extraction.NewOrchestrator(gen, prober, pages, sink, nil)
	inter := dimensional.NewInterceptor(gen, nil, dimensional.WithProgress(sink))
	engine := pricing.NewEngine(index, gen, nil, pricing.WithProgress(sink))
	opts := []Option{WithProgress(sink)}
	if metrics != nil {
		opts = append(opts, WithMetrics(metrics))
	}
	return fixture{
		proc:  NewProcessor(nil, orch, inter, engine, opts...),
		gen:   gen,
		pages: pages,
		sink:  sink,
	}
}

func TestProcessDocumentTwoChunkScenario(t *testing.T) {
	metrics := NewMetrics()
	okBefore := testutil.ToFloat64(metrics.DocumentsTotal.WithLabelValues(string(constants.PathText), "ok"))

	f := newFixture(t, metrics)
	res, err := f.proc.ProcessDocument(context.Background(), []byte("%PDF-1.7"), constants.MimePDF, "job-1")
	require.NoError(t, err)

	assert.Equal(t, string(constants.PathText), res.Path)
	assert.Zero(t, f.pages.calls, "text path never touches the page source")
	assert.Zero(t, f.gen.calls["vision"])
	assert.Equal(t, 2, f.gen.calls["extract"])
	assert.Equal(t, 1, f.gen.calls["dimension"], "only the generic-unit item is refined")
	assert.Equal(t, 2, res.PageCount)

	require.Len(t, res.Items, 2)
	first, second := res.Items[0], res.Items[1]
	assert.Equal(t, "01 DEMOLICIONES", first.Chapter)
	assert.Equal(t, "01 DEMOLICIONES", second.Chapter)
	assert.Equal(t, "m2", first.Unit)
	assert.InDelta(t, 10.5, first.Quantity, 1e-9)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, second.Page)

	// no literal dimension in "Retirada de puerta": left as extracted
	assert.Equal(t, "ud", second.Unit)
	assert.InDelta(t, 2, second.Quantity, 1e-9)
	assert.Equal(t, "Retirada de puerta", second.Description)

	assert.Equal(t, "DEM010", first.MatchedCode)
	assert.Equal(t, pricing.ConfidenceVerifiedLabor, first.MatchConfidence)
	for _, it := range res.Items {
		assert.Equal(t, it.Quantity*it.UnitPrice, it.TotalPrice)
	}

	assert.Equal(t, budget.Summarize(res.Items, entity.DefaultMargins()), res.Summary)
	assert.Equal(t, entity.ProjectDemolition, res.ProjectTypeGuess)

	require.NotEmpty(t, f.sink.events)
	assert.Equal(t, progress.TypePathSelected, f.sink.events[0].Type)
	assert.Equal(t, progress.TypeDone, f.sink.events[len(f.sink.events)-1].Type)

	okAfter := testutil.ToFloat64(metrics.DocumentsTotal.WithLabelValues(string(constants.PathText), "ok"))
	assert.InDelta(t, 1, okAfter-okBefore, 1e-9)
}

func TestProcessDocumentWithoutContentFails(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.proc.ProcessDocument(context.Background(), nil, constants.MimePDF, "job-2")
	require.ErrorIs(t, err, extraction.ErrNoContent)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, progress.TypeFailed, f.sink.events[0].Type)
}

func TestProcessFileRejectsUnknownExtension(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.proc.ProcessFile(context.Background(), "/tmp/mediciones.docx", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestPriceExtractedSkipsExtraction(t *testing.T) {
	f := newFixture(t, nil)
	ext := extraction.Result{
		Path:      constants.PathText,
		PageCount: 3,
		Items: []entity.MeasurementItem{
			{Order: 1, Code: "01.01", Description: "Demolición de tabique", Unit: "m2", Quantity: 4, Page: 3, Chapter: "01 DEMOLICIONES", Section: constants.UnknownContext},
		},
	}
	res := f.proc.PriceExtracted(context.Background(), ext, "")

	assert.Zero(t, f.gen.calls["extract"])
	require.Len(t, res.Items, 1)
	assert.Equal(t, "DEM010", res.Items[0].MatchedCode)
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, budget.Summarize(res.Items, entity.DefaultMargins()), res.Summary)
}
