package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
)

type searchCall struct {
	query   string
	chapter string
	kind    constants.ItemKind
	batch   int
}

// fakeSearcher answers from per-kind tables keyed by a query substring.
type fakeSearcher struct {
	mu       sync.Mutex
	labor    map[string][]entity.CatalogEntry
	material map[string][]entity.CatalogEntry
	fail     string
	calls    []searchCall
	batch    func() int
}

func (s *fakeSearcher) Search(_ context.Context, query string, _ int, chapter string, kind constants.ItemKind) ([]entity.CatalogEntry, error) {
	s.mu.Lock()
	call := searchCall{query: query, chapter: chapter, kind: kind}
	if s.batch != nil {
		call.batch = s.batch()
	}
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if s.fail != "" && strings.Contains(query, s.fail) {
		return nil, errors.New("catalog offline")
	}
	table := s.labor
	if kind == constants.KindMaterial {
		table = s.material
	}
	for k, v := range table {
		if strings.Contains(query, k) {
			return v, nil
		}
	}
	return nil, nil
}

type fixedVerifier struct {
	answer string
	err    error
}

func (v fixedVerifier) Generate(context.Context, llm.Prompt, map[string]any) (json.RawMessage, error) {
	if v.err != nil {
		return nil, v.err
	}
	return json.RawMessage(v.answer), nil
}

type countingSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *countingSink) Emit(_ context.Context, _ string, e progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var (
	laborTabique = entity.CatalogEntry{Code: "DEM010", Description: "Demolición de tabique", Unit: "m2", Price: 9.8, Kind: constants.KindLabor}
	laborAlt     = entity.CatalogEntry{Code: "DEM020", Description: "Demolición de muro", Unit: "m2", Price: 14, Kind: constants.KindLabor}
	materialTile = entity.CatalogEntry{Code: "MAT500", Description: "Azulejo 20x20", Unit: "m2", Price: 12, Kind: constants.KindMaterial}
)

func TestPriceBatchesOfFivePreserveOrder(t *testing.T) {
	sink := &countingSink{}
	search := &fakeSearcher{
		labor: map[string][]entity.CatalogEntry{"Partida": {laborTabique}},
		batch: sink.count,
	}
	items := make([]entity.MeasurementItem, 12)
	for i := range items {
		items[i] = entity.MeasurementItem{Order: i + 1, Description: fmt.Sprintf("Partida %02d", i+1), Unit: "m2", Quantity: float64(i + 1)}
	}

	out := NewEngine(search, nil, nil, WithProgress(sink)).Price(context.Background(), items, false, "job-1")

	require.Len(t, out, 12)
	for i, p := range out {
		assert.Equal(t, i+1, p.Order)
		assert.Equal(t, items[i].Description, p.Description)
	}

	perBatch := map[int]int{}
	for _, c := range search.calls {
		perBatch[c.batch]++
	}
	assert.Equal(t, map[int]int{0: 5, 1: 5, 2: 2}, perBatch)

	require.Len(t, sink.events, 3)
	for i, e := range sink.events {
		assert.Equal(t, progress.TypePricing, e.Type)
		assert.Equal(t, i+1, e.Current)
		assert.Equal(t, 3, e.Total)
	}
	assert.Equal(t, "Pricing items 11-12 of 12", sink.events[2].Message)
}

func TestPriceConfidenceLadder(t *testing.T) {
	item := entity.MeasurementItem{Order: 1, Description: "Demolición de tabique", Unit: "m2", Quantity: 10.5, Chapter: "01 DEMOLICIONES"}

	laborSearch := &fakeSearcher{labor: map[string][]entity.CatalogEntry{"tabique": {laborTabique, laborAlt}}}
	materialSearch := &fakeSearcher{material: map[string][]entity.CatalogEntry{"tabique": {materialTile}}}
	emptySearch := &fakeSearcher{}

	verifiedLabor := NewEngine(laborSearch, fixedVerifier{answer: `{"selected_index":2}`}, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, true, "")[0]
	unverifiedLabor := NewEngine(laborSearch, nil, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, true, "")[0]
	verifiedMaterial := NewEngine(materialSearch, fixedVerifier{answer: `{"selected_index":1}`}, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, true, "")[0]
	unverifiedMaterial := NewEngine(materialSearch, fixedVerifier{answer: `{"selected_index":1}`}, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, false, "")[0]
	estimate := NewEngine(emptySearch, nil, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, true, "")[0]

	assert.Equal(t, ConfidenceVerifiedLabor, verifiedLabor.MatchConfidence)
	assert.Equal(t, "DEM020", verifiedLabor.MatchedCode)
	assert.Equal(t, ConfidenceLabor, unverifiedLabor.MatchConfidence)
	assert.Equal(t, "DEM010", unverifiedLabor.MatchedCode)
	assert.Equal(t, ConfidenceVerifiedMaterial, verifiedMaterial.MatchConfidence)
	assert.Equal(t, ConfidenceMaterial, unverifiedMaterial.MatchConfidence)
	assert.Equal(t, ConfidenceEstimate, estimate.MatchConfidence)

	assert.GreaterOrEqual(t, verifiedLabor.MatchConfidence, unverifiedMaterial.MatchConfidence)
	assert.GreaterOrEqual(t, unverifiedMaterial.MatchConfidence, estimate.MatchConfidence)

	assert.InDelta(t, 16.8, unverifiedMaterial.UnitPrice, 1e-9)
	assert.InDelta(t, 16.8, verifiedMaterial.UnitPrice, 1e-9)
	assert.Equal(t, constants.KindMaterial, unverifiedMaterial.MatchKind)
	assert.False(t, unverifiedMaterial.IsEstimate)

	assert.True(t, estimate.IsEstimate)
	assert.Equal(t, constants.KindEstimate, estimate.MatchKind)
	assert.InDelta(t, 25, estimate.UnitPrice, 1e-9)
	assert.Nil(t, estimate.MatchedEntry)

	for _, p := range []entity.PricedMeasurementItem{verifiedLabor, unverifiedLabor, verifiedMaterial, unverifiedMaterial, estimate} {
		assert.Equal(t, p.Quantity*p.UnitPrice, p.TotalPrice)
	}

	// labor first, material only after an empty labor search; two engines shared this searcher
	require.Len(t, materialSearch.calls, 4)
	assert.Equal(t, constants.KindLabor, materialSearch.calls[0].kind)
	assert.Equal(t, constants.KindMaterial, materialSearch.calls[1].kind)
	assert.Equal(t, "01 DEMOLICIONES", materialSearch.calls[0].chapter)
}

func TestPriceVerificationRejectionOrErrorFallsBack(t *testing.T) {
	item := entity.MeasurementItem{Order: 1, Description: "Demolición de tabique", Unit: "m2", Quantity: 2}
	search := &fakeSearcher{labor: map[string][]entity.CatalogEntry{"tabique": {laborTabique}}}

	rejected := NewEngine(search, fixedVerifier{answer: `{"selected_index":0}`}, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, true, "")[0]
	assert.Equal(t, ConfidenceLabor, rejected.MatchConfidence)

	failed := NewEngine(search, fixedVerifier{err: errors.New("timeout")}, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, true, "")[0]
	assert.Equal(t, ConfidenceLabor, failed.MatchConfidence)

	outOfRange := NewEngine(search, fixedVerifier{answer: `{"selected_index":7}`}, nil).
		Price(context.Background(), []entity.MeasurementItem{item}, true, "")[0]
	assert.Equal(t, ConfidenceLabor, outOfRange.MatchConfidence)
}

func TestPriceSearchErrorDegradesToZeroConfidence(t *testing.T) {
	search := &fakeSearcher{fail: "roto"}
	items := []entity.MeasurementItem{
		{Order: 1, Description: "Tabique roto", Unit: "ud", Quantity: 3},
		{Order: 2, Description: "Partida sin precio", Unit: "zz", Quantity: 2},
	}
	out := NewEngine(search, nil, nil).Price(context.Background(), items, false, "")
	require.Len(t, out, 2)

	assert.Equal(t, ConfidenceFailed, out[0].MatchConfidence)
	assert.True(t, out[0].IsEstimate)
	assert.InDelta(t, 60, out[0].UnitPrice, 1e-9)
	assert.InDelta(t, 180, out[0].TotalPrice, 1e-9)

	assert.Equal(t, ConfidenceEstimate, out[1].MatchConfidence)
	assert.InDelta(t, 50, out[1].UnitPrice, 1e-9)
}

func TestPriceStripsAnnotationsAndProjectsCandidates(t *testing.T) {
	search := &fakeSearcher{labor: map[string][]entity.CatalogEntry{"grava": {laborTabique, laborAlt}}}
	item := entity.MeasurementItem{
		Order:       1,
		Description: "Base de grava espesor 10cm [Dimensional inference: 1 ud -> 50 m2. Reason: 50 m2 printed]",
		Unit:        "m2",
		Quantity:    50,
	}
	p := NewEngine(search, nil, nil).Price(context.Background(), []entity.MeasurementItem{item}, false, "")[0]

	require.NotEmpty(t, search.calls)
	assert.Equal(t, "Base de grava espesor 10cm", search.calls[0].query)
	require.NotNil(t, p.MatchedEntry)
	assert.Equal(t, "Demolición de tabique", p.MatchedEntry.Name)
	assert.Len(t, p.Candidates, 2)
	assert.Contains(t, p.Description, "[Dimensional inference")
}

func TestPriceEmptyInput(t *testing.T) {
	out := NewEngine(&fakeSearcher{}, nil, nil).Price(context.Background(), nil, true, "")
	assert.Empty(t, out)
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
unit_prices:
  M²: 30
  pa: 200
default_price: 55
margins:
  tax_rate: 0.10
`))
	require.NoError(t, err)
	assert.InDelta(t, 30, cfg.EstimatePrice("m2"), 1e-9)
	assert.InDelta(t, 200, cfg.EstimatePrice("P.A."), 1e-9)
	assert.InDelta(t, 45, cfg.EstimatePrice("m3"), 1e-9)
	assert.InDelta(t, 55, cfg.EstimatePrice("furlong"), 1e-9)
	assert.InDelta(t, 0.10, cfg.Margins.TaxRate, 1e-9)
	assert.InDelta(t, 0.13, cfg.Margins.OverheadRate, 1e-9)
	assert.InDelta(t, 1.4, cfg.MaterialMarkup, 1e-9)

	_, err = ParseConfig([]byte("material_markup: 0.5\n"))
	assert.Error(t, err)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
