package dimensional

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

// keyedGenerator answers by the first key found in the prompt text.
type keyedGenerator struct {
	mu      sync.Mutex
	answers map[string]string
	calls   int
}

func (g *keyedGenerator) Generate(_ context.Context, p llm.Prompt, _ map[string]any) (json.RawMessage, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	for k, v := range g.answers {
		if strings.Contains(p.Text, k) {
			if v == "" {
				return nil, errors.New("model unavailable")
			}
			return json.RawMessage(v), nil
		}
	}
	return json.RawMessage(`{"has_dimensions":false}`), nil
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		desc string
		unit string
		dim  llm.DimensionResult
		want Decision
		ok   bool
	}{
		{"area with thickness stays m2", "50m2 de base de grava, espesor 10cm", "ud",
			llm.DimensionResult{HasDimensions: true, AreaM2: 50, ThicknessM: 0.1}, Decision{"m2", 50}, true},
		{"excavation becomes volume", "excavación de 50m2 x 0.5m", "ud",
			llm.DimensionResult{HasDimensions: true, AreaM2: 50, ThicknessM: 0.5}, Decision{"m3", 25}, true},
		{"fill becomes volume", "Relleno de zanja 20 m2 y 0,3 m", "pa",
			llm.DimensionResult{HasDimensions: true, AreaM2: 20, ThicknessM: 0.3}, Decision{"m3", 6}, true},
		{"explicit volume", "Hormigón 3 m3", "ud",
			llm.DimensionResult{HasDimensions: true, VolumeM3: 3}, Decision{"m3", 3}, true},
		{"bare area", "Pintura 80 m2", "pa",
			llm.DimensionResult{HasDimensions: true, AreaM2: 80}, Decision{"m2", 80}, true},
		{"bare length", "Rodapié 12 m", "ud",
			llm.DimensionResult{HasDimensions: true, LengthM: 12}, Decision{"ml", 12}, true},
		{"no dimensions", "Grifo monomando", "ud",
			llm.DimensionResult{HasDimensions: false, AreaM2: 5}, Decision{}, false},
		{"flag without values", "Partida alzada", "pa",
			llm.DimensionResult{HasDimensions: true}, Decision{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(entity.MeasurementItem{Description: tc.desc, Unit: tc.unit, Quantity: 1}, tc.dim)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRefineRewritesOnlyGenericUnits(t *testing.T) {
	gen := &keyedGenerator{answers: map[string]string{
		"base de grava": `{"has_dimensions":true,"area_m2":50,"thickness_m":0.1,"reasoning":"50 m2 at 10 cm"}`,
		"excavación":    `{"has_dimensions":true,"area_m2":50,"thickness_m":0.5,"reasoning":"50 m2 by 0.5 m deep"}`,
	}}
	items := []entity.MeasurementItem{
		{Order: 1, Description: "50m2 de base de grava, espesor 10cm", Unit: "ud", Quantity: 1},
		{Order: 2, Description: "excavación de 50m2 x 0.5m", Unit: "ud", Quantity: 1},
		{Order: 3, Description: "Solado de gres 30 m2", Unit: "m2", Quantity: 30},
	}
	out, stats := NewInterceptor(gen, nil, WithConcurrency(2)).Refine(context.Background(), items, "")

	require.Len(t, out, 3)
	assert.Equal(t, Stats{Candidates: 2, Rewritten: 2}, stats)
	assert.Equal(t, 2, gen.calls)

	assert.Equal(t, "m2", out[0].Unit)
	assert.InDelta(t, 50, out[0].Quantity, 1e-9)
	assert.Contains(t, out[0].Description, "[Dimensional inference: 1 ud -> 50 m2. Reason: 50 m2 at 10 cm]")

	assert.Equal(t, "m3", out[1].Unit)
	assert.InDelta(t, 25, out[1].Quantity, 1e-9)
	assert.Contains(t, out[1].Description, "-> 25 m3")

	assert.Equal(t, items[2], out[2])
	// input untouched
	assert.Equal(t, "ud", items[0].Unit)
}

func TestRefineKeepsItemOnFailure(t *testing.T) {
	gen := &keyedGenerator{answers: map[string]string{"Desmontaje": ""}}
	items := []entity.MeasurementItem{
		{Order: 1, Description: "Desmontaje de 20 m2 de falso techo", Unit: "ud", Quantity: 1},
		{Order: 2, Description: "Grifo monomando", Unit: "ud", Quantity: 2},
	}
	out, stats := NewInterceptor(gen, nil).Refine(context.Background(), items, "")
	assert.Equal(t, items, out)
	assert.Equal(t, Stats{Candidates: 2, Failed: 1}, stats)
}

func TestRefineWithoutCandidatesSkipsModel(t *testing.T) {
	gen := &keyedGenerator{}
	items := []entity.MeasurementItem{{Order: 1, Description: "Alicatado", Unit: "m2", Quantity: 12}}
	out, stats := NewInterceptor(gen, nil).Refine(context.Background(), items, "")
	assert.Equal(t, items, out)
	assert.Zero(t, stats.Candidates)
	assert.Zero(t, gen.calls)
}
