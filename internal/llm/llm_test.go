package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

func TestParseLocaleDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.200,50", 1200.5},
		{"30,00", 30},
		{"10,5", 10.5},
		{"1,200.50", 1200.5},
		{"1.200.000", 1200000},
		{"1.200", 1.2},
		{"2", 2},
		{"-2,5", -2.5},
		{"1.234.567,89 €", 1234567.89},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocaleDecimal(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := ParseLocaleDecimal("n/a")
	assert.Error(t, err)
}

func TestConformStrictPass(t *testing.T) {
	out, err := Conform(VerificationSchema(3), []byte(`{"selected_index": 2}`), "t", nil)
	require.NoError(t, err)
	res, err := Decode[VerificationResult](out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SelectedIndex)
}

func TestConformRepairsTopLevelArray(t *testing.T) {
	out, err := Conform(ExtractionSchema(), []byte(`[{"description":"Solera de hormigón","quantity":"1.200,50","unit":"m2","chapter":null}]`), "t", nil)
	require.NoError(t, err)
	res, err := Decode[ExtractionResult](out)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.InDelta(t, 1200.5, res.Items[0].Quantity, 1e-9)
	assert.Empty(t, res.Items[0].Chapter)
}

func TestConformDropsItemsWithoutDescription(t *testing.T) {
	out, err := Conform(ExtractionSchema(), []byte(`{"items":[{"quantity":3},{"description":"Alicatado","quantity":"12"}]}`), "t", nil)
	require.NoError(t, err)
	res, err := Decode[ExtractionResult](out)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Alicatado", res.Items[0].Description)
}

func TestConformEmpty(t *testing.T) {
	_, err := Conform(ExtractionSchema(), []byte("  "), "t", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSanitizeBooleanAndNegative(t *testing.T) {
	raw := []byte(`{"has_dimensions":"si","area_m2":-4,"length_m":"2,5","extra":1}`)
	out, changes, err := SanitizeAgainstSchema(raw, DimensionSchema())
	require.NoError(t, err)
	assert.NotEmpty(t, changes)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, true, m["has_dimensions"])
	assert.NotContains(t, m, "area_m2")
	assert.NotContains(t, m, "extra")
	assert.InDelta(t, 2.5, m["length_m"], 1e-9)
}

type plainGenerator struct{}

func (plainGenerator) Generate(context.Context, Prompt, map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func TestAsBatchUnsupported(t *testing.T) {
	_, err := AsBatch(plainGenerator{})
	assert.True(t, errors.Is(err, ErrBatchUnsupported))
}

func TestChunkPromptCarriesContext(t *testing.T) {
	ctx := entity.NewExtractionContext().WithChapter("01 DEMOLICIONES")
	p := BuildChunkPrompt("texto", 2, 3, ctx, "Demolición de tabique")
	assert.Contains(t, p.Text, "Block 2 of 3")
	assert.Contains(t, p.Text, "01 DEMOLICIONES")
	assert.Contains(t, p.Text, "Demolición de tabique")
	assert.False(t, p.HasMedia())
	assert.Contains(t, p.System, "1200.5")
}
