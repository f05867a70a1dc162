package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/extraction"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm/gemini"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm/openai"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	csv := "codigo;descripcion;unidad;precio;tipo\n" +
		"DEM010;Demolición de tabique;m2;9,80;labor\n" +
		"MAT001;Ladrillo hueco doble;ud;0,35;material\n"
	path := filepath.Join(dir, "catalogo.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	cfg := common.LoadConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.Catalog = common.CatalogConfig{Path: path, EmbeddingModel: "hash"}
	cfg.Pricing.ConfigPath = ""
	return cfg
}

func TestBuildLoadsCatalog(t *testing.T) {
	c, err := Build(context.Background(), testConfig(t), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Index.Count())
	assert.IsType(t, &openai.Client{}, c.Generator)
	assert.NotNil(t, c.Processor)
	assert.InDelta(t, 0.21, c.Engine.Config().Margins.TaxRate, 1e-9)
}

func TestBuildAppliesPricingConfigMargins(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pricing.Verify = false
	cfg.Pricing.ConfigPath = filepath.Join(t.TempDir(), "pricing.yaml")
	yaml := "margins:\n  overhead_rate: 0.10\n  profit_rate: 0.05\n  tax_rate: 0.10\n"
	require.NoError(t, os.WriteFile(cfg.Pricing.ConfigPath, []byte(yaml), 0o644))

	c, err := Build(context.Background(), cfg, nil, nil, nil)
	require.NoError(t, err)

	ext := extraction.Result{
		Path:      constants.PathText,
		PageCount: 1,
		Items: []entity.MeasurementItem{
			{Order: 1, Description: "Demolición de tabique", Unit: "m2", Quantity: 10, Page: 1},
		},
	}
	res := c.Processor.PriceExtracted(context.Background(), ext, "")
	require.Len(t, res.Items, 1)
	s := res.Summary
	assert.InDelta(t, s.Subtotal*0.10, s.OverheadAmount, 1e-9)
	assert.InDelta(t, s.Subtotal*0.05, s.ProfitAmount, 1e-9)
	assert.InDelta(t, s.TaxableBase*0.10, s.TaxAmount, 1e-9)
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "llama"
	_, err := Build(context.Background(), cfg, nil, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestNewGeneratorGemini(t *testing.T) {
	gen, err := NewGenerator(common.LLMConfig{Provider: "gemini", GeminiAPIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &gemini.Client{}, gen)
}

func TestOpenCatalogMissingFile(t *testing.T) {
	_, err := OpenCatalog(context.Background(), common.CatalogConfig{Path: "/nonexistent/catalog.csv", EmbeddingModel: "hash"}, "", nil)
	assert.Error(t, err)
}
