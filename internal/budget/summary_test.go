package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

func priced(desc string, qty, price float64, kind constants.ItemKind) entity.PricedMeasurementItem {
	return entity.NewPricedItem(entity.MeasurementItem{Description: desc, Unit: "m2", Quantity: qty}, price, kind, 85)
}

func TestSummarize(t *testing.T) {
	items := []entity.PricedMeasurementItem{
		priced("Demolición de tabique", 10, 10, constants.KindLabor),
		priced("Azulejo", 5, 20, constants.KindMaterial),
		priced("Partida alzada", 1, 300, constants.KindEstimate),
	}
	s := Summarize(items, entity.MarginConfig{OverheadRate: 0.10, ProfitRate: 0.05, TaxRate: 0.20})

	assert.Equal(t, 3, s.TotalItems)
	assert.Equal(t, 2, s.MatchedItems)
	assert.Equal(t, 1, s.EstimatedItems)
	assert.InDelta(t, 500, s.Subtotal, 1e-9)
	assert.InDelta(t, 50, s.OverheadAmount, 1e-9)
	assert.InDelta(t, 25, s.ProfitAmount, 1e-9)
	assert.InDelta(t, 575, s.TaxableBase, 1e-9)
	assert.InDelta(t, 115, s.TaxAmount, 1e-9)
	assert.InDelta(t, 690, s.Total, 1e-9)
}

func TestSummarizeIsIdempotent(t *testing.T) {
	items := []entity.PricedMeasurementItem{
		priced("a", 10.5, 9.8, constants.KindLabor),
		priced("b", 3.3333, 17.77, constants.KindLabor),
		priced("c", 0.1, 0.7, constants.KindEstimate),
	}
	m := entity.DefaultMargins()
	assert.Equal(t, Summarize(items, m), Summarize(items, m))
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, entity.BudgetSummary{}, Summarize(nil, entity.DefaultMargins()))
}

func TestGuessProjectType(t *testing.T) {
	cases := []struct {
		name  string
		descs []string
		want  entity.ProjectType
	}{
		{"empty", nil, entity.ProjectGeneral},
		{"nothing matches", []string{"Pintura plástica", "Limpieza final"}, entity.ProjectGeneral},
		{"demolition at half", []string{"Demolición de tabique", "Retirada de puerta", "Inodoro suspendido", "Lavabo"}, entity.ProjectDemolition},
		{"demolition below half loses", []string{"Demolición de alicatado", "Inodoro", "Lavabo", "Plato de ducha"}, entity.ProjectBathroom},
		{"kitchen", []string{"Encimera de cuarzo", "Fregadero bajo encimera", "Pintura"}, entity.ProjectKitchen},
		{"structural", []string{"Forjado unidireccional", "Zapata aislada", "Pintura"}, entity.ProjectStructural},
		{"tie goes to earlier category", []string{"Viga de acero", "Mampara de ducha", "Pintura", "Pintura"}, entity.ProjectStructural},
		{"accents are kept", []string{"BAÑO COMPLETO", "Pintura", "Pintura"}, entity.ProjectBathroom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var items []entity.PricedMeasurementItem
			for _, d := range tc.descs {
				items = append(items, priced(d, 1, 1, constants.KindLabor))
			}
			assert.Equal(t, tc.want, GuessProjectType(items))
		})
	}
}
