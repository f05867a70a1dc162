// Package budget turns priced items into the totals and labels shown to the user.
package budget

import (
	"strings"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

// Summarize computes the budget totals. It has no side effects and gives the
// same result for the same input.
func Summarize(items []entity.PricedMeasurementItem, margins entity.MarginConfig) entity.BudgetSummary {
	s := entity.BudgetSummary{TotalItems: len(items)}
	for _, it := range items {
		s.Subtotal += it.TotalPrice
		if it.IsEstimate {
			s.EstimatedItems++
		} else {
			s.MatchedItems++
		}
	}
	s.OverheadAmount = s.Subtotal * margins.OverheadRate
	s.ProfitAmount = s.Subtotal * margins.ProfitRate
	s.TaxableBase = s.Subtotal + s.OverheadAmount + s.ProfitAmount
	s.TaxAmount = s.TaxableBase * margins.TaxRate
	s.Total = s.TaxableBase + s.TaxAmount
	return s
}

var projectKeywords = []struct {
	kind     entity.ProjectType
	keywords []string
}{
	{entity.ProjectDemolition, []string{"demolic", "derribo", "desmontaje", "desmontar", "retirada", "picado", "arranque", "demoler"}},
	{entity.ProjectStructural, []string{"estructur", "forjado", "hormigón", "hormigon", "zapata", "pilar", "viga", "cimentaci", "armadura", "muro de carga"}},
	{entity.ProjectBathroom, []string{"baño", "bano", "sanitari", "inodoro", "lavabo", "ducha", "bañera", "mampara", "bidé"}},
	{entity.ProjectKitchen, []string{"cocina", "encimera", "fregadero", "campana extractora", "vitrocer", "placa de inducción", "mueble alto", "mueble bajo"}},
}

// GuessProjectType labels a budget from keywords in its descriptions.
// Demolition wins once it covers at least half of the items; otherwise the
// category with most matching items wins, earlier categories breaking ties.
// The label is advisory only.
func GuessProjectType(items []entity.PricedMeasurementItem) entity.ProjectType {
	if len(items) == 0 {
		return entity.ProjectGeneral
	}
	counts := make([]int, len(projectKeywords))
	for _, it := range items {
		desc := strings.ToLower(it.Description)
		for i, pk := range projectKeywords {
			for _, kw := range pk.keywords {
				if strings.Contains(desc, kw) {
					counts[i]++
					break
				}
			}
		}
	}
	if counts[0] > 0 && counts[0]*2 >= len(items) {
		return entity.ProjectDemolition
	}
	best, bestCount := entity.ProjectGeneral, 0
	for i := 1; i < len(projectKeywords); i++ {
		if counts[i] > bestCount {
			best, bestCount = projectKeywords[i].kind, counts[i]
		}
	}
	return best
}
