package entity

// MarginConfig holds the percentage rates applied on top of the subtotal.
type MarginConfig struct {
	OverheadRate float64 `json:"overhead_rate" yaml:"overhead_rate"`
	ProfitRate   float64 `json:"profit_rate" yaml:"profit_rate"`
	TaxRate      float64 `json:"tax_rate" yaml:"tax_rate"`
}

// DefaultMargins are 13% overhead, 6% profit and 21% tax.
func DefaultMargins() MarginConfig {
	return MarginConfig{OverheadRate: 0.13, ProfitRate: 0.06, TaxRate: 0.21}
}

// BudgetSummary aggregates a priced item set.
type BudgetSummary struct {
	TotalItems     int     `json:"total_items"`
	MatchedItems   int     `json:"matched_items"`
	EstimatedItems int     `json:"estimated_items"`
	Subtotal       float64 `json:"subtotal"`
	OverheadAmount float64 `json:"overhead_amount"`
	ProfitAmount   float64 `json:"profit_amount"`
	TaxableBase    float64 `json:"taxable_base"`
	TaxAmount      float64 `json:"tax_amount"`
	Total          float64 `json:"total"`
}

// ProjectType is the coarse advisory label derived from item descriptions.
type ProjectType string

const (
	ProjectDemolition ProjectType = "demolition"
	ProjectStructural ProjectType = "structural"
	ProjectBathroom   ProjectType = "bathroom"
	ProjectKitchen    ProjectType = "kitchen"
	ProjectGeneral    ProjectType = "general"
)

// BudgetResult is what ProcessDocument hands back to callers.
type BudgetResult struct {
	Items            []PricedMeasurementItem `json:"items"`
	Summary          BudgetSummary           `json:"summary"`
	ProjectTypeGuess ProjectType             `json:"project_type_guess"`
	PageCount        int                     `json:"page_count"`
	Path             string                  `json:"path"`
}
