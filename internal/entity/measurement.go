package entity

import "github.com/innovacioninteligente/dochevi-construc-sub000/constants"

// MeasurementItem is one bill-of-quantities line as extracted.
type MeasurementItem struct {
	Order       int                `json:"order"`
	Code        string             `json:"code,omitempty"`
	Description string             `json:"description"`
	Unit        string             `json:"unit"`
	Quantity    float64            `json:"quantity"`
	Kind        constants.ItemKind `json:"kind,omitempty"`
	Page        int                `json:"page"`
	Chapter     string             `json:"chapter"`
	Section     string             `json:"section"`
}

// PricedMeasurementItem is a MeasurementItem enriched by the pricing engine.
// TotalPrice is always Quantity * UnitPrice.
type PricedMeasurementItem struct {
	MeasurementItem

	UnitPrice       float64             `json:"unit_price"`
	TotalPrice      float64             `json:"total_price"`
	MatchedCode     string              `json:"matched_code,omitempty"`
	MatchConfidence int                 `json:"match_confidence"`
	IsEstimate      bool                `json:"is_estimate"`
	MatchKind       constants.ItemKind  `json:"match_kind"`
	MatchedEntry    *CatalogProjection  `json:"matched_entry,omitempty"`
	Candidates      []CatalogProjection `json:"candidates,omitempty"`
}

// NewPricedItem builds a priced item keeping the total and estimate invariants.
func NewPricedItem(item MeasurementItem, unitPrice float64, kind constants.ItemKind, confidence int) PricedMeasurementItem {
	return PricedMeasurementItem{
		MeasurementItem: item,
		UnitPrice:       unitPrice,
		TotalPrice:      item.Quantity * unitPrice,
		MatchConfidence: confidence,
		IsEstimate:      kind == constants.KindEstimate,
		MatchKind:       kind,
	}
}
