package entity

import "github.com/innovacioninteligente/dochevi-construc-sub000/constants"

// CostComponent is one line of a catalog entry's cost breakdown.
type CostComponent struct {
	Code        string  `json:"code,omitempty"`
	Description string  `json:"description"`
	Unit        string  `json:"unit,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	Price       float64 `json:"price"`
}

// CatalogEntry is a price-book record as returned by the catalog search port.
type CatalogEntry struct {
	Code        string             `json:"code"`
	Description string             `json:"description"`
	Unit        string             `json:"unit"`
	Price       float64            `json:"price"`
	Kind        constants.ItemKind `json:"kind"`
	Chapter     string             `json:"chapter,omitempty"`
	Breakdown   []CostComponent    `json:"breakdown,omitempty"`
	Score       float32            `json:"-"`
}

// CatalogProjection is the trimmed public view attached to priced items.
type CatalogProjection struct {
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Price     float64            `json:"price"`
	Unit      string             `json:"unit"`
	Kind      constants.ItemKind `json:"kind"`
	Breakdown []CostComponent    `json:"breakdown,omitempty"`
}

// Project drops ranking metadata and keeps what a renderer needs.
func (e CatalogEntry) Project() CatalogProjection {
	return CatalogProjection{
		Code:      e.Code,
		Name:      e.Description,
		Price:     e.Price,
		Unit:      e.Unit,
		Kind:      e.Kind,
		Breakdown: e.Breakdown,
	}
}
