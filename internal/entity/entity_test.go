package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
)

func TestExtractionContextTransitions(t *testing.T) {
	c := NewExtractionContext()
	assert.Equal(t, constants.UnknownContext, c.Chapter)
	assert.Equal(t, constants.UnknownContext, c.Section)

	c = c.WithChapter("01 DEMOLICIONES").WithSection("01.1 Tabiquería")
	assert.Equal(t, "01 DEMOLICIONES", c.Chapter)
	assert.Equal(t, "01.1 Tabiquería", c.Section)

	// too short to be a heading
	assert.Equal(t, c, c.WithChapter("01"))
	assert.Equal(t, c, c.WithSection(" a "))

	// same chapter keeps the section, a new chapter resets it
	assert.Equal(t, "01.1 Tabiquería", c.WithChapter("01 DEMOLICIONES").Section)
	next := c.WithChapter("02 ALBAÑILERÍA")
	assert.Equal(t, "02 ALBAÑILERÍA", next.Chapter)
	assert.Equal(t, constants.UnknownContext, next.Section)
}

func TestApplyKeepsExplicitLabels(t *testing.T) {
	c := ExtractionContext{Chapter: "01 DEMOLICIONES", Section: "Interior"}

	got := c.Apply(MeasurementItem{Description: "Demolición de tabique"})
	assert.Equal(t, "01 DEMOLICIONES", got.Chapter)
	assert.Equal(t, "Interior", got.Section)

	got = c.Apply(MeasurementItem{Description: "Solera", Chapter: "03 ESTRUCTURA"})
	assert.Equal(t, "03 ESTRUCTURA", got.Chapter)
	assert.Equal(t, "Interior", got.Section)
}

func TestNewPricedItemInvariants(t *testing.T) {
	item := MeasurementItem{Description: "Alicatado", Unit: "m2", Quantity: 12.5}

	p := NewPricedItem(item, 20, constants.KindLabor, 85)
	assert.InDelta(t, 250, p.TotalPrice, 1e-9)
	assert.False(t, p.IsEstimate)

	e := NewPricedItem(item, 25, constants.KindEstimate, 30)
	assert.True(t, e.IsEstimate)
	assert.Equal(t, constants.KindEstimate, e.MatchKind)
	assert.Equal(t, 30, e.MatchConfidence)
}

func TestProjectDropsScore(t *testing.T) {
	e := CatalogEntry{Code: "DEM010", Description: "Demolición", Unit: "m2", Price: 9.8, Kind: constants.KindLabor, Score: 0.9,
		Breakdown: []CostComponent{{Description: "Peón", Price: 5}}}
	p := e.Project()
	assert.Equal(t, "Demolición", p.Name)
	assert.Equal(t, 9.8, p.Price)
	assert.Len(t, p.Breakdown, 1)
}
