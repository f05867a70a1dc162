package dimensional

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

// volumeWords mark work measured by volume: excavation and bulk removal or fill.
var volumeWords = []string{
	"excava", "vaciado", "desmonte", "relleno", "terraplén", "terraplen",
	"zanja", "pozo", "tierras", "escombro", "zahorra", "hormigonado de zapata",
	"m3", "m³",
}

// Decision is the physical unit and quantity chosen for an item.
type Decision struct {
	Unit     string
	Quantity float64
}

// Resolve applies the dimension rule to a model answer:
//
//	area and thickness -> m2 with the area as quantity, or m3 = area x thickness
//	                      for excavation, bulk removal/fill or volume units
//	volume             -> m3
//	area               -> m2
//	length             -> ml
//
// It reports false when the answer carries no usable literal dimension.
func Resolve(item entity.MeasurementItem, dim llm.DimensionResult) (Decision, bool) {
	if !dim.HasDimensions {
		return Decision{}, false
	}
	switch {
	case dim.AreaM2 > 0 && dim.ThicknessM > 0:
		if impliesVolume(item) {
			return Decision{Unit: "m3", Quantity: round(dim.AreaM2 * dim.ThicknessM)}, true
		}
		return Decision{Unit: "m2", Quantity: round(dim.AreaM2)}, true
	case dim.VolumeM3 > 0:
		return Decision{Unit: "m3", Quantity: round(dim.VolumeM3)}, true
	case dim.AreaM2 > 0:
		return Decision{Unit: "m2", Quantity: round(dim.AreaM2)}, true
	case dim.LengthM > 0:
		return Decision{Unit: "ml", Quantity: round(dim.LengthM)}, true
	}
	return Decision{}, false
}

// Annotate rewrites unit and quantity and appends the audit note to the description.
func Annotate(item entity.MeasurementItem, d Decision, reasoning string) entity.MeasurementItem {
	reason := strings.TrimSpace(reasoning)
	if reason == "" {
		reason = "literal dimensions in description"
	}
	note := fmt.Sprintf(" [Dimensional inference: %s %s -> %s %s. Reason: %s]",
		formatQty(item.Quantity), item.Unit, formatQty(d.Quantity), d.Unit, reason)
	item.Description = strings.TrimSpace(item.Description) + note
	item.Unit = d.Unit
	item.Quantity = d.Quantity
	return item
}

func impliesVolume(item entity.MeasurementItem) bool {
	if constants.ImpliesVolume(item.Unit) {
		return true
	}
	desc := strings.ToLower(item.Description)
	for _, w := range volumeWords {
		if strings.Contains(desc, w) {
			return true
		}
	}
	return false
}

func round(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}

func formatQty(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
