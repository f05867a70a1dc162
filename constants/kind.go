package constants

// ItemKind tags catalog entries and the provenance of a price.
type ItemKind string

const (
	KindLabor    ItemKind = "LABOR_ITEM"
	KindMaterial ItemKind = "MATERIAL_ITEM"
	KindEstimate ItemKind = "ESTIMATE"
)

// ParseItemKind accepts the canonical names plus the short forms used in catalog sheets.
func ParseItemKind(s string) (ItemKind, bool) {
	switch s {
	case "LABOR_ITEM", "LABOR", "labor", "partida", "PARTIDA":
		return KindLabor, true
	case "MATERIAL_ITEM", "MATERIAL", "material":
		return KindMaterial, true
	case "ESTIMATE":
		return KindEstimate, true
	}
	return "", false
}

const UnknownContext = "Unknown"
