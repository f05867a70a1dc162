package constants

import "strings"

// genericUnits are units that say nothing about physical size.
var genericUnits = map[string]struct{}{
	"ud":       {},
	"ud.":      {},
	"uds":      {},
	"uds.":     {},
	"u":        {},
	"u.":       {},
	"un":       {},
	"unid":     {},
	"unid.":    {},
	"unidad":   {},
	"unidades": {},
	"pa":       {},
	"p.a.":     {},
	"p.a":      {},
	"partida":  {},
	"gl":       {},
	"global":   {},
}

var unitAliases = map[string]string{
	"m²":     "m2",
	"m^2":    "m2",
	"mt2":    "m2",
	"m³":     "m3",
	"m^3":    "m3",
	"mt3":    "m3",
	"m.l.":   "ml",
	"m.l":    "ml",
	"mts":    "m",
	"metro":  "m",
	"metros": "m",
	"ud.":    "ud",
	"uds":    "ud",
	"uds.":   "ud",
	"unid":   "ud",
	"unid.":  "ud",
	"unidad": "ud",
	"p.a.":   "pa",
	"p.a":    "pa",
	"kgs":    "kg",
	"hr":     "h",
	"hora":   "h",
	"horas":  "h",
}

// NormalizeUnit lowercases, trims and maps common spellings to a canonical token.
func NormalizeUnit(u string) string {
	s := strings.ToLower(strings.TrimSpace(u))
	if canon, ok := unitAliases[s]; ok {
		return canon
	}
	return s
}

// IsGenericUnit reports whether the raw unit token is non-physical.
func IsGenericUnit(u string) bool {
	_, ok := genericUnits[strings.ToLower(strings.TrimSpace(u))]
	return ok
}

// ImpliesVolume reports whether the unit already denotes a volume.
func ImpliesVolume(u string) bool {
	return NormalizeUnit(u) == "m3"
}
