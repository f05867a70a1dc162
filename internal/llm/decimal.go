package llm

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLocaleDecimal reads a quantity written with either decimal convention.
//
//	"1.200,50" -> 1200.5   both separators: the last one is the decimal mark
//	"1,200.50" -> 1200.5
//	"1.200.000" -> 1200000 a repeated separator groups thousands
//	"30,00"    -> 30       a single separator is decimal (fewer-digit reading)
//	"1.200"    -> 1.2
func ParseLocaleDecimal(s string) (float64, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '+':
			return r
		}
		return -1
	}, strings.TrimSpace(s))
	if clean == "" || strings.Trim(clean, ".,+-") == "" {
		return 0, fmt.Errorf("parse decimal %q: no digits", s)
	}

	dots := strings.Count(clean, ".")
	commas := strings.Count(clean, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case commas > 1:
		clean = strings.ReplaceAll(clean, ",", "")
	case dots > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	case commas == 1:
		clean = strings.Replace(clean, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return f, nil
}
