package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

// column header aliases found in Spanish and English price books
var headerAliases = map[string]string{
	"code": "code", "codigo": "code", "código": "code", "cod": "code",
	"description": "description", "descripcion": "description", "descripción": "description",
	"resumen": "description", "concepto": "description", "name": "description",
	"unit": "unit", "unidad": "unit", "ud": "unit", "ud.": "unit",
	"price": "price", "precio": "price", "importe": "price", "pu": "price",
	"kind": "kind", "tipo": "kind", "type": "kind",
	"chapter": "chapter", "capitulo": "chapter", "capítulo": "chapter",
	"breakdown": "breakdown", "descompuesto": "breakdown",
}

// LoadFile reads a catalog from an .xlsx or .csv file.
func LoadFile(path string) ([]entity.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(bytes.NewReader(data))
	case ".csv":
		return LoadCSV(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("catalog %s: unsupported format", path)
}

// LoadXLSX reads the first sheet of a workbook. The first row holds headers.
func LoadXLSX(r io.Reader) ([]entity.CatalogEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyCatalog
	}
	// raw values keep numeric cells in machine notation ("1250.5")
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows, llm.ParseLocaleDecimal)
}

// LoadCSV reads comma or semicolon separated rows with a header line.
func LoadCSV(r io.Reader) ([]entity.CatalogEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if first, _, _ := bytes.Cut(data, []byte("\n")); bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		cr.Comma = ';'
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return parseRows(rows, ParsePrice)
}

// ParsePrice reads a price-book amount written by hand. Unlike quantities, a
// single separator followed by exactly three digits groups thousands, so
// "1.250" is 1250. A zero integer part keeps it decimal ("0,125").
func ParsePrice(s string) (float64, error) {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' || r == '+' {
			return r
		}
		return -1
	}, s)
	if strings.Count(clean, ".")+strings.Count(clean, ",") == 1 {
		i := strings.IndexAny(clean, ".,")
		whole, frac := strings.TrimLeft(clean[:i], "+-"), clean[i+1:]
		if len(frac) == 3 && whole != "" && strings.Trim(whole, "0") != "" {
			clean = clean[:i] + frac
		}
	}
	return llm.ParseLocaleDecimal(clean)
}

func parseRows(rows [][]string, parsePrice func(string) (float64, error)) ([]entity.CatalogEntry, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyCatalog
	}
	cols := map[string]int{}
	for i, h := range rows[0] {
		if key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	for _, need := range []string{"description", "price"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("catalog header is missing a %q column", need)
		}
	}

	cell := func(row []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []entity.CatalogEntry
	for n, row := range rows[1:] {
		desc := cell(row, "description")
		if desc == "" {
			continue
		}
		price, err := parsePrice(cell(row, "price"))
		if err != nil {
			return nil, fmt.Errorf("row %d: price: %w", n+2, err)
		}
		kind, ok := constants.ParseItemKind(cell(row, "kind"))
		if !ok {
			kind = constants.KindLabor
		}
		e := entity.CatalogEntry{
			Code:        cell(row, "code"),
			Description: desc,
			Unit:        constants.NormalizeUnit(cell(row, "unit")),
			Price:       price,
			Kind:        kind,
			Chapter:     cell(row, "chapter"),
		}
		if b := cell(row, "breakdown"); b != "" {
			if err := json.Unmarshal([]byte(b), &e.Breakdown); err != nil {
				return nil, fmt.Errorf("row %d: breakdown: %w", n+2, err)
			}
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrEmptyCatalog
	}
	return out, nil
}
