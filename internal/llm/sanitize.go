package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// fieldSynonyms maps keys models emit in Spanish or in an older shape onto our schema.
var fieldSynonyms = map[string]string{
	"partidas":      "items",
	"lineas":        "items",
	"descripcion":   "description",
	"descripción":   "description",
	"cantidad":      "quantity",
	"medicion":      "quantity",
	"unidad":        "unit",
	"ud":            "unit",
	"codigo":        "code",
	"código":        "code",
	"capitulo":      "chapter",
	"capítulo":      "chapter",
	"seccion":       "section",
	"sección":       "section",
	"chapter_title": "detected_chapter",
	"index":         "selected_index",
	"selected":      "selected_index",
}

// SanitizeAgainstSchema walks raw JSON alongside schema and repairs what a
// lenient reader can repair:
//   - renames known synonyms
//   - drops nulls and keys the schema does not allow
//   - coerces locale decimals in strings to numbers and numbers to strings
//   - drops array elements that still miss required keys
//
// It returns the repaired JSON plus a list of the changes made.
func SanitizeAgainstSchema(raw []byte, schema map[string]any) ([]byte, []string, error) {
	var v any
	if err := json.Unmarshal(StripCodeFence(raw), &v); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changes []string
	if arr, ok := v.([]any); ok && schemaType(schema) == "object" {
		if _, hasItems := properties(schema)["items"]; hasItems {
			v = map[string]any{"items": arr}
			changes = append(changes, "$(array->items)")
		}
	}

	out, keep := sanitizeValue(v, schema, "$", &changes)
	if !keep {
		return nil, changes, fmt.Errorf("sanitize: root does not match schema type %q", schemaType(schema))
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, changes, fmt.Errorf("sanitize: encode: %w", err)
	}
	return b, changes, nil
}

// StripCodeFence removes a ```json ... ``` wrapper some models add.
func StripCodeFence(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = bytes.TrimPrefix(s, []byte("```"))
	if nl := bytes.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	return bytes.TrimSpace(s)
}

func sanitizeValue(v any, schema map[string]any, path string, changes *[]string) (any, bool) {
	if v == nil {
		*changes = append(*changes, path+"(null)")
		return nil, false
	}
	switch schemaType(schema) {
	case "object":
		m, ok := v.(map[string]any)
		if !ok {
			*changes = append(*changes, path+"(type)")
			return nil, false
		}
		return sanitizeObject(m, schema, path, changes), true

	case "array":
		arr, ok := v.([]any)
		if !ok {
			*changes = append(*changes, path+"(type)")
			return nil, false
		}
		itemSchema, _ := schema["items"].(map[string]any)
		out := make([]any, 0, len(arr))
		for i, el := range arr {
			elPath := path + "[" + strconv.Itoa(i) + "]"
			if itemSchema == nil {
				out = append(out, el)
				continue
			}
			cleaned, keep := sanitizeValue(el, itemSchema, elPath, changes)
			if !keep {
				continue
			}
			if m, ok := cleaned.(map[string]any); ok && !hasRequired(m, itemSchema) {
				*changes = append(*changes, elPath+"(missing required)")
				continue
			}
			out = append(out, cleaned)
		}
		return out, true

	case "number", "integer":
		var f float64
		switch t := v.(type) {
		case float64:
			f = t
		case string:
			parsed, err := ParseLocaleDecimal(t)
			if err != nil {
				*changes = append(*changes, path+"(unparseable)")
				return nil, false
			}
			*changes = append(*changes, path+"(string->number)")
			f = parsed
		default:
			*changes = append(*changes, path+"(type)")
			return nil, false
		}
		if schemaType(schema) == "integer" {
			f = float64(int64(f))
		}
		if min, ok := numberOf(schema["minimum"]); ok && f < min {
			*changes = append(*changes, path+"(below minimum)")
			return nil, false
		}
		return f, true

	case "string":
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t), true
		case float64:
			*changes = append(*changes, path+"(number->string)")
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case bool:
			*changes = append(*changes, path+"(bool->string)")
			return strconv.FormatBool(t), true
		default:
			*changes = append(*changes, path+"(type)")
			return nil, false
		}

	case "boolean":
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "yes", "si", "sí", "1":
				return true, true
			case "false", "no", "0", "":
				return false, true
			}
		case float64:
			return t != 0, true
		}
		*changes = append(*changes, path+"(type)")
		return nil, false
	}
	return v, true
}

func sanitizeObject(m map[string]any, schema map[string]any, path string, changes *[]string) map[string]any {
	props := properties(schema)
	closed := schema["additionalProperties"] == false

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if _, known := props[k]; known {
			continue
		}
		if to, ok := fieldSynonyms[strings.ToLower(k)]; ok {
			if _, target := props[to]; target {
				if _, exists := m[to]; !exists {
					m[to] = m[k]
					*changes = append(*changes, path+"."+k+"->"+to)
				}
				delete(m, k)
				continue
			}
		}
		if closed {
			delete(m, k)
			*changes = append(*changes, path+"."+k+"(unknown)")
		}
	}

	for k, sub := range props {
		val, present := m[k]
		if !present {
			continue
		}
		subSchema, _ := sub.(map[string]any)
		if subSchema == nil {
			continue
		}
		cleaned, keep := sanitizeValue(val, subSchema, path+"."+k, changes)
		if keep {
			m[k] = cleaned
		} else {
			delete(m, k)
		}
	}
	return m
}

func schemaType(schema map[string]any) string {
	t, _ := schema["type"].(string)
	return t
}

func properties(schema map[string]any) map[string]any {
	p, _ := schema["properties"].(map[string]any)
	return p
}

func hasRequired(m map[string]any, schema map[string]any) bool {
	req, _ := schema["required"].([]string)
	for _, k := range req {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func numberOf(x any) (float64, bool) {
	switch n := x.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
