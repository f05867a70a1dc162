package llm

// ExtractedItem is one line as the model returns it.
type ExtractedItem struct {
	Code              string  `json:"code,omitempty"`
	Description       string  `json:"description"`
	Unit              string  `json:"unit,omitempty"`
	Quantity          float64 `json:"quantity"`
	Chapter           string  `json:"chapter,omitempty"`
	Section           string  `json:"section,omitempty"`
	ContinuesPrevious bool    `json:"continues_previous,omitempty"`
}

// ExtractionResult is the model output for one chunk or page.
type ExtractionResult struct {
	DetectedChapter string          `json:"detected_chapter,omitempty"`
	DetectedSection string          `json:"detected_section,omitempty"`
	Items           []ExtractedItem `json:"items"`
}

// DimensionResult is the model output of a dimensional inference call.
// Only literal values are filled; the unit decision is made in code.
type DimensionResult struct {
	HasDimensions bool    `json:"has_dimensions"`
	AreaM2        float64 `json:"area_m2,omitempty"`
	ThicknessM    float64 `json:"thickness_m,omitempty"`
	LengthM       float64 `json:"length_m,omitempty"`
	VolumeM3      float64 `json:"volume_m3,omitempty"`
	Reasoning     string  `json:"reasoning,omitempty"`
}

// VerificationResult picks a 1-based candidate index, 0 meaning none fits.
type VerificationResult struct {
	SelectedIndex int    `json:"selected_index"`
	Reason        string `json:"reason,omitempty"`
}

// ExtractionSchema returns the JSON-Schema for chunk/page extraction.
// We pass this to the provider as a structured output constraint and also use it locally to validate.
func ExtractionSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"code":               map[string]any{"type": "string"},
			"description":        map[string]any{"type": "string", "minLength": 1},
			"unit":               map[string]any{"type": "string"},
			"quantity":           map[string]any{"type": "number"},
			"chapter":            map[string]any{"type": "string"},
			"section":            map[string]any{"type": "string"},
			"continues_previous": map[string]any{"type": "boolean"},
		},
		"required": []string{"description"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"detected_chapter": map[string]any{"type": "string"},
			"detected_section": map[string]any{"type": "string"},
			"items":            map[string]any{"type": "array", "items": item},
		},
		"required": []string{"items"},
	}
}

// DimensionSchema returns the JSON-Schema for dimensional inference.
func DimensionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"has_dimensions": map[string]any{"type": "boolean"},
			"area_m2":        nonNegative(),
			"thickness_m":    nonNegative(),
			"length_m":       nonNegative(),
			"volume_m3":      nonNegative(),
			"reasoning":      map[string]any{"type": "string"},
		},
		"required": []string{"has_dimensions"},
	}
}

// VerificationSchema returns the JSON-Schema for candidate disambiguation.
func VerificationSchema(candidates int) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"selected_index": map[string]any{"type": "integer", "minimum": 0, "maximum": candidates},
			"reason":         map[string]any{"type": "string"},
		},
		"required": []string{"selected_index"},
	}
}

func nonNegative() map[string]any {
	return map[string]any{"type": "number", "minimum": 0}
}
