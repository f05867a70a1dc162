package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Conform validates content strictly, then retries once after the lenient
// sanitize pass. It returns the JSON that passed.
func Conform(schema map[string]any, content []byte, reqID string, logger *slog.Logger) (json.RawMessage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	content = StripCodeFence(content)
	if len(content) == 0 {
		return nil, ErrEmptyResponse
	}
	strictErr := ValidateJSONAgainstSchema(schema, content)
	if strictErr == nil {
		return content, nil
	}

	cleaned, changes, err := SanitizeAgainstSchema(content, schema)
	if err != nil {
		logger.Error("llm.generate.sanitize_failed", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, strictErr)
	}
	if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
		logger.Error("llm.generate.schema_validation_failed",
			"req_id", reqID, "error", vErr, "content", truncate(string(content), 2000))
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, vErr)
	}
	logger.Warn("llm.generate.lenient_sanitize_applied", "req_id", reqID, "changes", changes)
	return cleaned, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
