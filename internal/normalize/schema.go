package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// canonicalSchema validates the canonical job input after variant mapping.
// Core components may assume every shape constraint enforced here.
var canonicalSchema = map[string]any{
	"type":     "object",
	"required": []any{"job_id", "page_width", "page_height", "elements"},
	"properties": map[string]any{
		"job_id": map[string]any{
			"type":    "string",
			"pattern": "^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$",
		},
		"page_width":  map[string]any{"type": "number", "exclusiveMinimum": 0},
		"page_height": map[string]any{"type": "number", "exclusiveMinimum": 0},
		"elements": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "class", "confidence", "box"},
				"properties": map[string]any{
					"id":         map[string]any{"type": "string", "minLength": 1},
					"class":      map[string]any{"type": "string", "minLength": 1},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"page_index": map[string]any{"type": "integer", "minimum": 0},
					"box": map[string]any{
						"type":     "object",
						"required": []any{"x1", "y1", "x2", "y2"},
						"properties": map[string]any{
							"x1": map[string]any{"type": "number"},
							"y1": map[string]any{"type": "number"},
							"x2": map[string]any{"type": "number"},
							"y2": map[string]any{"type": "number"},
						},
					},
				},
			},
		},
	},
}

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
