package rules

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// rulesSchema constrains the rules file shape before unmarshalling,
// so a typoed key or a non-string alias fails loudly at startup
// instead of silently producing an empty rule.
const rulesSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "index_patterns": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "subject_aliases": {
      "type": "object",
      "additionalProperties": {"type": "string", "minLength": 1}
    },
    "reject_indexes": {
      "type": "array",
      "items": {"type": "string", "pattern": "^\\d+$"}
    },
    "index_headers": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "name_headers": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "mean_headers": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "ocr_psm": {"type": "integer", "minimum": 0, "maximum": 13}
  }
}`

func parse(data []byte) (*Rules, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.json", bytes.NewReader([]byte(rulesSchema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("rules do not match schema: %w", err)
	}

	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	return &r, nil
}
