package structgen

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// blockStructureSchema is the shape contract for generated block graphs.
// Enum domains are NOT constrained here: invalid enum values are repaired by
// coercion after decoding, not rejected, so the schema checks structure only.
const blockStructureSchema = `{
	"type": "object",
	"required": ["blocks", "sources", "connections"],
	"properties": {
		"blocks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "intent", "title"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"intent": {"type": "string"},
					"title": {"type": "string"},
					"description": {"type": "string"},
					"properties": {"type": "object"},
					"application_name": {"type": "string"}
				}
			}
		},
		"sources": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string"},
					"location": {"type": "string"},
					"update_rules": {"type": "string"}
				}
			}
		},
		"connections": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["source_block_id", "target_block_id"],
				"properties": {
					"source_block_id": {"type": "string", "minLength": 1},
					"target_block_id": {"type": "string", "minLength": 1},
					"data_type": {"type": "string"},
					"update_rules": {"type": "string"}
				}
			}
		}
	}
}`

// ValidateBlockStructureJSON checks a decoded-ready JSON block against the
// block-graph shape contract before unmarshaling. Shape violations are
// ParseErrors (fatal for the stage).
func ValidateBlockStructureJSON(block string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(blockStructureSchema),
		gojsonschema.NewStringLoader(block),
	)
	if err != nil {
		return &ParseError{Reason: "schema validation failed", Output: block, Err: err}
	}

	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}

		return &ParseError{
			Reason: "block structure violates schema: " + strings.Join(reasons, "; "),
			Output: block,
		}
	}

	return nil
}
