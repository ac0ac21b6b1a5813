package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

// buildLogFileSchema returns a JSON-Schema (draft 2020-12 subset) for the
// persisted log document as a generic map. It is compiled once per store and
// used by VerifyIntegrity to catch hand-edited or truncated documents.
func buildLogFileSchema() map[string]any {
	statusEnum := make([]any, 0, len(constants.AllStatuses))
	for _, s := range constants.AllStatuses {
		statusEnum = append(statusEnum, string(s))
	}

	transition := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"from_status": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "null"},
					map[string]any{"type": "string", "enum": statusEnum},
				},
			},
			"to_status": map[string]any{"type": "string", "enum": statusEnum},
			"timestamp": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"to_status", "timestamp"},
	}

	logEntry := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":                map[string]any{"type": "string", "minLength": 36, "maxLength": 36},
			"original_filename": map[string]any{"type": "string", "minLength": 1},
			"file_path":         map[string]any{"type": "string", "minLength": 1},
			"file_size":         map[string]any{"type": "integer", "minimum": 0},
			"current_status":    map[string]any{"type": "string", "enum": statusEnum},
			"status_history":    map[string]any{"type": "array", "items": transition, "minItems": 1},
			"created_at":        map[string]any{"type": "string", "minLength": 1},
			"last_updated":      map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{
			"id", "original_filename", "file_path", "file_size",
			"current_status", "status_history", "created_at", "last_updated",
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"version":                map[string]any{"type": "string", "minLength": 1},
			"created_at":             map[string]any{"type": "string", "minLength": 1},
			"last_updated":           map[string]any{"type": "string", "minLength": 1},
			"logs":                   map[string]any{"type": "array", "items": logEntry},
			"total_receipts":         map[string]any{"type": "integer", "minimum": 0},
			"successful_extractions": map[string]any{"type": "integer", "minimum": 0},
			"failed_extractions":     map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{
			"version", "created_at", "last_updated", "logs",
			"total_receipts", "successful_extractions", "failed_extractions",
		},
	}
}

// compileLogFileSchema compiles the document schema for repeated validation.
func compileLogFileSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(buildLogFileSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("receipt_log.schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("receipt_log.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateDocument checks raw document bytes against the compiled schema.
func validateDocument(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}
