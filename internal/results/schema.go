package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var optionalString = map[string]any{"type": []any{"string", "null"}}

// artifactSchema describes a result artifact. Item fields are optional and extra fields
// are ignored, but present fields must have the right type.
var artifactSchema = map[string]any{
	"$schema":  "https://json-schema.org/draft/2020-12/schema",
	"type":     "object",
	"required": []any{"items"},
	"properties": map[string]any{
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"clusterKey":           optionalString,
					"question":             optionalString,
					"answer":               optionalString,
					"vendor":               optionalString,
					"category":             optionalString,
					"clause":               optionalString,
					"note":                 optionalString,
					"status":               optionalString,
					"interventionRequired": map[string]any{"type": []any{"boolean", "null"}},
				},
			},
		},
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileArtifactSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(artifactSchema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("artifact.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("artifact.json")
	})
	return compiledSchema, schemaErr
}

// validateArtifact checks data against the artifact schema.
func validateArtifact(data []byte) error {
	schema, err := compileArtifactSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse artifact: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("artifact does not match schema: %w", err)
	}
	return nil
}
