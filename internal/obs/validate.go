/*
Copyright 2025 The ShardQL Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package obs

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonschema"
)

// DocumentSchema pairs a JSON-schema document with the boundary it guards
// (the query-plan JSON or the partition-ranges JSON handed to Create).
type DocumentSchema struct {
	Schema map[string]any
}

// ValidationError is a single schema-validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationResult is the outcome of validating one document.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Validate checks data (a JSON document) against the schema, compiling the
// schema fresh on every call. Its only caller is cmd/queryreplay, and only
// when --strict is set; the embed package never calls it, so the compile
// cost is not paid on the hot per-turn path.
func (d *DocumentSchema) Validate(data []byte) (*ValidationResult, error) {
	if len(d.Schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.WithDecoderJSON(sonic.Unmarshal)
	compiler.WithEncoderJSON(sonic.Marshal)

	schemaBytes, err := sonic.Marshal(d.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshalling schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaBytes)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	var doc map[string]any
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshalling document to map: %w", err)
	}

	result := compiled.ValidateMap(doc)
	vr := &ValidationResult{Valid: result.IsValid()}
	if !result.IsValid() {
		vr.Errors = make([]ValidationError, 0, len(result.Errors))
		for field, e := range result.Errors {
			vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: e.Message})
		}
	}
	return vr, nil
}

// QueryPlanSchema is the JSON-schema document describing the gateway's
// query-plan wire shape (§6), used by cmd/queryreplay to give operators
// readable fixture errors before bytes ever reach Parse.
var QueryPlanSchema = DocumentSchema{
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queryInfo": map[string]any{
				"type": "object",
			},
			"queryRanges": map[string]any{
				"type": "array",
			},
			"hybridSearchQueryInfo": map[string]any{
				"type": []any{"object", "null"},
			},
		},
		"required": []any{"queryInfo"},
	},
}

// PartitionRangesSchema is the JSON-schema document describing the
// partition-ranges wire shape (§6).
var PartitionRangesSchema = DocumentSchema{
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"PartitionKeyRanges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":           map[string]any{"type": "string"},
						"minInclusive": map[string]any{"type": "string"},
						"maxExclusive": map[string]any{"type": "string"},
					},
					"required": []any{"id", "minInclusive", "maxExclusive"},
				},
			},
		},
		"required": []any{"PartitionKeyRanges"},
	},
}
