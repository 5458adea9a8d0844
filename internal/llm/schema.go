package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildOrderJSONSchema returns the shape the model output must have
// (draft 2020-12 subset). Leaf keys are not required here: missing required
// values are reported by the mapper with the exact path.
func BuildOrderJSONSchema() map[string]any {
	patient := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"medical_record_number": nullableString(),
			"first_name":            nullableString(),
			"last_name":             nullableString(),
			"age":                   nullableInt(0, 150),
		},
	}
	prescriber := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"first_name":     nullableString(),
			"last_name":      nullableString(),
			"npi":            nullableString(),
			"phone_number":   nullableString(),
			"email":          nullableString(),
			"clinic_name":    nullableString(),
			"clinic_address": nullableString(),
		},
	}
	device := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":     nullableString(),
			"sku":      nullableString(),
			"quantity": nullableInt(1, -1),
		},
	}
	order := map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"item_name":         nullableString(),
			"item_quantity":     nullableInt(1, -1),
			"reason_prescribed": nullableString(),
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"patient":    patient,
			"prescriber": prescriber,
			"devices":    map[string]any{"type": []any{"array", "null"}, "items": device},
			"order":      order,
		},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

// nullableInt bounds an optional integer; max < 0 means unbounded.
func nullableInt(min, max int) map[string]any {
	p := map[string]any{"type": []any{"integer", "null"}, "minimum": min}
	if max >= 0 {
		p["maximum"] = max
	}
	return p
}

var (
	orderSchemaOnce sync.Once
	orderSchema     *jsonschema.Schema
	orderSchemaErr  error
)

func compiledOrderSchema() (*jsonschema.Schema, error) {
	orderSchemaOnce.Do(func() {
		orderSchema, orderSchemaErr = compileSchema(BuildOrderJSONSchema())
	})
	return orderSchema, orderSchemaErr
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
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
