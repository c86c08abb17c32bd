package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExtractionFunctionName is the tool the model is asked to call in function mode
const ExtractionFunctionName = "extract_invoice_data"

var amountType = []string{"number", "string"}

func partySchema(withTaxID bool) map[string]any {
	props := map[string]any{
		"name":    map[string]any{"type": []string{"string", "null"}},
		"email":   map[string]any{"type": []string{"string", "null"}},
		"phone":   map[string]any{"type": []string{"string", "null"}},
		"address": map[string]any{"type": []string{"string", "null"}},
	}
	if withTaxID {
		props["taxId"] = map[string]any{"type": []string{"string", "null"}}
	}
	return map[string]any{"type": []string{"object", "null"}, "properties": props}
}

// InvoiceSchema is the JSON schema every extraction result must satisfy.
// It doubles as the parameter schema of the extraction function.
func InvoiceSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoiceNumber": map[string]any{"type": "string", "minLength": 1, "description": "Invoice number as printed"},
			"date":          map[string]any{"type": "string", "minLength": 1, "description": "Invoice date, YYYY-MM-DD"},
			"type":          map[string]any{"type": []string{"string", "null"}},
			"totalAmount":   map[string]any{"type": amountType, "description": "Total amount including VAT"},
			"vatAmount":     map[string]any{"type": []string{"number", "string", "null"}},
			"supplier":      partySchema(true),
			"customer":      partySchema(false),
			"items": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"itemName":    map[string]any{"type": []string{"string", "null"}},
						"itemCode":    map[string]any{"type": []string{"string", "null"}},
						"description": map[string]any{"type": []string{"string", "null"}},
						"quantity":    map[string]any{"type": []string{"number", "string", "null"}},
						"unitPrice":   map[string]any{"type": []string{"number", "string", "null"}},
						"totalPrice":  map[string]any{"type": []string{"number", "string", "null"}},
					},
				},
			},
		},
		"required": []string{"invoiceNumber", "date", "totalAmount"},
	}
}

// compileSchema compiles a schema map for repeated validation
func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("invoice.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
