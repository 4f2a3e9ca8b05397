package completion

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Amounts may come back as numbers or numeric strings; extra keys are tolerated.
const fieldsSchema = `{
  "type": "object",
  "properties": {
    "vendor":         {"type": ["string", "null"]},
    "invoice_number": {"type": ["string", "number", "null"]},
    "date":           {"type": ["string", "null"]},
    "amount":         {"type": ["number", "string", "null"]},
    "vat":            {"type": ["number", "string", "null"]}
  }
}`

func compileFieldsSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fields.json", strings.NewReader(fieldsSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("fields.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
