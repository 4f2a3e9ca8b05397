// Package completion adapts a JSON-producing language model into the optional
// field-completion step of the pipeline.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// JSONGenerator is implemented by the ollama, openai and vertex clients.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type Completer struct {
	gen    JSONGenerator
	schema *jsonschema.Schema
}

func New(gen JSONGenerator) (*Completer, error) {
	if gen == nil {
		return nil, errors.New("completion: generator is nil")
	}
	schema, err := compileFieldsSchema()
	if err != nil {
		return nil, err
	}
	return &Completer{gen: gen, schema: schema}, nil
}

func (c *Completer) Available() bool {
	return c != nil && c.gen != nil
}

func (c *Completer) Complete(ctx context.Context, text string) (domain.FieldSet, error) {
	raw, err := c.gen.GenerateJSON(ctx, buildExtractionPrompt(text))
	if err != nil {
		return domain.FieldSet{}, fmt.Errorf("generate fields: %w", err)
	}

	content := extractJSONObject(stripCodeFence(raw))
	var decoded any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return domain.FieldSet{}, fmt.Errorf("parse completion json: %w", err)
	}
	if err := c.schema.Validate(decoded); err != nil {
		return domain.FieldSet{}, fmt.Errorf("completion json does not match schema: %w", err)
	}

	obj, _ := decoded.(map[string]any)
	return domain.FieldSet{
		Vendor:        stringField(obj["vendor"]),
		InvoiceNumber: stringField(obj["invoice_number"]),
		Date:          stringField(obj["date"]),
		Amount:        numberField(obj["amount"]),
		VAT:           numberField(obj["vat"]),
	}, nil
}

// Disabled is used when no provider is configured.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Complete(context.Context, string) (domain.FieldSet, error) {
	return domain.FieldSet{}, errors.New("completion is disabled")
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func stringField(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return domain.StringPtr(s)
}

func numberField(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(t)
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
