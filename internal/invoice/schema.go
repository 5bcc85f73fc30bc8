package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is the field contract given to the model, rendered exactly as it is
// embedded in the extraction prompt.
const Schema = `{
  "invoice_number": "string",
  "date": "string (YYYY-MM-DD)",
  "vendor_name": "string",
  "vendor_address": "string",
  "customer_name": "string",
  "customer_address": "string",
  "items": [
    {
      "description": "string",
      "quantity": "number",
      "unit_price": "number",
      "total": "number"
    }
  ],
  "subtotal": "number",
  "tax": "number",
  "total": "number",
  "payment_terms": "string",
  "due_date": "string (YYYY-MM-DD)"
}`

// FieldOrder lists the schema's top-level fields in prompt order.
var FieldOrder = []string{
	"invoice_number", "date", "vendor_name", "vendor_address",
	"customer_name", "customer_address", "items",
	"subtotal", "tax", "total", "payment_terms", "due_date",
}

// conformanceSchema is the machine-checkable form of Schema. Every field is
// nullable and optional since the model is told to emit null for unknowns.
const conformanceSchema = `{
  "type": "object",
  "properties": {
    "invoice_number": {"type": ["string", "null"]},
    "date": {"anyOf": [{"type": "null"}, {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"}]},
    "vendor_name": {"type": ["string", "null"]},
    "vendor_address": {"type": ["string", "null"]},
    "customer_name": {"type": ["string", "null"]},
    "customer_address": {"type": ["string", "null"]},
    "items": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": ["string", "null"]},
          "quantity": {"type": ["number", "null"], "minimum": 0},
          "unit_price": {"type": ["number", "null"]},
          "total": {"type": ["number", "null"]}
        }
      }
    },
    "subtotal": {"type": ["number", "null"]},
    "tax": {"type": ["number", "null"]},
    "total": {"type": ["number", "null"]},
    "payment_terms": {"type": ["string", "null"]},
    "due_date": {"anyOf": [{"type": "null"}, {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"}]},
    "source_file": {"type": "string"}
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func conformance() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("invoice.json", strings.NewReader(conformanceSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("invoice.json")
	})
	return compiled, compileErr
}

// CheckConformance reports where an invoice record departs from the schema,
// as "location: message" strings sorted by location. It never changes the
// record; callers use it for warnings only. Error records always conform.
func CheckConformance(r Record) ([]string, error) {
	if r.IsError() {
		return nil, nil
	}
	schema, err := conformance()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var v any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	err = schema.Validate(v)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	var issues []string
	collectIssues(verr, &issues)
	sort.Strings(issues)
	return issues, nil
}

func collectIssues(verr *jsonschema.ValidationError, out *[]string) {
	if len(verr.Causes) == 0 {
		loc := verr.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+verr.Message)
		return
	}
	for _, c := range verr.Causes {
		collectIssues(c, out)
	}
}
