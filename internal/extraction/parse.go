package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// StripCodeFence removes a leading ```json (or bare ```) marker and a
// trailing ``` marker from a model response. Text without fences is only
// trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseResponse turns raw model output into a record for fileName. Output
// that is not a JSON object yields an error record that keeps the original
// text in raw_response. source_file always reflects fileName.
func ParseResponse(content, fileName string) invoice.Record {
	body := StripCodeFence(content)

	var probe any
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return parseFailure(err.Error(), content, fileName)
	}
	if _, ok := probe.(map[string]any); !ok {
		return parseFailure(fmt.Sprintf("expected a JSON object, got %s", jsonKind(probe)), content, fileName)
	}

	record, err := invoice.ParseRecord([]byte(body))
	if err != nil {
		return parseFailure(err.Error(), content, fileName)
	}
	record.Set(invoice.KeySourceFile, fileName)
	return record
}

func parseFailure(details, content, fileName string) invoice.Record {
	return invoice.NewErrorRecord(fmt.Sprintf("%s: %s", invoice.ErrSchemaParse, details), &content, fileName)
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
