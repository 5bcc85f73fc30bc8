package export

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// Field is one flattened column value.
type Field struct {
	Key   string
	Value any
}

// Flatten turns a record into a single row. Nested objects become
// parent_child columns, lists of objects are summarised as <key>_count and
// <key>_total (the sum of each element's total), and other lists are kept as
// JSON text. Top-level keys keep the record's order; nested keys are sorted.
func Flatten(r invoice.Record) []Field {
	var out []Field
	for _, k := range r.Keys() {
		v, _ := r.Get(k)
		out = flattenValue(out, k, v)
	}
	return out
}

func flattenValue(out []Field, key string, v any) []Field {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = flattenValue(out, key+"_"+k, val[k])
		}
		return out
	case []any:
		if len(val) > 0 {
			if _, ok := val[0].(map[string]any); ok {
				total := 0.0
				for _, el := range val {
					if obj, ok := el.(map[string]any); ok {
						if n, ok := invoice.Number(obj["total"]); ok {
							total += n
						}
					}
				}
				return append(out, Field{key + "_count", len(val)}, Field{key + "_total", total})
			}
		}
		data, _ := json.Marshal(val)
		return append(out, Field{key, string(data)})
	default:
		return append(out, Field{key, v})
	}
}

// Table flattens records into a header and rows. Columns appear in the order
// they are first seen; cells a record lacks are nil.
func Table(records []invoice.Record) ([]string, [][]any) {
	var header []string
	col := make(map[string]int)
	flat := make([][]Field, len(records))
	for i, r := range records {
		flat[i] = Flatten(r)
		for _, f := range flat[i] {
			if _, ok := col[f.Key]; !ok {
				col[f.Key] = len(header)
				header = append(header, f.Key)
			}
		}
	}

	rows := make([][]any, len(records))
	for i, fields := range flat {
		row := make([]any, len(header))
		for _, f := range fields {
			row[col[f.Key]] = f.Value
		}
		rows[i] = row
	}
	return header, rows
}

// cellText renders a flattened value for text formats.
func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
