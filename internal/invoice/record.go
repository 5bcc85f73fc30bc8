package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Well-known record keys.
const (
	KeyError       = "error"
	KeyRawResponse = "raw_response"
	KeySourceFile  = "source_file"
)

// Record is one structured extraction result: a JSON object whose keys keep
// the order the model produced them in. A record carrying an "error" key is an
// error record; every other record is an invoice record whose fields are all
// untrusted except source_file.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{fields: orderedmap.New[string, any]()}
}

// NewErrorRecord builds {error, raw_response, source_file}. A nil raw response
// is serialized as JSON null.
func NewErrorRecord(message string, rawResponse *string, sourceFile string) Record {
	r := NewRecord()
	r.Set(KeyError, message)
	if rawResponse != nil {
		r.Set(KeyRawResponse, *rawResponse)
	} else {
		r.Set(KeyRawResponse, nil)
	}
	r.Set(KeySourceFile, sourceFile)
	return r
}

// RecordFromMap builds a record from a plain map. Keys are inserted in the
// order given by keys; map entries not listed are appended in map order.
func RecordFromMap(m map[string]any, keys ...string) Record {
	r := NewRecord()
	for _, k := range keys {
		if v, ok := m[k]; ok {
			r.Set(k, v)
		}
	}
	for k, v := range m {
		if _, ok := r.Get(k); !ok {
			r.Set(k, v)
		}
	}
	return r
}

// ParseRecord decodes a JSON object into a Record, preserving key order.
func ParseRecord(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, fmt.Errorf("%w: expected a JSON object", ErrSchemaParse)
	}
	r := NewRecord()
	if err := json.Unmarshal(trimmed, r.fields); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrSchemaParse, err)
	}
	return r, nil
}

func (r *Record) ensure() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
}

// Set stores a value, keeping the key's original position when it exists.
func (r *Record) Set(key string, value any) {
	r.ensure()
	r.fields.Set(key, value)
}

// Get returns the raw value for key.
func (r Record) Get(key string) (any, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Len returns the number of keys.
func (r Record) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the keys in insertion order.
func (r Record) Keys() []string {
	if r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map returns a shallow, unordered copy of the record.
func (r Record) Map() map[string]any {
	m := make(map[string]any, r.Len())
	if r.fields == nil {
		return m
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}

// IsError reports whether the record is tagged as an error record.
func (r Record) IsError() bool {
	_, ok := r.Get(KeyError)
	return ok
}

// ErrorMessage returns the error text of an error record.
func (r Record) ErrorMessage() string {
	v, _ := r.Get(KeyError)
	switch e := v.(type) {
	case string:
		return e
	case nil:
		return ""
	default:
		return fmt.Sprint(e)
	}
}

// SourceFile returns the originating file name.
func (r Record) SourceFile() string {
	return r.String(KeySourceFile)
}

// String returns the value at key when it is a string, otherwise "".
func (r Record) String(key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
}

// Number returns the value at key when it is numeric.
func (r Record) Number(key string) (float64, bool) {
	v, _ := r.Get(key)
	return Number(v)
}

// MarshalJSON encodes the record as an object with keys in insertion order.
// Values are encoded without HTML escaping; callers that want <>& escaped get
// it from their own encoder.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	// Encode terminates each value with a newline, dropped before the separator.
	encode := func(v any) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1)
		return nil
	}

	buf.WriteByte('{')
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if err := encode(pair.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(pair.Value); err != nil {
			return nil, fmt.Errorf("encoding %q: %w", pair.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object into the record.
func (r *Record) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRecord(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Number converts decoded JSON numbers and Go numeric types to float64.
// Strings, booleans and nil are not numbers.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
