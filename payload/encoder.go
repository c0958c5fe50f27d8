// Package payload encodes fetched rows into the structured JSON value the grid
// consumes as rowData.
//
// Rows are opaque to the bridge; the encoder only normalizes the few value
// kinds the grid cannot consume directly:
//   - map keys (and struct fields when requested) are re-cased to lowerCamel
//   - orb geometries become GeoJSON geometry objects
//   - time.Time values are formatted with a configurable layout
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// KeyStyle selects how row field names are written.
type KeyStyle int

const (
	// KeysLowerCamel rewrites field names to lowerCamelCase ("first_name" -> "firstName").
	KeysLowerCamel KeyStyle = iota
	// KeysAsIs keeps field names untouched.
	KeysAsIs
)

// ErrNotSlice is returned when Encode receives something other than a slice or array.
var ErrNotSlice = errors.New("rows must be a slice or array")

// Options configures an Encoder.
type Options struct {
	// Keys selects field name casing.
	// OPTIONAL: defaults to KeysLowerCamel.
	Keys KeyStyle

	// TimeLayout is used for time.Time values found in map rows.
	// OPTIONAL: defaults to time.RFC3339Nano.
	TimeLayout string
}

// Encoder converts row slices to JSON arrays.
// Safe for concurrent use.
type Encoder struct {
	keys       KeyStyle
	timeLayout string
}

// NewEncoder creates an encoder. If opts is nil, defaults are used.
func NewEncoder(opts *Options) *Encoder {
	if opts == nil {
		opts = &Options{}
	}
	layout := opts.TimeLayout
	if layout == "" {
		layout = time.RFC3339Nano
	}
	return &Encoder{
		keys:       opts.Keys,
		timeLayout: layout,
	}
}

// Default returns an encoder with default options.
func Default() *Encoder {
	return NewEncoder(nil)
}

// Encode serializes rows (any slice or array) to a JSON array.
// A nil or empty slice encodes as [].
func (e *Encoder) Encode(rows any) (json.RawMessage, error) {
	if rows == nil {
		return json.RawMessage("[]"), nil
	}

	rv := reflect.ValueOf(rows)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: got %T", ErrNotSlice, rows)
	}
	if rv.Len() == 0 {
		return json.RawMessage("[]"), nil
	}

	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := e.normalize(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rows: %w", err)
	}
	return data, nil
}

// normalize rewrites a single value into something json.Marshal renders the
// way the grid expects.
func (e *Encoder) normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return x, nil
	case orb.Geometry:
		return geojson.NewGeometry(x), nil
	case time.Time:
		return x.Format(e.timeLayout), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.Format(e.timeLayout), nil
	case map[string]any:
		return e.normalizeMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := e.normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	if e.keys == KeysLowerCamel && isStruct(v) {
		return e.structToMap(v)
	}
	return v, nil
}

func (e *Encoder) normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		n, err := e.normalize(item)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[e.key(k)] = n
	}
	return out, nil
}

// structToMap round-trips a struct through JSON so its field names can be
// re-cased. Numbers are kept as json.Number to avoid float conversion.
func (e *Encoder) structToMap(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		// Struct with a custom marshaler that isn't an object; keep as is.
		return json.RawMessage(data), nil
	}
	if m == nil {
		return nil, nil
	}
	return e.normalizeMap(m)
}

func (e *Encoder) key(k string) string {
	if e.keys == KeysAsIs {
		return k
	}
	return strcase.ToLowerCamel(k)
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// FieldName returns the name the encoder writes for a source field name.
// Sources use it to resolve grid column ids back to their own field names.
func (e *Encoder) FieldName(name string) string {
	return e.key(name)
}

// ParseKeyStyle parses "lowerCamel" or "asIs".
func ParseKeyStyle(s string) (KeyStyle, error) {
	switch s {
	case "", "lowerCamel":
		return KeysLowerCamel, nil
	case "asIs":
		return KeysAsIs, nil
	default:
		return KeysLowerCamel, fmt.Errorf("unknown key style %q", s)
	}
}
