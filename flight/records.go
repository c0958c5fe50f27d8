package flight

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/gridsource-go/catalog"
)

// RecordFromRows converts the rowData of a page to a record batch with the
// given schema. Row keys are matched to field names; missing keys become
// nulls and keys without a field are ignored. Geometry fields accept the
// GeoJSON objects produced by the payload encoder, and temporal fields
// accept its RFC 3339 times at any precision.
// Caller MUST call Release() on the returned record.
func RecordFromRows(mem memory.Allocator, schema *arrow.Schema, rowData json.RawMessage) (arrow.RecordBatch, error) {
	data := []byte(rowData)
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("[]")
	}

	data, err := normalizeRows(data, schema)
	if err != nil {
		return nil, err
	}

	rec, _, err := array.RecordFromJSON(mem, schema, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to convert rows: %w", err)
	}
	return rec, nil
}

type cellFunc func(json.RawMessage) (json.RawMessage, error)

// normalizeRows rewrites the cells the JSON reader cannot take as the
// payload encoder writes them.
func normalizeRows(data []byte, schema *arrow.Schema) ([]byte, error) {
	cells := make(map[string]cellFunc)
	for _, f := range schema.Fields() {
		if catalog.IsGeometry(f.Type) {
			cells[f.Name] = geometryCell
			continue
		}
		switch dt := f.Type.(type) {
		case *arrow.TimestampType:
			cells[f.Name] = timeCell(timestampLayout(dt.Unit), true)
		case *arrow.Date32Type, *arrow.Date64Type:
			cells[f.Name] = timeCell(time.DateOnly, false)
		}
	}
	if len(cells) == 0 {
		return data, nil
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to convert rows: %w", err)
	}
	for i, row := range rows {
		for name, cell := range cells {
			raw, ok := row[name]
			if !ok || string(raw) == "null" {
				continue
			}
			v, err := cell(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: field %s: %w", i, name, err)
			}
			row[name] = v
		}
	}
	return json.Marshal(rows)
}

// geometryCell replaces a GeoJSON geometry with WKB, which the binary
// storage of the geometry type reads as a base64 string.
func geometryCell(raw json.RawMessage) (json.RawMessage, error) {
	wkb, err := catalog.GeometryFromGeoJSON(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wkb)
}

// timeCell rewrites RFC 3339 strings with layout, which truncates the
// fraction to what the column stores. Other values pass through.
func timeCell(layout string, utc bool) cellFunc {
	return func(raw json.RawMessage) (json.RawMessage, error) {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return raw, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return raw, nil
		}
		if utc {
			t = t.UTC()
		}
		return json.Marshal(t.Format(layout))
	}
}

func timestampLayout(unit arrow.TimeUnit) string {
	switch unit {
	case arrow.Second:
		return "2006-01-02T15:04:05Z07:00"
	case arrow.Millisecond:
		return "2006-01-02T15:04:05.999Z07:00"
	case arrow.Microsecond:
		return "2006-01-02T15:04:05.999999Z07:00"
	default:
		return time.RFC3339Nano
	}
}
