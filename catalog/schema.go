package catalog

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	gridsource "github.com/hugr-lab/gridsource-go"
)

// ColumnSpec declares one column of a source schema.
type ColumnSpec struct {
	// Name is the grid column id.
	Name string `yaml:"name"`

	// Type is one of string, int64, float64, bool, timestamp, date or geometry.
	Type string `yaml:"type"`

	// SRID of a geometry column.
	// OPTIONAL: defaults to 4326.
	SRID int `yaml:"srid"`
}

// ParseColumnType maps a type name to an Arrow type. Geometry columns are
// built with NewGeometryField instead.
func ParseColumnType(name string) (arrow.DataType, error) {
	switch strings.ToLower(name) {
	case "string", "text", "varchar":
		return arrow.BinaryTypes.String, nil
	case "int64", "int", "integer", "bigint":
		return arrow.PrimitiveTypes.Int64, nil
	case "float64", "float", "double":
		return arrow.PrimitiveTypes.Float64, nil
	case "bool", "boolean":
		return arrow.FixedWidthTypes.Boolean, nil
	case "timestamp":
		return arrow.FixedWidthTypes.Timestamp_us, nil
	case "date":
		return arrow.FixedWidthTypes.Date32, nil
	}
	return nil, fmt.Errorf("unknown column type %q", name)
}

// NewSchema builds a schema from column specs. All columns are nullable.
func NewSchema(cols []ColumnSpec) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column name cannot be empty")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column name: %s", c.Name)
		}
		seen[c.Name] = true

		if strings.EqualFold(c.Type, "geometry") {
			srid := c.SRID
			if srid == 0 {
				srid = 4326
			}
			fields = append(fields, NewGeometryField(c.Name, true, srid))
			continue
		}
		dt, err := ParseColumnType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: dt, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

// ColumnDefs derives grid column definitions from a schema: every column is
// sortable and gets the filter matching its type. Geometry columns are
// neither sortable nor filterable.
func ColumnDefs(schema *arrow.Schema) []gridsource.ColumnDef {
	defs := make([]gridsource.ColumnDef, 0, schema.NumFields())
	for _, f := range schema.Fields() {
		def := gridsource.NewColumnDef(f.Name)
		if IsGeometry(f.Type) {
			defs = append(defs, def.WithSortable(false).WithFilter(gridsource.FilterFalse))
			continue
		}
		defs = append(defs, def.WithSortable(true).WithFilter(filterFor(f.Type)))
	}
	return defs
}

func filterFor(dt arrow.DataType) gridsource.Filter {
	id := dt.ID()
	switch {
	case arrow.IsInteger(id), arrow.IsFloating(id):
		return gridsource.FilterNumber
	case id == arrow.TIMESTAMP, id == arrow.DATE32, id == arrow.DATE64:
		return gridsource.FilterDate
	case id == arrow.STRING, id == arrow.LARGE_STRING:
		return gridsource.FilterText
	}
	return gridsource.FilterTrue
}

// ProjectSchema returns a schema with only the specified columns.
// If columns is nil or empty, returns the original schema.
// Columns are returned in the order specified, unknown columns are skipped.
func ProjectSchema(schema *arrow.Schema, columns []string) *arrow.Schema {
	if len(columns) == 0 {
		return schema
	}

	colIndex := make(map[string]int, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		colIndex[schema.Field(i).Name] = i
	}

	fields := make([]arrow.Field, 0, len(columns))
	for _, col := range columns {
		if idx, ok := colIndex[col]; ok {
			fields = append(fields, schema.Field(idx))
		}
	}

	if len(fields) == 0 {
		// No matching columns - return original schema
		return schema
	}

	meta := schema.Metadata()
	return arrow.NewSchema(fields, &meta)
}
