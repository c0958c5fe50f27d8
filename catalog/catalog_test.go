package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paulmach/orb"

	gridsource "github.com/hugr-lab/gridsource-go"
)

func testDataSource(destroyed *int) gridsource.DataSource {
	return gridsource.DataSource{
		GetRows: func(ctx context.Context, req gridsource.HostRequest) { req.Fail() },
		Destroy: func() {
			if destroyed != nil {
				*destroyed++
			}
		},
	}
}

func testSchema(t *testing.T) *arrow.Schema {
	t.Helper()
	schema, err := NewSchema([]ColumnSpec{
		{Name: "id", Type: "int64"},
		{Name: "name", Type: "string"},
		{Name: "score", Type: "double"},
		{Name: "created", Type: "timestamp"},
		{Name: "active", Type: "bool"},
		{Name: "location", Type: "geometry"},
	})
	if err != nil {
		t.Fatalf("NewSchema() failed: %v", err)
	}
	return schema
}

// TestBuilderSources tests that sources are listed by name.
func TestBuilderSources(t *testing.T) {
	cat, err := NewBuilder().
		Source(SourceDef{Name: "orders", DataSource: testDataSource(nil)}).
		Source(SourceDef{Name: "customers", Comment: "All customers", DataSource: testDataSource(nil)}).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	ctx := context.Background()
	sources, err := cat.Sources(ctx)
	if err != nil {
		t.Fatalf("Sources() failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name() != "customers" || sources[1].Name() != "orders" {
		t.Errorf("Expected sources ordered by name, got %s, %s", sources[0].Name(), sources[1].Name())
	}
	if sources[0].Comment() != "All customers" {
		t.Errorf("Expected comment to be preserved, got %q", sources[0].Comment())
	}

	s, err := cat.Source(ctx, "orders")
	if err != nil || s == nil {
		t.Fatalf("Source(orders) = %v, %v", s, err)
	}
	s, err = cat.Source(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Source() failed for nonexistent: %v", err)
	}
	if s != nil {
		t.Error("Expected nil for nonexistent source")
	}
}

// TestBuilderValidation tests invalid catalog definitions.
func TestBuilderValidation(t *testing.T) {
	tests := []struct {
		name string
		defs []SourceDef
	}{
		{
			name: "empty name",
			defs: []SourceDef{{DataSource: testDataSource(nil)}},
		},
		{
			name: "duplicate name",
			defs: []SourceDef{
				{Name: "a", DataSource: testDataSource(nil)},
				{Name: "a", DataSource: testDataSource(nil)},
			},
		},
		{
			name: "missing data source",
			defs: []SourceDef{{Name: "a"}},
		},
		{
			name: "invalid options",
			defs: []SourceDef{{
				Name:       "a",
				DataSource: testDataSource(nil),
				Options:    gridsource.NewGridOptions().WithCacheBlockSize(0),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			for _, d := range tt.defs {
				b.Source(d)
			}
			_, err := b.Build()
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("Expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

// TestBuilderBuildOnce tests that a builder can only be built once.
func TestBuilderBuildOnce(t *testing.T) {
	b := NewBuilder().Source(SourceDef{Name: "a", DataSource: testDataSource(nil)})
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Error("Expected error on second Build()")
	}
}

// TestGridOptionsDefaults tests options derived from the schema.
func TestGridOptionsDefaults(t *testing.T) {
	cat, err := NewBuilder().
		Source(SourceDef{Name: "people", DataSource: testDataSource(nil), Schema: testSchema(t)}).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	s, _ := cat.Source(context.Background(), "people")
	b, err := json.Marshal(s.GridOptions())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"columnDefs":[` +
		`{"field":"id","sortable":true,"filter":"agNumberColumnFilter"},` +
		`{"field":"name","sortable":true,"filter":"agTextColumnFilter"},` +
		`{"field":"score","sortable":true,"filter":"agNumberColumnFilter"},` +
		`{"field":"created","sortable":true,"filter":"agDateColumnFilter"},` +
		`{"field":"active","sortable":true,"filter":true},` +
		`{"field":"location","sortable":false,"filter":false}` +
		`],"rowModelType":"infinite"}`
	if string(b) != want {
		t.Errorf("GridOptions JSON:\n got %s\nwant %s", b, want)
	}
}

// TestGridOptionsCopy tests that callers cannot mutate the published options.
func TestGridOptionsCopy(t *testing.T) {
	options := gridsource.NewGridOptions().
		WithRowModelType(gridsource.RowModelServerSide).
		WithCacheBlockSize(50)
	cat, err := NewBuilder().
		Source(SourceDef{Name: "a", DataSource: testDataSource(nil), Options: options}).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	s, _ := cat.Source(context.Background(), "a")
	got := s.GridOptions()
	if *got.RowModelType != gridsource.RowModelServerSide {
		t.Errorf("Expected serverSide row model, got %s", *got.RowModelType)
	}
	if got.Datasource != nil {
		t.Error("Expected Datasource to be nil")
	}

	got.WithCacheBlockSize(1)
	if *s.GridOptions().CacheBlockSize != 50 {
		t.Error("GridOptions() returned shared state")
	}
}

// TestArrowSchemaProjection tests column projection.
func TestArrowSchemaProjection(t *testing.T) {
	schema := testSchema(t)
	s := NewStaticSource("people", "", testDataSource(nil), nil, schema)

	if got := s.ArrowSchema(nil); got != schema {
		t.Error("Expected full schema for nil columns")
	}

	projected := s.ArrowSchema([]string{"name", "id", "unknown"})
	if projected.NumFields() != 2 {
		t.Fatalf("Expected 2 fields, got %d", projected.NumFields())
	}
	if projected.Field(0).Name != "name" || projected.Field(1).Name != "id" {
		t.Errorf("Unexpected projection order: %s", projected)
	}

	if got := s.ArrowSchema([]string{"unknown"}); got != schema {
		t.Error("Expected full schema when no column matches")
	}

	if NewStaticSource("a", "", testDataSource(nil), nil, nil).ArrowSchema(nil) != nil {
		t.Error("Expected nil schema")
	}
}

// TestNewSchemaErrors tests invalid column specs.
func TestNewSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		cols []ColumnSpec
	}{
		{"empty name", []ColumnSpec{{Type: "string"}}},
		{"duplicate", []ColumnSpec{{Name: "a", Type: "string"}, {Name: "a", Type: "int64"}}},
		{"unknown type", []ColumnSpec{{Name: "a", Type: "uuid"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSchema(tt.cols); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

// TestGeometryField tests geometry extension fields.
func TestGeometryField(t *testing.T) {
	f := NewGeometryField("geom", true, 3857)
	if !IsGeometry(f.Type) {
		t.Fatal("Expected geometry type")
	}
	if v, ok := f.Metadata.GetValue("srid"); !ok || v != "3857" {
		t.Errorf("Expected srid metadata 3857, got %q", v)
	}
	if !arrow.TypeEqual(f.Type.(arrow.ExtensionType).StorageType(), arrow.BinaryTypes.Binary) {
		t.Error("Expected Binary storage")
	}
	if IsGeometry(arrow.BinaryTypes.Binary) {
		t.Error("Binary must not be reported as geometry")
	}
}

// TestGeometryTypeMetadata tests the SRID round trip through extension
// metadata.
func TestGeometryTypeMetadata(t *testing.T) {
	typ := NewGeometryType(4326)
	if typ.Serialize() != `{"crs":"EPSG:4326","encoding":"WKB"}` {
		t.Errorf("Expected EPSG:4326 metadata, got %s", typ.Serialize())
	}

	got, err := typ.Deserialize(arrow.BinaryTypes.Binary, typ.Serialize())
	if err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}
	if !typ.ExtensionEquals(got) {
		t.Errorf("Expected %s, got %s", typ, got)
	}
	if typ.ExtensionEquals(NewGeometryType(3857)) {
		t.Error("Expected different SRIDs to differ")
	}

	unknown, err := typ.Deserialize(arrow.BinaryTypes.Binary, "")
	if err != nil || unknown.(*GeometryType).SRID != 0 {
		t.Errorf("Expected unknown SRID, got %v (%v)", unknown, err)
	}
	if _, err := typ.Deserialize(arrow.BinaryTypes.String, ""); err == nil {
		t.Error("Expected error for string storage")
	}
	if _, err := typ.Deserialize(arrow.BinaryTypes.Binary, `{"crs":"OGC:CRS84","encoding":"WKB"}`); err == nil {
		t.Error("Expected error for non-EPSG crs")
	}
}

// TestGeometryFromGeoJSON tests GeoJSON to WKB conversion.
func TestGeometryFromGeoJSON(t *testing.T) {
	b, err := GeometryFromGeoJSON([]byte(`{"type":"Point","coordinates":[1,2]}`))
	if err != nil {
		t.Fatalf("GeometryFromGeoJSON() failed: %v", err)
	}
	g, err := DecodeGeometry(b)
	if err != nil {
		t.Fatalf("DecodeGeometry() failed: %v", err)
	}
	if p, ok := g.(orb.Point); !ok || !p.Equal(orb.Point{1, 2}) {
		t.Errorf("Expected POINT(1 2), got %v", g)
	}

	if _, err := GeometryFromGeoJSON([]byte(`{"type":"Nope"}`)); err == nil {
		t.Error("Expected error for invalid GeoJSON")
	}
	if _, err := DecodeGeometry(nil); err == nil {
		t.Error("Expected error for empty WKB")
	}
	if _, err := EncodeGeometry(nil); err == nil {
		t.Error("Expected error for nil geometry")
	}
}

// TestDestroy tests that every data source is destroyed, even after a panic.
func TestDestroy(t *testing.T) {
	var destroyed int
	panicking := testDataSource(nil)
	panicking.Destroy = func() { panic("boom") }

	cat, err := NewBuilder().
		Source(SourceDef{Name: "a", DataSource: panicking}).
		Source(SourceDef{Name: "b", DataSource: testDataSource(&destroyed)}).
		Source(SourceDef{Name: "c", DataSource: gridsource.DataSource{GetRows: testDataSource(nil).GetRows}}).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Destroy(context.Background(), cat, logger); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if destroyed != 1 {
		t.Errorf("Expected 1 destroy call, got %d", destroyed)
	}
}
