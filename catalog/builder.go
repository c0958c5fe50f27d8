package catalog

import (
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"

	gridsource "github.com/hugr-lab/gridsource-go"
)

// SourceDef defines a source.
// Used with Builder.Source().
type SourceDef struct {
	// Name is the source name (e.g., "users", "orders").
	// REQUIRED: MUST be non-empty and unique within the catalog.
	Name string

	// Comment is optional source documentation.
	// OPTIONAL: Empty string if no comment.
	Comment string

	// DataSource serves the row requests.
	// REQUIRED: MUST be valid.
	DataSource gridsource.DataSource

	// Options are the grid options published with the source.
	// OPTIONAL: an infinite row model is used when nil or when no row model
	// type is set, and column definitions are derived from Schema when
	// empty.
	Options *gridsource.GridOptions

	// Schema describes the rows for Arrow based transports.
	// OPTIONAL: sources without a schema are not served over Flight.
	Schema *arrow.Schema
}

// Builder builds static catalogs using fluent API.
// Not thread-safe - use only during initialization.
type Builder struct {
	defs  []SourceDef
	built bool
}

// NewBuilder creates a new fluent catalog builder.
//
// Example:
//
//	cat, err := catalog.NewBuilder().
//	    Source(catalog.SourceDef{Name: "users", DataSource: users, Schema: userSchema}).
//	    Source(catalog.SourceDef{Name: "orders", DataSource: orders}).
//	    Build()
func NewBuilder() *Builder {
	return &Builder{}
}

// Source adds a source. Returns self for method chaining.
func (b *Builder) Source(def SourceDef) *Builder {
	b.defs = append(b.defs, def)
	return b
}

// Build finalizes the catalog and returns immutable Catalog implementation.
// Can only be called once. Returns error if catalog is invalid
// (e.g., duplicate source names).
func (b *Builder) Build() (Catalog, error) {
	if b.built {
		return nil, fmt.Errorf("%w: catalog already built", ErrInvalidCatalog)
	}

	cat := &staticCatalog{
		sources: make(map[string]*StaticSource, len(b.defs)),
	}
	for _, def := range b.defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: source name cannot be empty", ErrInvalidCatalog)
		}
		if _, dup := cat.sources[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate source name: %s", ErrInvalidCatalog, def.Name)
		}
		if !def.DataSource.Valid() {
			return nil, fmt.Errorf("%w: source %s has no data source", ErrInvalidCatalog, def.Name)
		}

		options := resolveOptions(def)
		check := *options
		check.WithDatasource(def.DataSource)
		if err := check.Validate(); err != nil {
			return nil, fmt.Errorf("%w: source %s: %w", ErrInvalidCatalog, def.Name, err)
		}

		cat.sources[def.Name] = NewStaticSource(def.Name, def.Comment, def.DataSource, options, def.Schema)
		cat.order = append(cat.order, def.Name)
	}
	slices.Sort(cat.order)

	b.built = true
	return cat, nil
}

func resolveOptions(def SourceDef) *gridsource.GridOptions {
	options := gridsource.NewGridOptions()
	if def.Options != nil {
		o := *def.Options
		options = &o
	}
	if options.RowModelType == nil {
		options.WithRowModelType(gridsource.RowModelInfinite)
	}
	if len(options.ColumnDefs) == 0 && def.Schema != nil {
		options.WithColumnDefs(ColumnDefs(def.Schema)...)
	}
	return options
}
