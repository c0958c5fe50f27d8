package catalog

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	gridsource "github.com/hugr-lab/gridsource-go"
)

// staticCatalog is an immutable catalog implementation built from Builder.
type staticCatalog struct {
	sources map[string]*StaticSource
	order   []string
}

// Sources implements Catalog interface.
func (c *staticCatalog) Sources(ctx context.Context) ([]Source, error) {
	result := make([]Source, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.sources[name])
	}
	return result, nil
}

// Source implements Catalog interface.
func (c *staticCatalog) Source(ctx context.Context, name string) (Source, error) {
	s, ok := c.sources[name]
	if !ok {
		return nil, nil // Not found, not an error
	}
	return s, nil
}

// StaticSource is an immutable source implementation.
type StaticSource struct {
	name       string
	comment    string
	datasource gridsource.DataSource
	options    gridsource.GridOptions
	schema     *arrow.Schema
}

// NewStaticSource creates a static source. options may be nil.
func NewStaticSource(name, comment string, ds gridsource.DataSource, options *gridsource.GridOptions, schema *arrow.Schema) *StaticSource {
	s := &StaticSource{
		name:       name,
		comment:    comment,
		datasource: ds,
		schema:     schema,
	}
	if options != nil {
		s.options = *options
		s.options.Datasource = nil
	}
	return s
}

// Name implements Source interface.
func (s *StaticSource) Name() string {
	return s.name
}

// Comment implements Source interface.
func (s *StaticSource) Comment() string {
	return s.comment
}

// DataSource implements Source interface.
func (s *StaticSource) DataSource() gridsource.DataSource {
	return s.datasource
}

// GridOptions implements Source interface.
func (s *StaticSource) GridOptions() *gridsource.GridOptions {
	o := s.options
	return &o
}

// ArrowSchema implements Source interface.
// If columns is nil or empty, returns full schema.
// If columns is provided, returns projected schema with only those columns.
func (s *StaticSource) ArrowSchema(columns []string) *arrow.Schema {
	if s.schema == nil {
		return nil
	}
	return ProjectSchema(s.schema, columns)
}
