package gridsource

import (
	"encoding/json"
	"fmt"
)

// ColumnDef describes one grid column. Nil fields are omitted so the grid
// applies its own defaults.
type ColumnDef struct {
	// Field is the row field displayed by the column.
	Field string `json:"field,omitempty"`

	// ColID overrides the column id sent back in sort and filter models.
	// Defaults to Field on the grid side.
	ColID string `json:"colId,omitempty"`

	HeaderName string  `json:"headerName,omitempty"`
	Sortable   *bool   `json:"sortable,omitempty"`
	Filter     *Filter `json:"filter,omitempty"`
	Resizable  *bool   `json:"resizable,omitempty"`
	Width      *int    `json:"width,omitempty"`
	Hide       *bool   `json:"hide,omitempty"`
}

// NewColumnDef creates a column definition for a field.
func NewColumnDef(field string) ColumnDef {
	return ColumnDef{Field: field}
}

// ID returns the column id the grid uses for this column.
func (c ColumnDef) ID() string {
	if c.ColID != "" {
		return c.ColID
	}
	return c.Field
}

// WithHeaderName sets the header text.
func (c ColumnDef) WithHeaderName(name string) ColumnDef {
	c.HeaderName = name
	return c
}

// WithSortable sets whether the column can be sorted.
func (c ColumnDef) WithSortable(sortable bool) ColumnDef {
	c.Sortable = &sortable
	return c
}

// WithFilter sets the column filter.
func (c ColumnDef) WithFilter(filter Filter) ColumnDef {
	c.Filter = &filter
	return c
}

// WithResizable sets whether the column can be resized.
func (c ColumnDef) WithResizable(resizable bool) ColumnDef {
	c.Resizable = &resizable
	return c
}

// WithWidth sets the initial width in pixels.
func (c ColumnDef) WithWidth(width int) ColumnDef {
	c.Width = &width
	return c
}

// WithHide sets whether the column starts hidden.
func (c ColumnDef) WithHide(hide bool) ColumnDef {
	c.Hide = &hide
	return c
}

// GridOptions are the initial options of a grid, serialized with the
// grid's camelCase field names. Only set fields are serialized.
//
// The Datasource is never serialized: it is a live callback handle that
// transports expose through their own endpoints.
type GridOptions struct {
	// Column Definitions
	ColumnDefs    []ColumnDef `json:"columnDefs,omitempty"`
	DefaultColDef *ColumnDef  `json:"defaultColDef,omitempty"`

	// Pagination
	Pagination         *bool `json:"pagination,omitempty"`
	PaginationPageSize *int  `json:"paginationPageSize,omitempty"`

	// RowModel
	RowModelType *RowModelType `json:"rowModelType,omitempty"`

	// RowModel: Client Side
	RowData []json.RawMessage `json:"rowData,omitempty"`

	// RowModel: Infinite
	CacheBlockSize   *int `json:"cacheBlockSize,omitempty"`
	MaxBlocksInCache *int `json:"maxBlocksInCache,omitempty"`

	Datasource *DataSource `json:"-"`
}

// NewGridOptions returns empty options.
func NewGridOptions() *GridOptions {
	return &GridOptions{}
}

// WithColumnDefs sets the column definitions. Fields set here take
// precedence over those in the default column definition.
func (o *GridOptions) WithColumnDefs(defs ...ColumnDef) *GridOptions {
	o.ColumnDefs = defs
	return o
}

// WithDefaultColDef sets the default column definition.
func (o *GridOptions) WithDefaultColDef(def ColumnDef) *GridOptions {
	o.DefaultColDef = &def
	return o
}

// WithPagination sets whether pagination is enabled.
func (o *GridOptions) WithPagination(pagination bool) *GridOptions {
	o.Pagination = &pagination
	return o
}

// WithPaginationPageSize sets how many rows are shown per page.
func (o *GridOptions) WithPaginationPageSize(size int) *GridOptions {
	o.PaginationPageSize = &size
	return o
}

// WithRowModelType sets the row model type.
func (o *GridOptions) WithRowModelType(t RowModelType) *GridOptions {
	o.RowModelType = &t
	return o
}

// WithRowData sets client side row data. Each row is encoded to JSON.
func (o *GridOptions) WithRowData(rows ...any) (*GridOptions, error) {
	data := make([]json.RawMessage, 0, len(rows))
	for i, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return o, fmt.Errorf("row %d: %w", i, err)
		}
		data = append(data, b)
	}
	o.RowData = data
	return o, nil
}

// WithCacheBlockSize sets how many rows each block in the store holds,
// i.e. how many rows one GetRows call asks for.
func (o *GridOptions) WithCacheBlockSize(size int) *GridOptions {
	o.CacheBlockSize = &size
	return o
}

// WithMaxBlocksInCache limits how many blocks the grid keeps.
func (o *GridOptions) WithMaxBlocksInCache(n int) *GridOptions {
	o.MaxBlocksInCache = &n
	return o
}

// WithDatasource registers the data source handle.
func (o *GridOptions) WithDatasource(ds DataSource) *GridOptions {
	o.Datasource = &ds
	return o
}

// Validate checks the options for combinations the grid rejects.
func (o *GridOptions) Validate() error {
	rowModel := RowModelClientSide
	if o.RowModelType != nil {
		rowModel = *o.RowModelType
		if _, ok := rowModelTokens[rowModel]; !ok {
			return fmt.Errorf("%w: row model type %d", ErrUnknownToken, int(rowModel))
		}
	}

	if rowModel.UsesDataSource() && (o.Datasource == nil || !o.Datasource.Valid()) {
		return fmt.Errorf("%w: %s row model requires a datasource", ErrInvalidConfig, rowModel)
	}
	if rowModel != RowModelClientSide && len(o.RowData) > 0 {
		return fmt.Errorf("%w: rowData is only used by the clientSide row model", ErrInvalidConfig)
	}
	if o.CacheBlockSize != nil && *o.CacheBlockSize <= 0 {
		return fmt.Errorf("%w: cacheBlockSize must be positive", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(o.ColumnDefs))
	for i, c := range o.ColumnDefs {
		id := c.ID()
		if id == "" {
			return fmt.Errorf("%w: column %d has neither field nor colId", ErrInvalidConfig, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate column id %q", ErrInvalidConfig, id)
		}
		seen[id] = true
	}
	return nil
}
