// Package sqlsource serves grid rows from a database/sql table or view.
//
// Each request becomes one parameterized query:
//
//	SELECT <columns> FROM <table> [WHERE <filter>] [ORDER BY <sort>] LIMIT n OFFSET m
//
// The filter model is encoded by the filter package; sort and filter column
// ids are validated against the configured columns, so nothing from the
// request is ever spliced into SQL unchecked. DuckDB and PostgreSQL (through
// pgx) drivers are registered by this package.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkb"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/filter"
	"github.com/hugr-lab/gridsource-go/payload"
)

// Errors returned by Source.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("sqlsource: invalid config")

	// ErrUnknownColumn indicates a sort or filter column that the source
	// does not expose.
	ErrUnknownColumn = errors.New("sqlsource: unknown column")

	// ErrInvalidFilter indicates the filter model could not be parsed or encoded.
	ErrInvalidFilter = errors.New("sqlsource: invalid filter model")
)

// Row is one fetched row keyed by grid column id.
type Row = map[string]any

// Config contains configuration for a SQL source.
type Config struct {
	// DB is the database handle.
	// REQUIRED.
	DB *sql.DB

	// Table is the table or view to read, optionally schema-qualified
	// ("main.orders"). Each dot-separated part is quoted as needed.
	// REQUIRED.
	Table string

	// Columns lists the database columns to expose.
	// OPTIONAL: discovered from the table when empty.
	Columns []string

	// ColumnIDs maps database column names to grid column ids.
	// OPTIONAL: unmapped columns use their name.
	ColumnIDs map[string]string

	// Expressions adds computed columns, keyed by grid column id. They are
	// selected, sorted and filtered like table columns.
	// OPTIONAL.
	Expressions map[string]string

	// Keys is the key style of the payload encoder serving this source.
	// Column ids, mapped or not, are written in that style so that sort and
	// filter ids from the grid match the keys it displays.
	// OPTIONAL: defaults to payload.KeysLowerCamel.
	Keys payload.KeyStyle

	// GeometryColumns are decoded from WKB into orb geometries, which the
	// payload encoder renders as GeoJSON.
	// OPTIONAL.
	GeometryColumns []string

	// CountRows runs a COUNT(*) with every request to report the exact
	// row count. Without it the count is only known once a short page
	// is returned.
	// OPTIONAL: false by default.
	CountRows bool

	// CloseOnDestroy closes DB when the data source is destroyed.
	// OPTIONAL: false by default.
	CloseOnDestroy bool

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// column is an exposed database column or expression.
type column struct {
	id       string
	name     string
	sql      string
	geometry bool
	computed bool
}

// Source is a gridsource.Fetcher over a SQL table.
// Safe for concurrent use as far as the underlying *sql.DB is.
type Source struct {
	db        *sql.DB
	table     string
	columns   []column
	byID      map[string]column
	encoder   *filter.SQLEncoder
	countRows bool
	closeDB   bool
	logger    *slog.Logger
}

var (
	_ gridsource.Fetcher[Row] = (*Source)(nil)
	_ gridsource.Destroyer    = (*Source)(nil)
)

// New creates a source. When cfg.Columns is empty the columns are read
// from the table, which requires a database round trip bounded by ctx.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	table := quoteTable(cfg.Table)
	names := cfg.Columns
	if len(names) == 0 {
		var err error
		names, err = discoverColumns(ctx, cfg.DB, table)
		if err != nil {
			return nil, err
		}
	}

	s := &Source{
		db:        cfg.DB,
		table:     table,
		byID:      make(map[string]column, len(names)),
		countRows: cfg.CountRows,
		closeDB:   cfg.CloseOnDestroy,
		logger:    logger,
	}

	fieldName := payload.NewEncoder(&payload.Options{Keys: cfg.Keys}).FieldName
	add := func(c column) error {
		if _, dup := s.byID[c.id]; dup {
			return fmt.Errorf("%w: columns map to the same id %q", ErrInvalidConfig, c.id)
		}
		s.columns = append(s.columns, c)
		s.byID[c.id] = c
		return nil
	}

	mapping := make(map[string]string, len(names))
	for _, name := range names {
		id, ok := cfg.ColumnIDs[name]
		if !ok {
			id = name
		}
		id = fieldName(id)
		err := add(column{
			id:       id,
			name:     name,
			sql:      filter.QuoteIdentifier(name),
			geometry: slices.Contains(cfg.GeometryColumns, name),
		})
		if err != nil {
			return nil, err
		}
		mapping[id] = name
	}

	exprs := make(map[string]string, len(cfg.Expressions))
	for _, key := range slices.Sorted(maps.Keys(cfg.Expressions)) {
		expr := strings.TrimSpace(cfg.Expressions[key])
		if expr == "" {
			return nil, fmt.Errorf("%w: expression %q is empty", ErrInvalidConfig, key)
		}
		id := fieldName(key)
		if err := add(column{id: id, name: key, sql: "(" + expr + ")", computed: true}); err != nil {
			return nil, err
		}
		exprs[id] = expr
	}
	for _, g := range cfg.GeometryColumns {
		if !slices.Contains(names, g) {
			return nil, fmt.Errorf("%w: geometry column %q is not exposed", ErrInvalidConfig, g)
		}
	}

	s.encoder = filter.NewSQLEncoder(&filter.EncoderOptions{ColumnMapping: mapping, ColumnExpressions: exprs})
	return s, nil
}

// validateConfig checks that Config fields are valid.
func validateConfig(cfg Config) error {
	if cfg.DB == nil {
		return errors.New("DB is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return errors.New("table is required")
	}
	return nil
}

func discoverColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("sqlsource: discover columns of %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlsource: discover columns of %s: %w", table, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrInvalidConfig, table)
	}
	return names, nil
}

// ColumnIDs returns the grid column ids in table order.
func (s *Source) ColumnIDs() []string {
	ids := make([]string, len(s.columns))
	for i, c := range s.columns {
		ids[i] = c.id
	}
	return ids
}

// Fetch implements gridsource.Fetcher.
func (s *Source) Fetch(ctx context.Context, req gridsource.RowRangeRequest) (gridsource.Page[Row], error) {
	where, args, err := s.where(req)
	if err != nil {
		return gridsource.Page[Row]{}, err
	}
	orderBy, err := s.orderBy(req.SortModel())
	if err != nil {
		return gridsource.Page[Row]{}, err
	}

	limit := req.Limit()
	query := s.selectQuery(where, orderBy, limit, req.StartRow())

	s.logger.Debug("sqlsource query", "query", query, "args", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return gridsource.Page[Row]{}, fmt.Errorf("sqlsource: query %s: %w", s.table, err)
	}
	out, err := s.scan(rows)
	if err != nil {
		return gridsource.Page[Row]{}, err
	}

	page := gridsource.NewPage(out)
	switch {
	case s.countRows:
		total, err := s.count(ctx, where, args)
		if err != nil {
			return gridsource.Page[Row]{}, err
		}
		page = page.WithLastRow(total)
	case len(out) < limit:
		page = page.WithLastRow(req.StartRow() + len(out))
	}
	return page, nil
}

func (s *Source) where(req gridsource.RowRangeRequest) (string, []any, error) {
	if !req.HasFilter() {
		return "", nil, nil
	}

	model, err := filter.Parse(req.FilterModel())
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	for _, id := range model.Columns() {
		if _, ok := s.byID[id]; !ok {
			return "", nil, fmt.Errorf("%w: filter on %q", ErrUnknownColumn, id)
		}
	}

	where, args, err := s.encoder.Encode(model)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return where, args, nil
}

// orderBy builds the ORDER BY list. Blanks sort first ascending and last
// descending.
func (s *Source) orderBy(sort []gridsource.SortDirective) (string, error) {
	if len(sort) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(sort))
	for _, d := range sort {
		c, ok := s.byID[d.ColumnID]
		if !ok {
			return "", fmt.Errorf("%w: sort on %q", ErrUnknownColumn, d.ColumnID)
		}
		if d.Direction == gridsource.Descending {
			parts = append(parts, c.sql+" DESC NULLS LAST")
		} else {
			parts = append(parts, c.sql+" ASC NULLS FIRST")
		}
	}
	return strings.Join(parts, ", "), nil
}

func (s *Source) selectQuery(where, orderBy string, limit, offset int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.sql)
		if c.computed {
			b.WriteString(" AS ")
			b.WriteString(filter.QuoteIdentifier(c.id))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(s.table)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(limit))
	b.WriteString(" OFFSET ")
	b.WriteString(strconv.Itoa(offset))
	return b.String()
}

func (s *Source) count(ctx context.Context, where string, args []any) (int, error) {
	query := "SELECT COUNT(*) FROM " + s.table
	if where != "" {
		query += " WHERE " + where
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlsource: count %s: %w", s.table, err)
	}
	return int(n), nil
}

func (s *Source) scan(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	var out []Row
	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlsource: scan: %w", err)
		}
		row := make(Row, len(s.columns))
		for i, c := range s.columns {
			v, err := convertValue(c, values[i])
			if err != nil {
				return nil, err
			}
			row[c.id] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlsource: rows: %w", err)
	}
	return out, nil
}

func convertValue(c column, v any) (any, error) {
	if !c.geometry || v == nil {
		return v, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("sqlsource: geometry column %q returned %T, want WKB bytes", c.name, v)
	}
	if len(b) == 0 {
		return nil, nil
	}
	geom, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: geometry column %q: %w", c.name, err)
	}
	return geom, nil
}

// Destroy closes the database handle if CloseOnDestroy was set.
func (s *Source) Destroy() {
	if !s.closeDB {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("sqlsource: close database", "error", err)
	}
}

// quoteTable quotes each part of a possibly schema-qualified name.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = filter.QuoteIdentifier(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}
