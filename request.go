package gridsource

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
)

// SortDirection is the order of a single sorted column.
type SortDirection int

const (
	// Ascending sorts smallest first ("asc").
	Ascending SortDirection = iota
	// Descending sorts largest first ("desc").
	Descending
)

// Host tokens for sort directions.
const (
	SortTokenAsc  = "asc"
	SortTokenDesc = "desc"
)

// ParseSortDirection maps a host sort token to a SortDirection.
// Unknown tokens are an error, never silently defaulted.
func ParseSortDirection(token string) (SortDirection, error) {
	switch token {
	case SortTokenAsc:
		return Ascending, nil
	case SortTokenDesc:
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("%w: %q", ErrUnknownSortDirection, token)
	}
}

// String returns the host token for the direction.
func (d SortDirection) String() string {
	if d == Descending {
		return SortTokenDesc
	}
	return SortTokenAsc
}

// MarshalText implements encoding.TextMarshaler.
func (d SortDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *SortDirection) UnmarshalText(text []byte) error {
	v, err := ParseSortDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// SortDirective is one column of a request's sort order.
type SortDirective struct {
	// ColumnID is the grid column id. Unique within one request.
	ColumnID string

	// Direction is the sort direction for the column.
	Direction SortDirection
}

// RowRangeRequest is an immutable snapshot of one get-rows request:
// the requested row window [StartRow, EndRow), the sort order and the
// opaque filter model.
//
// EndRow > StartRow is a host invariant and is not re-validated here.
// An inverted or empty window still reaches the fetcher; Limit reports 0
// for it.
type RowRangeRequest struct {
	startRow    int
	endRow      int
	sortModel   []SortDirective
	filterModel json.RawMessage
}

// NewRowRangeRequest builds a request. The sort model and filter model are
// copied, so later changes to the arguments do not affect the request.
func NewRowRangeRequest(startRow, endRow int, sortModel []SortDirective, filterModel json.RawMessage) RowRangeRequest {
	return RowRangeRequest{
		startRow:    startRow,
		endRow:      endRow,
		sortModel:   slices.Clone(sortModel),
		filterModel: slices.Clone(filterModel),
	}
}

// StartRow is the index of the first requested row (inclusive).
func (r RowRangeRequest) StartRow() int { return r.startRow }

// EndRow is the index after the last requested row (exclusive).
func (r RowRangeRequest) EndRow() int { return r.endRow }

// SortModel returns the sort order, primary column first.
// The returned slice is a copy.
func (r RowRangeRequest) SortModel() []SortDirective {
	return slices.Clone(r.sortModel)
}

// FilterModel returns the host filter model as raw JSON, or nil when the
// host sent none. Its schema is host defined; see the filter package for a
// parser of the ag-grid shape.
func (r RowRangeRequest) FilterModel() json.RawMessage {
	return slices.Clone(r.filterModel)
}

// HasFilter reports whether a non-empty filter model was sent.
func (r RowRangeRequest) HasFilter() bool {
	switch string(r.filterModel) {
	case "", "null", "{}":
		return false
	}
	return true
}

// Limit is the number of rows in the window, 0 for empty or inverted windows.
func (r RowRangeRequest) Limit() int {
	if r.endRow <= r.startRow {
		return 0
	}
	return r.endRow - r.startRow
}

// Empty reports whether the window contains no rows.
func (r RowRangeRequest) Empty() bool {
	return r.Limit() == 0
}

// LogValue implements slog.LogValuer.
func (r RowRangeRequest) LogValue() slog.Value {
	sorts := make([]string, len(r.sortModel))
	for i, s := range r.sortModel {
		sorts[i] = s.ColumnID + ":" + s.Direction.String()
	}
	return slog.GroupValue(
		slog.Int("start_row", r.startRow),
		slog.Int("end_row", r.endRow),
		slog.Any("sort", sorts),
		slog.Bool("filtered", r.HasFilter()),
	)
}

// Page is the result of one fetch.
type Page[T any] struct {
	// Rows holds the fetched rows in display order.
	Rows []T

	// LastRow is the total row count when known. The grid uses it to size
	// the scrollbar exactly; nil leaves the row count open-ended.
	LastRow *int
}

// NewPage returns a page without a row count hint.
func NewPage[T any](rows []T) Page[T] {
	return Page[T]{Rows: rows}
}

// WithLastRow returns a copy of the page carrying the total row count.
func (p Page[T]) WithLastRow(lastRow int) Page[T] {
	p.LastRow = &lastRow
	return p
}
