package gridsource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownToken is returned when an enum token is not recognized.
var ErrUnknownToken = errors.New("unknown token")

// RowModelType selects the grid row model. Only Infinite and ServerSide
// consume a DataSource; ClientSide ignores it and Viewport uses a different
// protocol.
type RowModelType int

const (
	RowModelInfinite RowModelType = iota + 1
	RowModelViewport
	RowModelClientSide
	RowModelServerSide
)

var rowModelTokens = map[RowModelType]string{
	RowModelInfinite:   "infinite",
	RowModelViewport:   "viewport",
	RowModelClientSide: "clientSide",
	RowModelServerSide: "serverSide",
}

// ParseRowModelType maps a host token to a RowModelType.
func ParseRowModelType(token string) (RowModelType, error) {
	for t, s := range rowModelTokens {
		if s == token {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: row model type %q", ErrUnknownToken, token)
}

// String returns the host token, or a placeholder for invalid values.
func (t RowModelType) String() string {
	if s, ok := rowModelTokens[t]; ok {
		return s
	}
	return fmt.Sprintf("RowModelType(%d)", int(t))
}

// UsesDataSource reports whether the row model pulls rows through a DataSource.
func (t RowModelType) UsesDataSource() bool {
	return t == RowModelInfinite || t == RowModelServerSide
}

// MarshalText implements encoding.TextMarshaler.
func (t RowModelType) MarshalText() ([]byte, error) {
	s, ok := rowModelTokens[t]
	if !ok {
		return nil, fmt.Errorf("%w: row model type %d", ErrUnknownToken, int(t))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *RowModelType) UnmarshalText(text []byte) error {
	v, err := ParseRowModelType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Filter selects a column filter. Its serialized form depends on the
// variant: the built-in filters are strings naming the filter component,
// while FilterTrue and FilterFalse are JSON booleans that enable the default
// filter or disable filtering.
type Filter int

const (
	// FilterNumber is a filter for number comparisons.
	FilterNumber Filter = iota + 1
	// FilterText is a filter for string comparisons.
	FilterText
	// FilterDate is a filter for date comparisons.
	FilterDate
	// FilterSet is the Excel-like set filter (AG Grid Enterprise).
	FilterSet
	// FilterTrue enables the default filter.
	FilterTrue
	// FilterFalse disables filtering.
	FilterFalse
)

var filterTokens = map[Filter]string{
	FilterNumber: "agNumberColumnFilter",
	FilterText:   "agTextColumnFilter",
	FilterDate:   "agDateColumnFilter",
	FilterSet:    "agSetColumnFilter",
}

// ParseFilter maps a token to a Filter. "true" and "false" map to
// FilterTrue and FilterFalse.
func ParseFilter(token string) (Filter, error) {
	switch token {
	case "true":
		return FilterTrue, nil
	case "false":
		return FilterFalse, nil
	}
	for f, s := range filterTokens {
		if s == token {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: filter %q", ErrUnknownToken, token)
}

// String returns the token of the filter ("true"/"false" for the boolean variants).
func (f Filter) String() string {
	switch f {
	case FilterTrue:
		return "true"
	case FilterFalse:
		return "false"
	}
	if s, ok := filterTokens[f]; ok {
		return s
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

// MarshalJSON implements json.Marshaler, dispatching per variant to a
// string or a boolean.
func (f Filter) MarshalJSON() ([]byte, error) {
	switch f {
	case FilterTrue:
		return []byte("true"), nil
	case FilterFalse:
		return []byte("false"), nil
	}
	s, ok := filterTokens[f]
	if !ok {
		return nil, fmt.Errorf("%w: filter %d", ErrUnknownToken, int(f))
	}
	return json.Marshal(s)
}

// UnmarshalJSON implements json.Unmarshaler. Accepts a filter name string
// or a boolean.
func (f *Filter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*f = FilterTrue
		return nil
	case "false":
		*f = FilterFalse
		return nil
	}

	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("filter must be a string or boolean: %w", err)
	}
	// A quoted "true" is a filter name, not a toggle.
	if token == "true" || token == "false" {
		return fmt.Errorf("%w: filter %q", ErrUnknownToken, token)
	}
	v, err := ParseFilter(token)
	if err != nil {
		return err
	}
	*f = v
	return nil
}
