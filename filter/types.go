package filter

import (
	"maps"
	"slices"
)

// FilterType identifies the kind of column filter that produced a model entry.
type FilterType string

const (
	TypeText   FilterType = "text"
	TypeNumber FilterType = "number"
	TypeDate   FilterType = "date"
	TypeSet    FilterType = "set"
)

// Condition identifies the comparison of a simple filter.
type Condition string

const (
	// Comparison conditions
	Equals             Condition = "equals"
	NotEqual           Condition = "notEqual"
	LessThan           Condition = "lessThan"
	LessThanOrEqual    Condition = "lessThanOrEqual"
	GreaterThan        Condition = "greaterThan"
	GreaterThanOrEqual Condition = "greaterThanOrEqual"
	InRange            Condition = "inRange"

	// Text conditions
	Contains    Condition = "contains"
	NotContains Condition = "notContains"
	StartsWith  Condition = "startsWith"
	EndsWith    Condition = "endsWith"

	// Null conditions
	Blank    Condition = "blank"
	NotBlank Condition = "notBlank"

	// Empty is sent by older grids for a condition with no option chosen.
	// It matches every row.
	Empty Condition = "empty"
)

// Operator joins the conditions of a combined filter.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

var conditionsByType = map[FilterType][]Condition{
	TypeText: {
		Equals, NotEqual, Contains, NotContains, StartsWith, EndsWith,
		Blank, NotBlank, Empty,
	},
	TypeNumber: {
		Equals, NotEqual, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual,
		InRange, Blank, NotBlank, Empty,
	},
	TypeDate: {
		Equals, NotEqual, LessThan, GreaterThan, InRange, Blank, NotBlank, Empty,
	},
}

// ColumnFilter is the filter state of one column.
//
// A simple filter has Type set. A combined filter has Operator and two or
// more Conditions, each a simple filter of the same FilterType. Set filters
// carry Values only.
type ColumnFilter struct {
	FilterType FilterType `json:"filterType"`
	Type       Condition  `json:"type,omitempty"`

	// Filter is the operand: a string for text filters, a float64 for
	// number filters.
	Filter any `json:"filter,omitempty"`

	// FilterTo is the upper bound of a number inRange filter.
	FilterTo any `json:"filterTo,omitempty"`

	// DateFrom and DateTo are the operands of date filters, formatted
	// "2006-01-02 15:04:05" by the grid.
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`

	// Values are the selected values of a set filter. A nil entry selects
	// blank cells.
	Values []any `json:"values,omitempty"`

	Operator   Operator       `json:"operator,omitempty"`
	Conditions []ColumnFilter `json:"conditions,omitempty"`
}

// Combined reports whether the filter joins several conditions.
func (f ColumnFilter) Combined() bool {
	return f.Operator != ""
}

// Model is a parsed filter model: column id to the column's filter.
// All entries must match for a row to pass.
type Model map[string]ColumnFilter

// Columns returns the filtered column ids in sorted order.
func (m Model) Columns() []string {
	return slices.Sorted(maps.Keys(m))
}

// Empty reports whether the model filters nothing.
func (m Model) Empty() bool {
	return len(m) == 0
}
