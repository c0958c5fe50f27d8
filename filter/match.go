package filter

import (
	"fmt"
	"strings"
	"time"
)

// Match reports whether a row passes every column filter of the model.
// value returns the cell of a column id, nil for blank or missing cells.
//
// Semantics follow the SQL encoder: text comparisons ignore case, inRange
// excludes both bounds, and notEqual / notContains match blank cells.
func (m Model) Match(value func(colID string) any) bool {
	for colID, f := range m {
		if !matchColumn(f, value(colID)) {
			return false
		}
	}
	return true
}

func matchColumn(f ColumnFilter, v any) bool {
	if f.FilterType == TypeSet {
		for _, want := range f.Values {
			if sameValue(v, want) {
				return true
			}
		}
		return false
	}
	if !f.Combined() {
		return matchCondition(f, v)
	}

	for _, c := range f.Conditions {
		ok := matchCondition(c, v)
		if f.Operator == OperatorOr && ok {
			return true
		}
		if f.Operator == OperatorAnd && !ok {
			return false
		}
	}
	return f.Operator == OperatorAnd
}

func matchCondition(f ColumnFilter, v any) bool {
	if f.Type == Empty {
		return true
	}

	blank := v == nil
	if s, ok := v.(string); ok && f.FilterType == TypeText {
		blank = s == ""
	}
	switch f.Type {
	case Blank:
		return blank
	case NotBlank:
		return !blank
	}
	if v == nil {
		return f.Type == NotEqual || f.Type == NotContains
	}

	switch f.FilterType {
	case TypeText:
		return matchText(f, v)
	case TypeNumber:
		n, err := toNumber(numeric(v))
		if err != nil {
			return false
		}
		from, _ := f.Filter.(float64)
		to, _ := f.FilterTo.(float64)
		return compareOrdered(f.Type, n, from, to)
	case TypeDate:
		t, ok := toTime(v)
		if !ok {
			return false
		}
		from, err := parseDate(f.DateFrom)
		if err != nil {
			return false
		}
		var to time.Time
		if f.Type == InRange {
			if to, err = parseDate(f.DateTo); err != nil {
				return false
			}
		}
		return compareOrdered(f.Type, t.UnixNano(), from.UnixNano(), to.UnixNano())
	}
	return false
}

func matchText(f ColumnFilter, v any) bool {
	s := strings.ToLower(toText(v))
	op, _ := f.Filter.(string)
	op = strings.ToLower(op)

	switch f.Type {
	case Equals:
		return s == op
	case NotEqual:
		return s != op
	case Contains:
		return strings.Contains(s, op)
	case NotContains:
		return !strings.Contains(s, op)
	case StartsWith:
		return strings.HasPrefix(s, op)
	case EndsWith:
		return strings.HasSuffix(s, op)
	}
	return false
}

func compareOrdered[T int64 | float64](cond Condition, v, from, to T) bool {
	switch cond {
	case Equals:
		return v == from
	case NotEqual:
		return v != from
	case LessThan:
		return v < from
	case LessThanOrEqual:
		return v <= from
	case GreaterThan:
		return v > from
	case GreaterThanOrEqual:
		return v >= from
	case InRange:
		return v > from && v < to
	}
	return false
}

// sameValue compares a cell with a set filter value. Numbers compare
// numerically, everything else by its text form.
func sameValue(cell, want any) bool {
	if cell == nil || want == nil {
		return cell == nil && want == nil
	}
	_, cellText := cell.(string)
	_, wantText := want.(string)
	if !cellText && !wantText {
		a, errA := toNumber(numeric(cell))
		b, errB := toNumber(numeric(want))
		if errA == nil && errB == nil {
			return a == b
		}
	}
	return toText(cell) == toText(want)
}

// numeric returns v as float64 if it is a Go number, else v unchanged.
func numeric(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

func toText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := parseDate(t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
