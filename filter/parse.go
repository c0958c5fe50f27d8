package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Errors returned by Parse.
var (
	// ErrInvalidModel indicates the filter model is malformed.
	ErrInvalidModel = errors.New("filter: invalid model")

	// ErrUnsupported indicates a filter type or condition this package
	// cannot evaluate.
	ErrUnsupported = errors.New("filter: unsupported")
)

// Date layouts accepted for date operands and date cell values.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// rawFilter is the wire form of a column filter, including the legacy
// two-condition shape (condition1/condition2).
type rawFilter struct {
	FilterType string      `json:"filterType"`
	Type       string      `json:"type"`
	Filter     any         `json:"filter"`
	FilterTo   any         `json:"filterTo"`
	DateFrom   *string     `json:"dateFrom"`
	DateTo     *string     `json:"dateTo"`
	Values     []any       `json:"values"`
	Operator   string      `json:"operator"`
	Conditions []rawFilter `json:"conditions"`
	Condition1 *rawFilter  `json:"condition1"`
	Condition2 *rawFilter  `json:"condition2"`
}

// Parse parses an ag-grid filter model.
// Returns an empty model for empty input, "null" and "{}".
//
// Error conditions:
//   - Invalid JSON syntax or a non-object model
//   - Unknown filterType or condition (ErrUnsupported)
//   - Missing or mistyped operands (ErrInvalidModel)
func Parse(data json.RawMessage) (Model, error) {
	if len(data) == 0 || string(data) == "null" {
		return Model{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	m := make(Model, len(raw))
	for colID, v := range raw {
		var rf rawFilter
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "json",
			Result:  &rf,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", ErrInvalidModel, colID, err)
		}

		cf, err := normalize(rf, "")
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", colID, err)
		}
		m[colID] = cf
	}
	return m, nil
}

// normalize converts a wire filter to a validated ColumnFilter. Conditions
// of a combined filter inherit the parent's filterType when they omit it.
func normalize(rf rawFilter, parentType FilterType) (ColumnFilter, error) {
	ft := FilterType(rf.FilterType)
	if ft == "" {
		ft = parentType
	}
	switch ft {
	case TypeText, TypeNumber, TypeDate, TypeSet:
	case "":
		return ColumnFilter{}, fmt.Errorf("%w: missing filterType", ErrInvalidModel)
	default:
		return ColumnFilter{}, fmt.Errorf("%w: filterType %q", ErrUnsupported, ft)
	}

	if ft == TypeSet {
		return ColumnFilter{FilterType: TypeSet, Values: rf.Values}, nil
	}

	conditions := rf.Conditions
	if len(conditions) == 0 && rf.Condition1 != nil {
		conditions = append(conditions, *rf.Condition1)
		if rf.Condition2 != nil {
			conditions = append(conditions, *rf.Condition2)
		}
	}

	if len(conditions) > 0 {
		op := Operator(strings.ToUpper(rf.Operator))
		if op != OperatorAnd && op != OperatorOr {
			return ColumnFilter{}, fmt.Errorf("%w: operator %q", ErrInvalidModel, rf.Operator)
		}
		out := ColumnFilter{FilterType: ft, Operator: op, Conditions: make([]ColumnFilter, 0, len(conditions))}
		for i, c := range conditions {
			if len(c.Conditions) > 0 || c.Condition1 != nil {
				return ColumnFilter{}, fmt.Errorf("%w: nested combined filter in condition %d", ErrInvalidModel, i)
			}
			cf, err := normalize(c, ft)
			if err != nil {
				return ColumnFilter{}, fmt.Errorf("condition %d: %w", i, err)
			}
			if cf.FilterType != ft {
				return ColumnFilter{}, fmt.Errorf("%w: condition %d has filterType %q, want %q",
					ErrInvalidModel, i, cf.FilterType, ft)
			}
			out.Conditions = append(out.Conditions, cf)
		}
		return out, nil
	}

	cond := Condition(rf.Type)
	if cond == "" {
		cond = Equals
	}
	if !slices.Contains(conditionsByType[ft], cond) {
		return ColumnFilter{}, fmt.Errorf("%w: %s condition %q", ErrUnsupported, ft, cond)
	}

	cf := ColumnFilter{FilterType: ft, Type: cond}
	if cond == Blank || cond == NotBlank || cond == Empty {
		return cf, nil
	}

	switch ft {
	case TypeText:
		s, ok := rf.Filter.(string)
		if !ok {
			return ColumnFilter{}, fmt.Errorf("%w: text filter must be a string, got %T", ErrInvalidModel, rf.Filter)
		}
		cf.Filter = s

	case TypeNumber:
		from, err := toNumber(rf.Filter)
		if err != nil {
			return ColumnFilter{}, fmt.Errorf("%w: filter: %v", ErrInvalidModel, err)
		}
		cf.Filter = from
		if cond == InRange {
			to, err := toNumber(rf.FilterTo)
			if err != nil {
				return ColumnFilter{}, fmt.Errorf("%w: filterTo: %v", ErrInvalidModel, err)
			}
			cf.FilterTo = to
		}

	case TypeDate:
		if rf.DateFrom == nil {
			return ColumnFilter{}, fmt.Errorf("%w: dateFrom is required", ErrInvalidModel)
		}
		if _, err := parseDate(*rf.DateFrom); err != nil {
			return ColumnFilter{}, fmt.Errorf("%w: dateFrom: %v", ErrInvalidModel, err)
		}
		cf.DateFrom = *rf.DateFrom
		if cond == InRange {
			if rf.DateTo == nil {
				return ColumnFilter{}, fmt.Errorf("%w: dateTo is required for inRange", ErrInvalidModel)
			}
			if _, err := parseDate(*rf.DateTo); err != nil {
				return ColumnFilter{}, fmt.Errorf("%w: dateTo: %v", ErrInvalidModel, err)
			}
			cf.DateTo = *rf.DateTo
		}
	}
	return cf, nil
}

// toNumber converts a JSON operand to float64. Numeric strings are accepted.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case nil:
		return 0, errors.New("missing number")
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

// parseDate parses a date operand in any of the accepted layouts.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
