package filter

import (
	"testing"
	"time"
)

func TestMatch(t *testing.T) {
	row := map[string]any{
		"name":    "Annabel",
		"age":     34,
		"score":   float32(7.5),
		"born":    time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		"joined":  "2021-03-01",
		"country": "NL",
		"email":   nil,
		"note":    "",
	}

	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{"text equals ignores case", `{"name": {"filterType": "text", "type": "equals", "filter": "annabel"}}`, true},
		{"text contains", `{"name": {"filterType": "text", "type": "contains", "filter": "NAB"}}`, true},
		{"text startsWith miss", `{"name": {"filterType": "text", "type": "startsWith", "filter": "bel"}}`, false},
		{"text endsWith", `{"name": {"filterType": "text", "type": "endsWith", "filter": "bel"}}`, true},
		{"text notContains on nil", `{"email": {"filterType": "text", "type": "notContains", "filter": "@"}}`, true},
		{"text contains on nil", `{"email": {"filterType": "text", "type": "contains", "filter": "@"}}`, false},
		{"text blank empty string", `{"note": {"filterType": "text", "type": "blank"}}`, true},
		{"text notBlank", `{"name": {"filterType": "text", "type": "notBlank"}}`, true},
		{"number greaterThan int cell", `{"age": {"filterType": "number", "type": "greaterThan", "filter": 30}}`, true},
		{"number inRange excludes bound", `{"age": {"filterType": "number", "type": "inRange", "filter": 34, "filterTo": 40}}`, false},
		{"number float32 cell", `{"score": {"filterType": "number", "type": "equals", "filter": 7.5}}`, true},
		{"number on text cell", `{"name": {"filterType": "number", "type": "equals", "filter": 1}}`, false},
		{"date lessThan", `{"born": {"filterType": "date", "type": "lessThan", "dateFrom": "2000-01-01 00:00:00"}}`, true},
		{"date string cell", `{"joined": {"filterType": "date", "type": "equals", "dateFrom": "2021-03-01 00:00:00"}}`, true},
		{"date inRange", `{"born": {"filterType": "date", "type": "inRange", "dateFrom": "1991-01-01 00:00:00", "dateTo": "1999-01-01 00:00:00"}}`, false},
		{"set hit", `{"country": {"filterType": "set", "values": ["DE", "NL"]}}`, true},
		{"set miss", `{"country": {"filterType": "set", "values": ["DE"]}}`, false},
		{"set numeric cell", `{"age": {"filterType": "set", "values": ["34"]}}`, true},
		{"set null", `{"email": {"filterType": "set", "values": [null]}}`, true},
		{
			"combined OR",
			`{"age": {"filterType": "number", "operator": "OR", "conditions": [
				{"type": "lessThan", "filter": 10}, {"type": "greaterThan", "filter": 30}]}}`,
			true,
		},
		{
			"combined AND",
			`{"age": {"filterType": "number", "operator": "AND", "conditions": [
				{"type": "greaterThan", "filter": 10}, {"type": "lessThan", "filter": 30}]}}`,
			false,
		},
		{
			"all columns must match",
			`{"name": {"filterType": "text", "type": "contains", "filter": "ann"},
			  "country": {"filterType": "set", "values": ["DE"]}}`,
			false,
		},
		{"empty condition", `{"age": {"filterType": "number", "type": "empty"}}`, true},
		{"missing column is blank", `{"missing": {"filterType": "number", "type": "blank"}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustParse(t, tt.model)
			if got := m.Match(cell(row)); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchEmptyModel(t *testing.T) {
	var m Model
	if !m.Match(cell(map[string]any{"a": 1})) {
		t.Error("empty model must match every row")
	}
}

func cell(row map[string]any) func(string) any {
	return func(colID string) any { return row[colID] }
}
