package memsource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/payload"
)

func testRecords() []Record {
	return []Record{
		{"id": 1, "first_name": "Ann", "age": 34, "city": "Amsterdam"},
		{"id": 2, "first_name": "bob", "age": 27, "city": "Berlin"},
		{"id": 3, "first_name": "Cid", "age": nil, "city": "Amsterdam"},
		{"id": 4, "first_name": "Dee", "age": 27, "city": "Berlin"},
		{"id": 5, "first_name": "file10", "age": 51, "city": "Cairo"},
		{"id": 6, "first_name": "file9", "age": 45, "city": "Cairo"},
	}
}

func testOptions() *Options {
	return &Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func ids(rows []Record) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r["id"].(int)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFetch(t *testing.T) {
	src := New(testRecords(), testOptions())

	tests := []struct {
		name     string
		start    int
		end      int
		sort     []gridsource.SortDirective
		filter   string
		wantIDs  []int
		wantLast *int
	}{
		{
			name:    "first window, insertion order",
			start:   0,
			end:     3,
			wantIDs: []int{1, 2, 3},
		},
		{
			name:     "window reaching end sets last row",
			start:    4,
			end:      10,
			wantIDs:  []int{5, 6},
			wantLast: ptr(6),
		},
		{
			name:     "window past end",
			start:    20,
			end:      30,
			wantIDs:  []int{},
			wantLast: ptr(6),
		},
		{
			name:     "age descending nil last",
			start:    0,
			end:      6,
			sort:     []gridsource.SortDirective{{ColumnID: "age", Direction: gridsource.Descending}},
			wantIDs:  []int{5, 6, 1, 2, 4, 3},
			wantLast: ptr(6),
		},
		{
			name:  "multi column sort",
			start: 0,
			end:   6,
			sort: []gridsource.SortDirective{
				{ColumnID: "city", Direction: gridsource.Descending},
				{ColumnID: "id", Direction: gridsource.Descending},
			},
			wantIDs:  []int{6, 5, 4, 2, 3, 1},
			wantLast: ptr(6),
		},
		{
			name:     "natural order by lowerCamel column id",
			start:    4,
			end:      6,
			sort:     []gridsource.SortDirective{{ColumnID: "firstName", Direction: gridsource.Ascending}},
			wantIDs:  []int{6, 5},
			wantLast: ptr(6),
		},
		{
			name:     "filter by city",
			start:    0,
			end:      10,
			filter:   `{"city": {"filterType": "text", "type": "equals", "filter": "berlin"}}`,
			wantIDs:  []int{2, 4},
			wantLast: ptr(2),
		},
		{
			name:     "filter and sort",
			start:    0,
			end:      10,
			sort:     []gridsource.SortDirective{{ColumnID: "age", Direction: gridsource.Ascending}},
			filter:   `{"age": {"filterType": "number", "type": "greaterThan", "filter": 30}}`,
			wantIDs:  []int{1, 6, 5},
			wantLast: ptr(3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fm json.RawMessage
			if tt.filter != "" {
				fm = json.RawMessage(tt.filter)
			}
			req := gridsource.NewRowRangeRequest(tt.start, tt.end, tt.sort, fm)

			page, err := src.Fetch(context.Background(), req)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}

			if got := ids(page.Rows); !equalInts(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
			switch {
			case tt.wantLast == nil && page.LastRow != nil:
				t.Errorf("LastRow = %d, want nil", *page.LastRow)
			case tt.wantLast != nil && (page.LastRow == nil || *page.LastRow != *tt.wantLast):
				t.Errorf("LastRow = %v, want %d", page.LastRow, *tt.wantLast)
			}
		})
	}
}

func TestFetchInvalidFilter(t *testing.T) {
	src := New(testRecords(), testOptions())
	req := gridsource.NewRowRangeRequest(0, 10, nil, json.RawMessage(`{"age": {"filterType": "bogus"}}`))

	if _, err := src.Fetch(context.Background(), req); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("Fetch() error = %v, want ErrInvalidFilter", err)
	}
}

func TestFetchCancelled(t *testing.T) {
	src := New(testRecords(), testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Fetch(ctx, gridsource.NewRowRangeRequest(0, 10, nil, nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestReplaceAppend(t *testing.T) {
	src := New(nil, testOptions())
	if src.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", src.Len())
	}

	src.Append(Record{"id": 1, "user_name": "a"})
	src.Append(Record{"id": 2, "user_name": "b"})
	if src.Len() != 2 {
		t.Errorf("Len() = %d, want 2", src.Len())
	}
	if cols := src.Columns(); len(cols) != 2 || cols[0] != "id" || cols[1] != "userName" {
		t.Errorf("Columns() = %v", cols)
	}

	src.Replace(testRecords())
	if src.Len() != 6 {
		t.Errorf("Len() after Replace = %d, want 6", src.Len())
	}
}

func TestKeyStyleAsIs(t *testing.T) {
	opts := testOptions()
	opts.Keys = payload.KeysAsIs
	src := New([]Record{
		{"id": 1, "user_name": "a"},
		{"id": 2, "user_name": "c"},
		{"id": 3, "user_name": "b"},
	}, opts)

	if cols := src.Columns(); len(cols) != 2 || cols[0] != "id" || cols[1] != "user_name" {
		t.Errorf("Columns() = %v, want [id user_name]", cols)
	}

	sort := []gridsource.SortDirective{{ColumnID: "user_name", Direction: gridsource.Descending}}
	page, err := src.Fetch(context.Background(), gridsource.NewRowRangeRequest(0, 3, sort, nil))
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got := ids(page.Rows); !equalInts(got, []int{2, 3, 1}) {
		t.Errorf("ids = %v, want [2 3 1]", got)
	}
}

func TestLoadJSON(t *testing.T) {
	src, err := LoadJSON(strings.NewReader(`[
		{"id": 1, "price": 10.5},
		{"id": 2, "price": 9},
		{"id": 3, "price": 100}
	]`), testOptions())
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}

	req := gridsource.NewRowRangeRequest(0, 3,
		[]gridsource.SortDirective{{ColumnID: "price", Direction: gridsource.Ascending}}, nil)
	page, err := src.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	var got []string
	for _, r := range page.Rows {
		got = append(got, r["id"].(json.Number).String())
	}
	if strings.Join(got, ",") != "2,1,3" {
		t.Errorf("ids = %v, want numeric order 2,1,3", got)
	}

	if _, err := LoadJSON(strings.NewReader(`{"id": 1}`), nil); err == nil {
		t.Error("Expected error for non-array input")
	}
}

func TestConcurrentFetchAndAppend(t *testing.T) {
	src := New(testRecords(), testOptions())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := src.Fetch(context.Background(), gridsource.NewRowRangeRequest(0, 100,
				[]gridsource.SortDirective{{ColumnID: "id", Direction: gridsource.Descending}}, nil))
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
		}()
		go func(i int) {
			defer wg.Done()
			src.Append(Record{"id": 100 + i})
		}(i)
	}
	wg.Wait()

	if src.Len() != 26 {
		t.Errorf("Len() = %d, want 26", src.Len())
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b any
		want int
	}{
		{nil, 1, -1},
		{1, nil, 1},
		{nil, nil, 0},
		{2, 10, -1},
		{int64(3), 2.5, 1},
		{"file9", "file10", -1},
		{false, true, -1},
		{"b", "b", 0},
	}
	for _, tt := range tests {
		if got := compareValues(tt.a, tt.b); got != tt.want {
			t.Errorf("compareValues(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
