package gridsource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hugr-lab/gridsource-go/payload"
)

// TestDataSourceBuilderBasic tests basic data source building functionality.
func TestDataSourceBuilderBasic(t *testing.T) {
	ds, err := NewDataSourceBuilder[testRow](rowsFetcher(testRow{ID: 7, Name: "seven"})).
		Logger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		FetchTimeout(time.Second).
		Build()

	if err != nil {
		t.Fatalf("Expected successful build, got error: %v", err)
	}
	if !ds.Valid() {
		t.Fatal("Expected valid data source")
	}

	req, done := NewAwaitRequest(NewGetRowsParams(0, 10, nil, nil))
	ds.GetRows(context.Background(), req)

	out := <-done
	if !out.OK {
		t.Fatal("Expected successful outcome")
	}
	if string(out.Payload.RowData) != `[{"id":7,"name":"seven"}]` {
		t.Errorf("RowData = %s", out.Payload.RowData)
	}
}

// TestDataSourceBuilderOnce tests that a builder can only be built once.
func TestDataSourceBuilderOnce(t *testing.T) {
	b := NewDataSourceBuilder[testRow](rowsFetcher())

	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("second Build() error = %v, want ErrInvalidConfig", err)
	}
}

// TestDataSourceBuilderNilFetcher tests that a nil fetcher is rejected.
func TestDataSourceBuilderNilFetcher(t *testing.T) {
	b := NewDataSourceBuilder[testRow](nil)
	if _, err := b.Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Build() error = %v, want ErrInvalidConfig", err)
	}

	// A failed build does not consume the builder.
	b.fetcher = rowsFetcher()
	if _, err := b.Build(); err != nil {
		t.Errorf("Build() after fix error = %v", err)
	}
}

// TestDataSourceBuilderEncoder tests that a custom encoder is used.
func TestDataSourceBuilderEncoder(t *testing.T) {
	f := FetcherFunc[map[string]any](func(ctx context.Context, req RowRangeRequest) (Page[map[string]any], error) {
		return NewPage([]map[string]any{{"first_name": "Ada"}}), nil
	})

	tests := []struct {
		name string
		enc  *payload.Encoder
		want string
	}{
		{"default lower camel", nil, `[{"firstName":"Ada"}]`},
		{"keys as is", payload.NewEncoder(&payload.Options{Keys: payload.KeysAsIs}), `[{"first_name":"Ada"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewDataSourceBuilder[map[string]any](f).LogLevel(slog.LevelError)
			if tt.enc != nil {
				b = b.Encoder(tt.enc)
			}
			ds, err := b.Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			req, done := NewAwaitRequest(NewGetRowsParams(0, 1, nil, nil))
			ds.GetRows(context.Background(), req)
			out := <-done

			var got, want any
			if err := json.Unmarshal(out.Payload.RowData, &got); err != nil {
				t.Fatalf("invalid row data %s: %v", out.Payload.RowData, err)
			}
			_ = json.Unmarshal([]byte(tt.want), &want)
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("RowData = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

// TestDataSourceBuilderOnError tests that failures reach the error hook.
func TestDataSourceBuilderOnError(t *testing.T) {
	f := FetcherFunc[testRow](func(ctx context.Context, req RowRangeRequest) (Page[testRow], error) {
		return Page[testRow]{}, errors.New("boom")
	})

	var calls int
	ds, err := NewDataSourceBuilder[testRow](f).
		LogLevel(slog.LevelError).
		OnError(func(RequestInfo, error) { calls++ }).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	req, done := NewAwaitRequest(NewGetRowsParams(0, 10, nil, nil))
	ds.GetRows(context.Background(), req)

	if out := <-done; out.OK {
		t.Error("Expected failed outcome")
	}
	if calls != 1 {
		t.Errorf("OnError called %d times, want 1", calls)
	}
}
