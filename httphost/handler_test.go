package httphost

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/auth"
	"github.com/hugr-lab/gridsource-go/catalog"
	"github.com/hugr-lab/gridsource-go/internal/compress"
	"github.com/hugr-lab/gridsource-go/memsource"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) catalog.Catalog {
	t.Helper()

	people := memsource.New([]memsource.Record{
		{"id": 1, "name": "Ann"},
		{"id": 2, "name": "Bob"},
		{"id": 3, "name": "Cid"},
	}, &memsource.Options{Logger: quietLogger()})
	peopleDS, err := gridsource.NewDataSourceBuilder[memsource.Record](people).Logger(quietLogger()).Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	failing, err := gridsource.NewDataSourceBuilder[int](gridsource.FetcherFunc[int](
		func(ctx context.Context, req gridsource.RowRangeRequest) (gridsource.Page[int], error) {
			return gridsource.Page[int]{}, errors.New("backend down")
		})).Logger(quietLogger()).Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	blocking, err := gridsource.NewDataSourceBuilder[int](gridsource.FetcherFunc[int](
		func(ctx context.Context, req gridsource.RowRangeRequest) (gridsource.Page[int], error) {
			<-ctx.Done()
			return gridsource.Page[int]{}, ctx.Err()
		})).Logger(quietLogger()).Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	schema, err := catalog.NewSchema([]catalog.ColumnSpec{{Name: "id", Type: "int64"}, {Name: "name", Type: "string"}})
	if err != nil {
		t.Fatalf("NewSchema() failed: %v", err)
	}

	cat, err := catalog.NewBuilder().
		Source(catalog.SourceDef{Name: "people", Comment: "People", DataSource: peopleDS, Schema: schema}).
		Source(catalog.SourceDef{Name: "failing", DataSource: failing}).
		Source(catalog.SourceDef{Name: "blocking", DataSource: blocking}).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return cat
}

func newTestHandler(t *testing.T, config Config) *Handler {
	t.Helper()
	if config.Catalog == nil {
		config.Catalog = testCatalog(t)
	}
	config.Logger = quietLogger()
	h, err := NewHandler(config)
	if err != nil {
		t.Fatalf("NewHandler() failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewHandlerValidation(t *testing.T) {
	if _, err := NewHandler(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for missing catalog, got %v", err)
	}
	if _, err := NewHandler(Config{Catalog: testCatalog(t), RequestTimeout: -1}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for negative timeout, got %v", err)
	}
}

func TestListSources(t *testing.T) {
	h := newTestHandler(t, Config{})

	rec := do(h, http.MethodGet, "/sources", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	want := `[{"name":"blocking"},{"name":"failing"},{"name":"people","comment":"People"}]`
	if rec.Body.String() != want {
		t.Errorf("Expected %s, got %s", want, rec.Body.String())
	}
}

func TestSourceOptions(t *testing.T) {
	h := newTestHandler(t, Config{})

	rec := do(h, http.MethodGet, "/sources/people/options", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	want := `{"columnDefs":[{"field":"id","sortable":true,"filter":"agNumberColumnFilter"},` +
		`{"field":"name","sortable":true,"filter":"agTextColumnFilter"}],"rowModelType":"infinite"}`
	if rec.Body.String() != want {
		t.Errorf("Expected %s, got %s", want, rec.Body.String())
	}

	if rec := do(h, http.MethodGet, "/sources/nope/options", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown source, got %d", rec.Code)
	}
}

func TestGetRows(t *testing.T) {
	h := newTestHandler(t, Config{RequestTimeout: 50 * time.Millisecond})

	tests := []struct {
		name string
		path string
		body string
		code int
		want string
	}{
		{
			name: "first window",
			path: "/sources/people/rows",
			body: `{"startRow":0,"endRow":2}`,
			code: http.StatusOK,
			want: `{"rowData":[{"id":1,"name":"Ann"},{"id":2,"name":"Bob"}]}`,
		},
		{
			name: "sorted to the end",
			path: "/sources/people/rows",
			body: `{"startRow":1,"endRow":10,"sortModel":[{"colId":"name","sort":"desc"}]}`,
			code: http.StatusOK,
			want: `{"rowData":[{"id":2,"name":"Bob"},{"id":1,"name":"Ann"}],"lastRow":3}`,
		},
		{
			name: "filtered",
			path: "/sources/people/rows",
			body: `{"startRow":0,"endRow":10,"filterModel":{"name":{"filterType":"text","type":"startsWith","filter":"c"}}}`,
			code: http.StatusOK,
			want: `{"rowData":[{"id":3,"name":"Cid"}],"lastRow":1}`,
		},
		{
			name: "missing endRow fails",
			path: "/sources/people/rows",
			body: `{"startRow":0}`,
			code: http.StatusBadGateway,
			want: `{}`,
		},
		{
			name: "unknown sort direction fails",
			path: "/sources/people/rows",
			body: `{"startRow":0,"endRow":1,"sortModel":[{"colId":"name","sort":"up"}]}`,
			code: http.StatusBadGateway,
			want: `{}`,
		},
		{
			name: "fetch error fails",
			path: "/sources/failing/rows",
			body: `{"startRow":0,"endRow":1}`,
			code: http.StatusBadGateway,
			want: `{}`,
		},
		{
			name: "timeout",
			path: "/sources/blocking/rows",
			body: `{"startRow":0,"endRow":1}`,
			code: http.StatusBadGateway,
			want: `{}`,
		},
		{
			name: "malformed body",
			path: "/sources/people/rows",
			body: `{"startRow":`,
			code: http.StatusBadRequest,
			want: `{}`,
		},
		{
			name: "unknown source",
			path: "/sources/nope/rows",
			body: `{"startRow":0,"endRow":1}`,
			code: http.StatusNotFound,
			want: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, tt.path, tt.body, nil)
			if rec.Code != tt.code {
				t.Fatalf("Expected status %d, got %d (%s)", tt.code, rec.Code, rec.Body.String())
			}
			if rec.Body.String() != tt.want {
				t.Errorf("Expected body %s, got %s", tt.want, rec.Body.String())
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, Config{})
	if rec := do(h, http.MethodGet, "/sources/people/rows", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestCompression(t *testing.T) {
	h := newTestHandler(t, Config{})

	rec := do(h, http.MethodPost, "/sources/people/rows", `{"startRow":0,"endRow":1}`,
		map[string]string{"Accept-Encoding": "gzip, zstd"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "zstd" {
		t.Fatalf("Expected zstd encoding, got %q", got)
	}

	d, err := compress.NewCodec(zstd.SpeedFastest)
	if err != nil {
		t.Fatalf("NewCodec() failed: %v", err)
	}
	defer d.Close()
	body, err := d.Decompress(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Decompress() failed: %v", err)
	}

	var p gridsource.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if string(p.RowData) != `[{"id":1,"name":"Ann"}]` {
		t.Errorf("Unexpected rows %s", p.RowData)
	}

	h = newTestHandler(t, Config{DisableCompression: true})
	rec = do(h, http.MethodGet, "/sources", "", map[string]string{"Accept-Encoding": "zstd"})
	if rec.Header().Get("Content-Encoding") != "" {
		t.Error("Expected no compression when disabled")
	}
}

func TestAuth(t *testing.T) {
	h := newTestHandler(t, Config{
		Auth: auth.StaticTokens([]auth.Token{
			{Token: "admin", Identity: "admin"},
			{Token: "reader", Identity: "reader", Sources: []string{"people"}},
		}),
	})

	if rec := do(h, http.MethodGet, "/sources", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}

	rec := do(h, http.MethodGet, "/sources", "", map[string]string{"Authorization": "Bearer reader"})
	if rec.Body.String() != `[{"name":"people","comment":"People"}]` {
		t.Errorf("Expected only authorized sources, got %s", rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/sources/failing/rows", `{"startRow":0,"endRow":1}`,
		map[string]string{"Authorization": "Bearer reader"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}

	rec = do(h, http.MethodPost, "/sources/people/rows", `{"startRow":0,"endRow":1}`,
		map[string]string{"Authorization": "Bearer admin"})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
