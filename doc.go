// Package gridsource provides a pull-based row data source for virtualized
// data grids such as AG Grid's infinite and server-side row models.
//
// Instead of holding the full dataset in memory, the grid asks for rows in
// blocks ("rows 100..200, sorted by age desc"). The gridsource package
// turns that callback into a single typed fetch call implemented by the
// application, and turns the result back into the exact completion the grid
// expects:
//   - success: one call carrying the encoded rows (and an optional row count)
//   - failure: one call with no arguments; the reason stays on the server
//
// # Quick Start
//
//	fetch := gridsource.FetcherFunc[Order](func(ctx context.Context, req gridsource.RowRangeRequest) (gridsource.Page[Order], error) {
//	    orders, total, err := db.Orders(ctx, req.StartRow(), req.Limit(), req.SortModel())
//	    if err != nil {
//	        return gridsource.Page[Order]{}, err
//	    }
//	    return gridsource.NewPage(orders).WithLastRow(total), nil
//	})
//
//	ds, err := gridsource.NewDataSourceBuilder(fetch).
//	    FetchTimeout(10 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts := gridsource.NewGridOptions().
//	    WithRowModelType(gridsource.RowModelInfinite).
//	    WithCacheBlockSize(100).
//	    WithDatasource(ds)
//
// The DataSource handle is then served to the browser grid by one of the
// transports: httphost (JSON over HTTP) or flight (Arrow Flight).
//
// # Architecture
//
//   - HostRequest: capability view of one incoming request (window, sort,
//     filter, completion handles)
//   - RowRangeRequest / SortDirective: the decoded, immutable request
//   - Fetcher: the application's fetch function
//   - Bridge: decodes, fetches, encodes and resolves each request exactly once
//   - DataSource: the exported callback handle
//
// Ready-made fetchers live in memsource (in-memory records) and sqlsource
// (database/sql with DuckDB or PostgreSQL). The limit package wraps any
// fetcher with concurrency and rate limits.
//
// # Lifetime
//
// A Bridge lives as long as the grid that uses it. The infinite row model
// has no teardown signal, so by default nothing is ever released; hosts
// that have one call DataSource.Destroy, which forwards to fetchers
// implementing Destroyer.
//
// # Logging
//
// The package uses log/slog.Default() unless Config.Logger is set. Every
// request is tagged with a request_id attribute.
package gridsource
