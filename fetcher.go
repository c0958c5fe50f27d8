package gridsource

import "context"

// Fetcher is the single extension point of a data source: given a row
// window and sort order, return the rows or an error.
//
// The fetcher value owns whatever state it needs (a *sql.DB, an HTTP
// client, a cursor). The bridge calls Fetch at most once per host request
// and never retries. Requests may overlap: Fetch can be called again before
// an earlier call returned, so implementations that mutate shared state must
// synchronise it themselves (see the limit package for ready-made wrappers).
type Fetcher[T any] interface {
	Fetch(ctx context.Context, req RowRangeRequest) (Page[T], error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, req RowRangeRequest) (Page[T], error)

// Fetch implements Fetcher.
func (f FetcherFunc[T]) Fetch(ctx context.Context, req RowRangeRequest) (Page[T], error) {
	return f(ctx, req)
}

// Destroyer is implemented by fetchers that hold resources which should be
// released when the grid tears down its data source. Hosts that have no
// teardown signal never call it; the fetcher then lives as long as the
// process.
type Destroyer interface {
	Destroy()
}
