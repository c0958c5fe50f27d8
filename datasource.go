package gridsource

import "context"

// GetRowsFunc is the callback the host row model invokes once per block
// of rows it needs.
type GetRowsFunc func(ctx context.Context, req HostRequest)

// DataSource is the host-consumable handle registered with the grid's row
// model (GridOptions.Datasource). It carries only callbacks; once built
// there is no typed access back to the bridge or its fetcher.
type DataSource struct {
	// GetRows is the host-mandated "getRows" callback.
	GetRows GetRowsFunc

	// Destroy releases the data source. Optional for hosts: those without
	// a teardown signal never call it.
	Destroy func()
}

// Valid reports whether the handle can serve requests.
func (ds DataSource) Valid() bool {
	return ds.GetRows != nil
}

// Build exports the bridge as a DataSource handle.
func (b *Bridge[T]) Build() DataSource {
	return DataSource{
		GetRows: b.GetRows,
		Destroy: b.Destroy,
	}
}
