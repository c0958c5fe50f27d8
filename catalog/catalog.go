// Package catalog provides interfaces for publishing named grid data sources.
//
// A catalog is what the transports serve: each Source pairs a
// gridsource.DataSource with the GridOptions a client renders it with and,
// optionally, an Arrow schema describing its rows.
//
//   - Static catalogs: Built using NewBuilder() fluent API (immutable, fast lookup)
//   - Custom catalogs: implementations that reflect live configuration
//
// All interfaces are goroutine-safe and support context-based cancellation.
package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/internal/recovery"
)

// ErrInvalidCatalog indicates catalog building failed validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog represents the set of sources a host serves.
// All methods MUST be goroutine-safe.
type Catalog interface {
	// Sources returns all sources visible in this catalog, ordered by name.
	// Context may contain auth info for permission-based filtering.
	// Returns empty slice (not nil) if no sources available.
	Sources(ctx context.Context) ([]Source, error)

	// Source returns a specific source by name.
	// Returns (nil, nil) if source doesn't exist (not an error).
	// Returns (nil, err) if lookup fails for other reasons.
	Source(ctx context.Context, name string) (Source, error)
}

// Source is one named data source.
// Implementations MUST be goroutine-safe.
type Source interface {
	// Name returns the source name used in URLs and flight paths.
	// MUST return non-empty string.
	Name() string

	// Comment returns optional source documentation.
	Comment() string

	// DataSource returns the handle that serves row requests.
	DataSource() gridsource.DataSource

	// GridOptions returns the options a client initialises its grid with.
	// The returned value is a copy; the Datasource field is always nil.
	GridOptions() *gridsource.GridOptions

	// ArrowSchema returns the schema of the rows, projected to columns when
	// columns is non-empty. Returns nil if the source has no schema.
	ArrowSchema(columns []string) *arrow.Schema
}

// Destroy destroys every data source of the catalog. A panicking destroy
// hook is logged and does not stop the others.
func Destroy(ctx context.Context, cat Catalog, logger *slog.Logger) error {
	sources, err := cat.Sources(ctx)
	if err != nil {
		return err
	}
	for _, s := range sources {
		ds := s.DataSource()
		if ds.Destroy == nil {
			continue
		}
		recovery.Recover(logger, "Destroy "+s.Name(), ds.Destroy)
	}
	return nil
}
