package gridsource

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hugr-lab/gridsource-go/payload"
)

// DataSourceBuilder builds a DataSource handle using a fluent API.
// Not thread-safe - use only during grid configuration.
type DataSourceBuilder[T any] struct {
	fetcher Fetcher[T]
	config  Config
	built   bool
}

// NewDataSourceBuilder starts building a data source around fetcher.
//
// Example:
//
//	ds, err := gridsource.NewDataSourceBuilder[User](
//	    gridsource.FetcherFunc[User](func(ctx context.Context, req gridsource.RowRangeRequest) (gridsource.Page[User], error) {
//	        users, err := store.Users(ctx, req.StartRow(), req.Limit())
//	        return gridsource.NewPage(users), err
//	    }),
//	).
//	    FetchTimeout(10 * time.Second).
//	    Build()
func NewDataSourceBuilder[T any](fetcher Fetcher[T]) *DataSourceBuilder[T] {
	return &DataSourceBuilder[T]{fetcher: fetcher}
}

// Logger sets the logger. Returns self for method chaining.
func (b *DataSourceBuilder[T]) Logger(logger *slog.Logger) *DataSourceBuilder[T] {
	b.config.Logger = logger
	return b
}

// LogLevel sets the log level used when no Logger is set.
func (b *DataSourceBuilder[T]) LogLevel(level slog.Level) *DataSourceBuilder[T] {
	b.config.LogLevel = &level
	return b
}

// FetchTimeout bounds each fetch through its context.
func (b *DataSourceBuilder[T]) FetchTimeout(d time.Duration) *DataSourceBuilder[T] {
	b.config.FetchTimeout = d
	return b
}

// Encoder sets the row payload encoder.
func (b *DataSourceBuilder[T]) Encoder(enc *payload.Encoder) *DataSourceBuilder[T] {
	b.config.Encoder = enc
	return b
}

// OnError sets the out-of-band failure hook.
func (b *DataSourceBuilder[T]) OnError(h ErrorHandler) *DataSourceBuilder[T] {
	b.config.OnError = h
	return b
}

// Build finalizes the data source.
// Can only be called once: the handle owns the fetcher from then on.
func (b *DataSourceBuilder[T]) Build() (DataSource, error) {
	if b.built {
		return DataSource{}, fmt.Errorf("%w: data source already built", ErrInvalidConfig)
	}

	bridge, err := NewBridge(b.fetcher, b.config)
	if err != nil {
		return DataSource{}, err
	}

	b.built = true
	return bridge.Build(), nil
}
