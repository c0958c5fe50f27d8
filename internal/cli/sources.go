package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/auth"
	"github.com/hugr-lab/gridsource-go/catalog"
	"github.com/hugr-lab/gridsource-go/limit"
	"github.com/hugr-lab/gridsource-go/memsource"
	"github.com/hugr-lab/gridsource-go/payload"
	"github.com/hugr-lab/gridsource-go/sqlsource"
)

// BuildCatalog opens every configured source and returns the catalog.
// On error, the data sources built so far are destroyed.
func BuildCatalog(ctx context.Context, cfg *Config, logger *slog.Logger) (catalog.Catalog, error) {
	limiters := make(map[string]*limit.Limiter, len(cfg.Limits))
	for _, d := range cfg.Limits {
		l, err := limit.New(d)
		if err != nil {
			return nil, err
		}
		logger.Debug("Limiter created", "limit", d.Name, "config", l.String())
		limiters[d.Name] = l
	}

	var built []gridsource.DataSource
	fail := func(err error) (catalog.Catalog, error) {
		for _, ds := range built {
			ds.Destroy()
		}
		return nil, err
	}

	b := catalog.NewBuilder()
	for _, sc := range cfg.Sources {
		srcLogger := logger.With("source", sc.Name)

		ds, err := buildDataSource(ctx, sc, limiters[sc.Limit], srcLogger)
		if err != nil {
			return fail(fmt.Errorf("source %q: %w", sc.Name, err))
		}
		built = append(built, ds)

		var schema *arrow.Schema
		if len(sc.Schema) > 0 {
			if schema, err = catalog.NewSchema(sc.Schema); err != nil {
				return fail(fmt.Errorf("source %q: %w", sc.Name, err))
			}
		}

		var options *gridsource.GridOptions
		if sc.CacheBlockSize > 0 {
			options = gridsource.NewGridOptions().WithCacheBlockSize(sc.CacheBlockSize)
		}

		b.Source(catalog.SourceDef{
			Name:       sc.Name,
			Comment:    sc.Comment,
			DataSource: ds,
			Options:    options,
			Schema:     schema,
		})
		srcLogger.Info("Source configured", "kind", sc.Kind, "has_schema", schema != nil, "limit", sc.Limit)
	}

	cat, err := b.Build()
	if err != nil {
		return fail(err)
	}
	return cat, nil
}

func buildDataSource(ctx context.Context, sc SourceConfig, l *limit.Limiter, logger *slog.Logger) (gridsource.DataSource, error) {
	keys, err := payload.ParseKeyStyle(sc.Keys)
	if err != nil {
		return gridsource.DataSource{}, err
	}
	encoder := payload.NewEncoder(&payload.Options{Keys: keys})

	switch sc.Kind {
	case KindMemory:
		src, err := memsource.LoadFile(sc.File, &memsource.Options{Keys: keys, Logger: logger})
		if err != nil {
			return gridsource.DataSource{}, err
		}
		logger.Debug("Records loaded", "file", sc.File, "records", src.Len())
		return newDataSource[memsource.Record](src, sc, l, encoder, logger)

	case KindSQL:
		db, err := sqlsource.Open(ctx, sc.Driver, sc.DSN)
		if err != nil {
			return gridsource.DataSource{}, err
		}
		src, err := sqlsource.New(ctx, sqlsource.Config{
			DB:              db,
			Table:           sc.Table,
			Columns:         sc.Columns,
			ColumnIDs:       sc.ColumnIDs,
			Expressions:     sc.Expressions,
			Keys:            keys,
			GeometryColumns: sc.Geometry,
			CountRows:       sc.CountRows,
			CloseOnDestroy:  true,
			Logger:          logger,
		})
		if err != nil {
			db.Close()
			return gridsource.DataSource{}, err
		}
		return newDataSource[sqlsource.Row](src, sc, l, encoder, logger)
	}
	return gridsource.DataSource{}, fmt.Errorf("unknown kind %q", sc.Kind)
}

func newDataSource[T any](f gridsource.Fetcher[T], sc SourceConfig, l *limit.Limiter, encoder *payload.Encoder, logger *slog.Logger) (gridsource.DataSource, error) {
	if l != nil {
		f = limit.Wrap(f, l)
	}
	return gridsource.NewDataSourceBuilder(f).
		Logger(logger).
		FetchTimeout(sc.FetchTimeout).
		Encoder(encoder).
		OnError(func(info gridsource.RequestInfo, err error) {
			logger.Warn("Row request failed", "request_id", info.ID, "error", err)
		}).
		Build()
}

// authenticator returns the configured authenticator, or nil when no
// tokens are configured.
func authenticator(cfg *Config) auth.Authenticator {
	if len(cfg.Auth.Tokens) == 0 {
		return nil
	}
	return auth.StaticTokens(cfg.Auth.Tokens)
}
