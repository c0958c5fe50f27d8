package sqlsource

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "duckdb" driver.
	_ "github.com/duckdb/duckdb-go/v2"
	// Registers the "pgx" driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Driver names accepted by Open.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "pgx"
)

// Open opens and pings a database. An empty DuckDB dsn opens an in-memory
// database.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverDuckDB, DriverPostgres:
	case "postgres", "postgresql":
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlsource: ping %s: %w", driver, err)
	}
	return db, nil
}
