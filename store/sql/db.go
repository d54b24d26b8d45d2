package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// OpenDB opens a database handle for the given driver name and DSN and
// wraps it in a bun.DB with the matching dialect. The handle is lazy;
// callers that need an eager connectivity check should ping it.
func OpenDB(driver string, dsn string) (*bun.DB, error) {
	dialect, sqlDriver, err := ResolveDialect(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	sqlDB, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s database: %w", sqlDriver, err)
	}

	return bun.NewDB(sqlDB, dialect), nil
}

// ResolveDialect maps a configured driver name onto the bun dialect and
// the registered database/sql driver it rides on. Postgres and SQLite
// are the dialects the relay schema ships migrations for.
func ResolveDialect(driver string) (schema.Dialect, string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pg":
		return pgdialect.New(), "postgres", nil
	case "sqlite", "sqlite3":
		return sqlitedialect.New(), "sqlite3", nil
	case "":
		return nil, "", fmt.Errorf("sqlstore: driver is required")
	default:
		return nil, "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}
