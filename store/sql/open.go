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

// Open connects driver+dsn and wraps the connection in a bun handle with
// the matching dialect. Supported drivers are postgres and sqlite3.
func Open(driver string, dsn string) (*bun.DB, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	dialect, err := Dialect(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqlDB, dialect), nil
}

// Dialect maps a sql driver name to its bun dialect.
func Dialect(driver string) (schema.Dialect, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "postgres", "pg", "postgresql":
		return pgdialect.New(), nil
	case "sqlite3", "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported sql driver %q", driver)
	}
}
