package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/amoclient/internal/client/migrations"
	"github.com/dmitrijs2005/amoclient/internal/filex"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations of driver to db.
func RunMigrations(ctx context.Context, driver string, db *sql.DB) error {
	dialect, dir := "sqlite3", migrations.SQLiteDir
	if driver == DriverPostgres {
		dialect, dir = "pgx", migrations.PostgresDir
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Open connects to the mirror database, applies migrations and returns the
// repository together with the handle the caller must close.
func Open(ctx context.Context, driver, dsn string) (Repository, *sql.DB, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite"
		if isFilePath(dsn) {
			if _, err := filex.EnsureParentDir(dsn); err != nil {
				return nil, nil, err
			}
		}
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, nil, fmt.Errorf("unsupported mirror driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to mirror: %w", err)
	}
	if err := RunMigrations(ctx, driver, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	if driver == DriverPostgres {
		return NewPostgresRepository(db), db, nil
	}
	return NewSQLiteRepository(db), db, nil
}

// isFilePath reports whether a SQLite DSN names a plain file.
func isFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}
