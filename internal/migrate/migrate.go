// Package migrate applies the embedded goose migrations. Each supported
// dialect keeps its own SQL under migrations/<dialect>; the schema history
// lives in schema_migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationFS embed.FS

// dialects maps every accepted driver name onto the goose dialect, the
// migration directory and the database/sql driver to open with.
var dialects = map[string]struct {
	goose     string
	dir       string
	sqlDriver string
}{
	"sqlite":       {goose: "sqlite3", dir: "migrations/sqlite", sqlDriver: "sqlite"},
	"sqlite3":      {goose: "sqlite3", dir: "migrations/sqlite", sqlDriver: "sqlite"},
	"postgres":     {goose: "postgres", dir: "migrations/postgres", sqlDriver: "pgx"},
	"pgx":          {goose: "postgres", dir: "migrations/postgres", sqlDriver: "pgx"},
	"postgrespool": {goose: "postgres", dir: "migrations/postgres", sqlDriver: "pgx"},
}

// Up applies all pending migrations.
func Up(ctx context.Context, driver, dsn string) error {
	return withDB(driver, dsn, func(db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	})
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, driver, dsn string) error {
	return withDB(driver, dsn, func(db *sql.DB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	})
}

// Status prints the migration history to the goose logger.
func Status(ctx context.Context, driver, dsn string) error {
	return withDB(driver, dsn, func(db *sql.DB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

func withDB(driver, dsn string, fn func(db *sql.DB, dir string) error) error {
	if driver == "" {
		driver = "sqlite"
	}
	if dsn == "" {
		dsn = "rainforge.db"
	}
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	goose.SetBaseFS(migrationFS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect(d.goose); err != nil {
		return err
	}

	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db, d.dir)
}
