package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrate runs a goose command (up, down, status) against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, command string) error {
	if db == nil {
		return nil
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	goose.SetBaseFS(dir)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect.gooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	path := string(dialect)
	switch command {
	case "", "up":
		err = goose.UpContext(ctx, db, path)
	case "down":
		err = goose.DownContext(ctx, db, path)
	case "status":
		err = goose.StatusContext(ctx, db, path)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
