// Command migrate applies the embedded schema migrations: migrate [up|down|status].
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/docflow/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("migrate", cfg.LogLevel)
	slog.SetDefault(logger)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if err := run(cfg, command); err != nil {
		logger.Error("migrate_failed", "command", command, "error", err)
		os.Exit(1)
	}
	logger.Info("migrate_completed", "command", command, "db_driver", cfg.DBDriver)
}

func run(cfg config.Config, command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}
	db, err := sqlstore.OpenDB(ctx, dialect, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return sqlstore.Migrate(ctx, db, dialect, command)
}
