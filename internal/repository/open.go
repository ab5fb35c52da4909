package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Proton-105/mlbb-topup-bot/internal/database"
	"github.com/Proton-105/mlbb-topup-bot/pkg/config"
)

const connectTimeout = 5 * time.Second

// Open selects the storage backend once at startup. When postgres is
// configured but unreachable and the file fallback is enabled, the file
// backend serves the whole process lifetime.
func Open(ctx context.Context, storage config.StorageConfig, db config.DatabaseConfig, log *slog.Logger) (Backend, error) {
	if log == nil {
		log = slog.Default()
	}

	switch storage.Driver {
	case "memory":
		return NewInMemory(), nil
	case "file":
		return OpenFile(storage.FilePath)
	}

	backend, err := openPostgres(ctx, db, log)
	if err == nil {
		return backend, nil
	}

	if !storage.FallbackFile {
		return nil, err
	}

	log.Warn("postgres unavailable, using file storage",
		slog.String("path", storage.FilePath),
		slog.Any("error", err),
	)

	return OpenFile(storage.FilePath)
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := database.NewMigrator(db, log).ApplyEmbedded(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("database migrations applied")
	return NewPostgresBackend(db, log), nil
}
