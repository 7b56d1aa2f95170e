package storage

import (
	"context"
	"fmt"
	"log"
)

// Config selects and seeds the storage backend.
type Config struct {
	Driver      string
	DSN         string
	AutoMigrate bool
	Installers  []Installer
}

// migratable is a backend that owns its schema. Migrate stays off the
// Storage interface so it cannot be reached after Open.
type migratable interface {
	Storage
	Migrate(ctx context.Context) error
}

// Open constructs the Storage named by cfg.Driver, defaulting to the
// in-memory backend.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Printf("storage: in-memory backend")
		if len(cfg.Installers) > 0 {
			return NewMemoryWithInstallers(cfg.Installers), nil
		}
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.Printf("storage: gorm backend, driver=%s", drv)
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return finishOpen(ctx, cfg, st)

	case "postgrespool":
		log.Printf("storage: pgx pool backend")
		st, err := OpenPostgresPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return finishOpen(ctx, cfg, st)

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}

func finishOpen(ctx context.Context, cfg Config, st migratable) (Storage, error) {
	if !cfg.AutoMigrate {
		return st, nil
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("storage migrate: %w", err)
	}
	return st, nil
}
