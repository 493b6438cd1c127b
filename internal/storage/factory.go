package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OCAP2/simbridge/internal/config"
	gormstorage "github.com/OCAP2/simbridge/internal/storage/gorm"
	influxstorage "github.com/OCAP2/simbridge/internal/storage/influx"
	"github.com/OCAP2/simbridge/internal/storage/jsonl"
	"github.com/OCAP2/simbridge/internal/storage/memory"
	"github.com/OCAP2/simbridge/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/simbridge/internal/storage/sqlite"
)

// Types lists the accepted storage.type values.
var Types = []string{"jsonl", "memory", "sqlite", "postgres", "influx"}

// NewBackend builds the backend selected by cfg.Type. Init is left to the
// caller.
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "jsonl":
		return jsonl.New(cfg.JSONL, log), nil
	case "memory":
		return memory.New(cfg.Memory, log), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, gormstorage.Options{FlushInterval: cfg.FlushInterval}, log), nil
	case "postgres":
		return postgres.New(cfg.DB, gormstorage.Options{FlushInterval: cfg.FlushInterval}, log), nil
	case "influx":
		return influxstorage.New(cfg.Influx, log), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}
