// Package postgres records to PostgreSQL with PostGIS through the gorm
// backend.
package postgres

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/database"
	gormstorage "github.com/OCAP2/simbridge/internal/storage/gorm"
)

type Backend struct {
	*gormstorage.Backend
	cfg       config.DBConfig
	opts      gormstorage.Options
	log       zerolog.Logger
	db        *database.Manager
	closeOnce sync.Once
}

func New(cfg config.DBConfig, opts gormstorage.Options, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:  cfg,
		opts: opts,
		log:  log,
		db:   database.NewManager(log),
	}
}

// Init connects, enables PostGIS, migrates and starts the writer.
func (b *Backend) Init() error {
	if err := b.db.OpenPostgres(b.cfg); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := b.db.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.Backend = gormstorage.New(b.db.DB, b.opts, b.log)
	return b.Backend.Init()
}

func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.Backend != nil {
			err = b.Backend.Close()
		}
		if closeErr := b.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}
