// Package sqlitestorage records to SQLite through the gorm backend. An empty
// path records in memory and dumps to disk on an interval and at Close.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/database"
	gormstorage "github.com/OCAP2/simbridge/internal/storage/gorm"
)

type Backend struct {
	*gormstorage.Backend
	cfg  config.SQLiteConfig
	opts gormstorage.Options
	log  zerolog.Logger
	db   *database.Manager

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New(cfg config.SQLiteConfig, opts gormstorage.Options, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:  cfg,
		opts: opts,
		log:  log,
		db:   database.NewManager(log),
	}
}

// Init opens and migrates the database, then starts the writer and, for an
// in-memory database, the dump loop.
func (b *Backend) Init() error {
	if err := b.db.OpenSqlite(b.cfg.Path); err != nil {
		return fmt.Errorf("failed to open SQLite: %w", err)
	}
	if err := b.db.Setup(); err != nil {
		return err
	}

	b.Backend = gormstorage.New(b.db.DB, b.opts, b.log)
	if err := b.Backend.Init(); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	if b.db.InMemory && b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Database exposes the underlying manager.
func (b *Backend) Database() *database.Manager {
	return b.db
}

func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.db.DumpToDisk(b.cfg.DumpPath); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}

// Close flushes, writes a final dump when in memory, and closes the database.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.Backend == nil {
			err = b.db.Close()
			return
		}
		close(b.stopChan)
		b.wg.Wait()

		err = b.Backend.Close()
		if b.db.InMemory && b.cfg.DumpPath != "" {
			if dumpErr := b.db.DumpToDisk(b.cfg.DumpPath); dumpErr != nil && err == nil {
				err = dumpErr
			}
		}
		if closeErr := b.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}
