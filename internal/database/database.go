package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/model"
)

// ErrNotConnected is returned by operations that need an open database.
var ErrNotConnected = errors.New("database not connected")

var memoryDBs atomic.Uint64

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager owns one gorm connection to Postgres or SQLite.
type Manager struct {
	DB       *gorm.DB
	SqlDB    *sql.DB
	InMemory bool
	Logger   zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// DSN renders the Postgres connection string.
func DSN(cfg config.DBConfig) string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

// OpenPostgres connects and pings the server.
func (m *Manager) OpenPostgres(cfg config.DBConfig) error {
	m.Logger.Debug().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connecting to Postgres")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  DSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := m.attach(db); err != nil {
		return err
	}
	m.SqlDB.SetMaxOpenConns(10)
	m.Logger.Info().Msg("Connected to Postgres")
	return nil
}

// OpenSqlite opens a file database, or a private in-memory one when path is
// empty.
func (m *Manager) OpenSqlite(path string) error {
	dsn := path
	m.InMemory = path == ""
	if m.InMemory {
		dsn = fmt.Sprintf("file:simbridge-%d?mode=memory&cache=shared", memoryDBs.Add(1))
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	if err := m.attach(db); err != nil {
		return err
	}
	if m.InMemory {
		// the shared-cache database lives as long as one connection does
		m.SqlDB.SetConnMaxIdleTime(0)
		m.SqlDB.SetMaxIdleConns(1)
		m.Logger.Info().Msg("Using in-memory SQLite with periodic disk dump")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using SQLite file")
	}
	return nil
}

func (m *Manager) attach(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.DB = db
	m.SqlDB = sqlDB
	return nil
}

// Setup migrates the recording schema, enabling PostGIS on Postgres first.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return ErrNotConnected
	}
	if m.DB.Dialector.Name() == "postgres" {
		if err := m.DB.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS extension: %w", err)
		}
		m.Logger.Info().Msg("PostGIS extension ready")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DumpToDisk writes a point-in-time copy of a SQLite database to path,
// replacing any previous dump.
func (m *Manager) DumpToDisk(path string) error {
	if m.DB == nil {
		return ErrNotConnected
	}
	if path == "" {
		return errors.New("sqlite dump path not set")
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing dump: %w", err)
		}
	}

	start := time.Now()
	if err := m.DB.Exec("VACUUM INTO 'file:" + path + "';").Error; err != nil {
		return fmt.Errorf("error dumping database to disk: %w", err)
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped database to disk")
	return nil
}

func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	err := m.SqlDB.Close()
	m.SqlDB = nil
	m.DB = nil
	return err
}
