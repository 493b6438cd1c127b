package storage_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/storage"
	gormstorage "github.com/OCAP2/simbridge/internal/storage/gorm"
	influxstorage "github.com/OCAP2/simbridge/internal/storage/influx"
	"github.com/OCAP2/simbridge/internal/storage/jsonl"
	"github.com/OCAP2/simbridge/internal/storage/memory"
	"github.com/OCAP2/simbridge/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/simbridge/internal/storage/sqlite"
)

var (
	_ storage.Backend          = (*jsonl.Backend)(nil)
	_ storage.TrackRecorder    = (*jsonl.Backend)(nil)
	_ storage.Backend          = (*memory.Backend)(nil)
	_ storage.RecordingStarter = (*memory.Backend)(nil)
	_ storage.TrackRecorder    = (*memory.Backend)(nil)
	_ storage.Backend          = (*gormstorage.Backend)(nil)
	_ storage.RecordingStarter = (*gormstorage.Backend)(nil)
	_ storage.TrackRecorder    = (*gormstorage.Backend)(nil)
	_ storage.Backend          = (*sqlitestorage.Backend)(nil)
	_ storage.RecordingStarter = (*sqlitestorage.Backend)(nil)
	_ storage.Backend          = (*postgres.Backend)(nil)
	_ storage.Backend          = (*influxstorage.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		typ  string
		want any
	}{
		{"jsonl", &jsonl.Backend{}},
		{"memory", &memory.Backend{}},
		{"sqlite", &sqlitestorage.Backend{}},
		{"postgres", &postgres.Backend{}},
		{"influx", &influxstorage.Backend{}},
	}
	require.Len(t, tests, len(storage.Types))

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			b, err := storage.NewBackend(config.StorageConfig{Type: tt.typ}, zerolog.Nop())
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "tape"}, zerolog.Nop())
	assert.ErrorContains(t, err, `unknown storage type: "tape"`)
}
