package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/database"
	"github.com/OCAP2/simbridge/internal/model"
	gormstorage "github.com/OCAP2/simbridge/internal/storage/gorm"
	"github.com/OCAP2/simbridge/pkg/core"
)

// countSamples returns -1 while the file is missing or being replaced.
func countSamples(path string) int64 {
	if _, err := os.Stat(path); err != nil {
		return -1
	}
	m := database.NewManager(zerolog.Nop())
	if err := m.OpenSqlite(path); err != nil {
		return -1
	}
	defer m.Close()
	var n int64
	if err := m.DB.Model(&model.EntitySample{}).Count(&n).Error; err != nil {
		return -1
	}
	return n
}

func TestInMemoryDumpsAtClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "telemetry.db")
	b := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: time.Hour}, gormstorage.Options{FlushInterval: time.Hour}, zerolog.Nop())
	require.NoError(t, b.Init())
	assert.True(t, b.Database().InMemory)

	require.NoError(t, b.StartRecording("dump", "", time.Now()))
	snap := core.NewSnapshot(1, map[string]core.EntityState{"lead": {Latitude: 52, Longitude: 4}})
	require.NoError(t, b.RecordSnapshot(&snap))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.Equal(t, int64(1), countSamples(dump))
}

func TestPeriodicDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "telemetry.db")
	b := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: 20 * time.Millisecond}, gormstorage.Options{FlushInterval: 5 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	snap := core.NewSnapshot(1, map[string]core.EntityState{"lead": {Latitude: 52, Longitude: 4}})
	require.NoError(t, b.RecordSnapshot(&snap))

	require.Eventually(t, func() bool {
		return countSamples(dump) == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "direct.db")
	b := New(config.SQLiteConfig{Path: path, DumpPath: filepath.Join(t.TempDir(), "unused.db")}, gormstorage.Options{}, zerolog.Nop())
	require.NoError(t, b.Init())
	assert.False(t, b.Database().InMemory)

	snap := core.NewSnapshot(1, map[string]core.EntityState{"lead": {}, "wing": {}})
	require.NoError(t, b.RecordSnapshot(&snap))
	require.NoError(t, b.Close())

	assert.Equal(t, int64(2), countSamples(path))
}
