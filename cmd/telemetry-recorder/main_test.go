package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/storage/jsonl"
	"github.com/OCAP2/simbridge/internal/telemetry"
	"github.com/OCAP2/simbridge/pkg/core"
)

func TestRecord_JSONL(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	dir := t.TempDir()

	pub := telemetry.NewPublisher(telemetry.PublisherConfig{}, nil)
	require.NoError(t, pub.Bind("127.0.0.1:0"))
	t.Cleanup(func() { _ = pub.Close() })

	viper.Set("logsDir", filepath.Join(dir, "logs"))
	viper.Set("telemetry.address", pub.Addr())
	viper.Set("telemetry.backoff", 20*time.Millisecond)
	viper.Set("storage.type", "jsonl")
	viper.Set("storage.poll", 5*time.Millisecond)
	viper.Set("storage.jsonl.outputDir", filepath.Join(dir, "rec"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- record(ctx, slog.Default(), zerolog.Nop(), "unit") }()

	require.Eventually(t, func() bool { return pub.Subscribers() == 1 }, 3*time.Second, 10*time.Millisecond)
	for i := 1; i <= 5; i++ {
		require.NoError(t, pub.Publish(core.NewSnapshot(float64(i), map[string]core.EntityState{
			"lead": {Latitude: 52, Longitude: 4, HeightM: float64(100 * i)},
		})))
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("record did not return")
	}

	recs, err := jsonl.ReadDir(filepath.Join(dir, "rec"))
	require.NoError(t, err)

	var snaps, tracks int
	for _, r := range recs {
		if r.Snapshot != nil {
			snaps++
		}
		if r.Track != nil {
			tracks++
		}
	}
	require.Greater(t, snaps, 1)
	assert.LessOrEqual(t, snaps, 5)
	assert.Equal(t, 1, tracks)
	assert.FileExists(t, filepath.Join(dir, "logs", "telemetry-recorder.status.json"))
}

func TestRecord_UnknownStorage(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("storage.type", "tape")
	assert.ErrorContains(t, record(context.Background(), slog.Default(), zerolog.Nop(), ""), "unknown storage type")
}
