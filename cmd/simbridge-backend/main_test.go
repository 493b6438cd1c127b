package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/simbridge/internal/assets"
	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/internal/command"
	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/scene"
	"github.com/OCAP2/simbridge/internal/telemetry"
	"github.com/OCAP2/simbridge/pkg/core"
	"github.com/OCAP2/simbridge/pkg/streaming"
)

func TestServe_FollowsTelemetry(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	pub := telemetry.NewPublisher(telemetry.PublisherConfig{}, nil)
	require.NoError(t, pub.Bind("127.0.0.1:0"))
	t.Cleanup(func() { _ = pub.Close() })

	viper.Set("backend.address", "127.0.0.1:0")
	viper.Set("backend.poll", 10*time.Millisecond)
	viper.Set("telemetry.address", pub.Addr())
	viper.Set("telemetry.backoff", 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, slog.Default(), func(addr string) { addrCh <- addr }) }()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("serve: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("backend did not start")
	}

	tr, err := command.Dial("ws://"+addr+streaming.CommandPath, nil)
	require.NoError(t, err)
	ch, err := command.New(tr, scene.Verbs(), codec.DefaultRegistry(), command.Config{Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	sc := scene.New(ch)
	require.NoError(t, sc.SetOrigin(core.GeoCoordinate{Latitude: 52, Longitude: 4}))
	require.NoError(t, sc.SpawnByGeo(core.NewEntity("lead", assets.F16), core.GeoCoordinate{Latitude: 52, Longitude: 4}))

	require.Eventually(t, func() bool { return pub.Subscribers() == 1 }, 3*time.Second, 10*time.Millisecond)
	ts := 0.0
	require.Eventually(t, func() bool {
		ts++
		_ = pub.Publish(core.NewSnapshot(ts, map[string]core.EntityState{
			"lead": {Latitude: 52, Longitude: 4, HeightM: 900},
		}))
		pos, err := sc.Position("lead", "")
		return err == nil && pos.Y == 900
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServe_BadAssetsFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("backend.assetsFile", "/nonexistent/catalog.yaml")
	assert.Error(t, serve(context.Background(), slog.Default(), nil))
}
