// Command telemetry-recorder subscribes to a telemetry publisher and
// records every frame to the configured storage backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/OCAP2/simbridge/internal/app"
	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/logging"
	"github.com/OCAP2/simbridge/internal/recorder"
	"github.com/OCAP2/simbridge/internal/storage"
	"github.com/OCAP2/simbridge/internal/telemetry"
)

func main() {
	fs := pflag.NewFlagSet("telemetry-recorder", pflag.ExitOnError)
	configDir := app.Flags(fs)
	name := fs.String("name", "", "recording name kept with the recording")
	_ = fs.Parse(os.Args[1:])

	rt := app.Start("telemetry-recorder", *configDir, nil)
	zlog := logging.NewZerolog(config.GetString("logLevel"), os.Stdout, rt.LogWriter())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := record(ctx, rt.Logger(), zlog, *name)
	stop()

	if err != nil {
		rt.Logger().Error("Recording failed", "error", err)
	}
	_ = rt.Close(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// record runs until ctx is done and then closes the recording.
func record(ctx context.Context, logger *slog.Logger, zlog zerolog.Logger, name string) error {
	scfg := config.GetStorageConfig()
	tcfg := config.GetTelemetryConfig()

	b, err := storage.NewBackend(scfg, zlog)
	if err != nil {
		return err
	}
	if err := b.Init(); err != nil {
		return fmt.Errorf("init %s storage: %w", scfg.Type, err)
	}
	zlog.Info().Str("type", scfg.Type).Msg("Storage backend initialized")

	sub := telemetry.NewSubscriber(telemetry.SubscriberConfig{
		Path:       tcfg.Path,
		BufferSize: tcfg.BufferSize,
		Timeout:    tcfg.Timeout,
		Backoff:    tcfg.Backoff,
	}, logger)
	if err := sub.Connect(tcfg.Address); err != nil {
		_ = b.Close()
		return err
	}
	sub.StartListening()
	defer sub.Close()

	r, err := recorder.New(sub, b, recorder.Options{
		Name:       name,
		Source:     tcfg.Address,
		Poll:       scfg.Poll,
		StatusFile: filepath.Join(config.GetString("logsDir"), "telemetry-recorder.status.json"),
	}, zlog)
	if err != nil {
		_ = b.Close()
		return err
	}

	r.Run(ctx)
	return r.Close()
}
