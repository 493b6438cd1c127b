// Command simbridge-backend serves the reference render backend and moves
// its actors from live telemetry.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/OCAP2/simbridge/internal/app"
	"github.com/OCAP2/simbridge/internal/assets"
	"github.com/OCAP2/simbridge/internal/backend"
	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/telemetry"
)

func main() {
	fs := pflag.NewFlagSet("simbridge-backend", pflag.ExitOnError)
	configDir := app.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	rt := app.Start("simbridge-backend", *configDir, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := serve(ctx, rt.Logger(), nil)
	stop()

	if err != nil {
		rt.Logger().Error("Backend failed", "error", err)
	}
	_ = rt.Close(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// serve runs until ctx is done. ready, when set, receives the bound
// command address.
func serve(ctx context.Context, logger *slog.Logger, ready func(addr string)) error {
	bcfg := config.GetBackendConfig()
	tcfg := config.GetTelemetryConfig()

	catalog, err := assets.Load(bcfg.AssetsFile)
	if err != nil {
		return err
	}
	store := backend.NewStore(catalog, bcfg.Origin)

	srv, err := backend.Listen(bcfg.Address, backend.NewService(store, logger), logger)
	if err != nil {
		return err
	}
	defer srv.Close()
	logger.Info("Backend listening", "address", srv.Addr(), "assets", len(catalog.All()))

	sub := telemetry.NewSubscriber(telemetry.SubscriberConfig{
		Path:       tcfg.Path,
		BufferSize: tcfg.BufferSize,
		Timeout:    tcfg.Timeout,
		Backoff:    tcfg.Backoff,
	}, logger)
	if err := sub.Connect(tcfg.Address); err != nil {
		return err
	}
	sub.StartListening()
	defer sub.Close()

	if ready != nil {
		ready(srv.Addr())
	}
	backend.Follow(ctx, sub, srv.Dispatcher(), bcfg.Poll, logger)
	return nil
}
