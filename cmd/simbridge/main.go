// Command simbridge flies a scripted mission on the kinematic model,
// publishes telemetry and mirrors the aircraft in the render backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/OCAP2/simbridge/internal/app"
	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/internal/command"
	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/mission"
	"github.com/OCAP2/simbridge/internal/physics"
	"github.com/OCAP2/simbridge/internal/scene"
	"github.com/OCAP2/simbridge/internal/task"
	"github.com/OCAP2/simbridge/internal/telemetry"
	"github.com/OCAP2/simbridge/pkg/core"
)

const actorName = "main-aircraft"

func main() {
	fs := pflag.NewFlagSet("simbridge", pflag.ExitOnError)
	configDir := app.Flags(fs)
	headless := fs.Bool("headless", false, "publish telemetry without a render backend")
	_ = fs.Parse(os.Args[1:])

	run := mission.NewContext()
	rt := app.Start("simbridge", *configDir, run.LogAttrs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fly(ctx, rt.Logger(), run, *headless)
	stop()

	if err != nil {
		rt.Logger().Error("Mission failed", "error", err)
	}
	_ = rt.Close(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func fly(ctx context.Context, logger *slog.Logger, run *mission.Context, headless bool) error {
	tcfg := config.GetTelemetryConfig()
	mcfg := config.GetMissionConfig()

	pub := telemetry.NewPublisher(telemetry.PublisherConfig{Path: tcfg.Path, Pace: tcfg.Pace}, logger)
	if err := pub.Bind(tcfg.Address); err != nil {
		return err
	}
	defer pub.Close()

	kcfg := physics.DefaultKinematicConfig()
	kcfg.Latitude = mcfg.Origin.Latitude
	kcfg.Longitude = mcfg.Origin.Longitude
	kcfg.Altitude = mcfg.Origin.Height
	model := physics.NewKinematic(kcfg)

	if !headless {
		ch, err := dialBackend(logger)
		if err != nil {
			return err
		}
		defer ch.Close()

		sc := scene.New(ch,
			scene.WithLogger(logger),
			scene.WithCleanup(mcfg.Cleanup),
			scene.WithFreezeLifetime(mcfg.FreezeLifetime),
		)
		defer func() {
			if err := sc.Close(); err != nil {
				logger.Warn("Scene cleanup failed", "error", err)
			}
		}()
		if err := buildScene(logger, sc, mcfg); err != nil {
			return err
		}
	}

	script := mission.DefaultScriptConfig()
	script.Dt = mcfg.Dt
	root, err := mission.Script(model, script)
	if err != nil {
		return err
	}
	runner := mission.NewRunner(mission.Config{
		Name:     mcfg.Name,
		Dt:       mcfg.Dt,
		Realtime: mcfg.Realtime,
		MaxSteps: mcfg.MaxSteps,
	}, model, task.NewTree(root, logger), pub, run, logger)
	runner.AddSource(actorName, mission.ModelSource(model, mcfg.TerrainHeightM, physics.AirspeedMps, physics.GearPos))

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func dialBackend(logger *slog.Logger) (*command.Channel, error) {
	ccfg := config.GetCommandConfig()
	tr, err := command.Dial(ccfg.URL, logger)
	if err != nil {
		return nil, err
	}
	ch, err := command.New(tr, scene.Verbs(), codec.DefaultRegistry(), command.Config{Timeout: ccfg.Timeout}, logger)
	if err != nil {
		_ = tr.Close()
		return nil, fmt.Errorf("render backend %s: %w", ccfg.URL, err)
	}
	return ch, nil
}

// buildScene places the origin and the aircraft, then draws its axes and
// trail.
func buildScene(logger *slog.Logger, sc *scene.Context, mcfg config.MissionConfig) error {
	lib, err := sc.AssetsLibrary()
	if err != nil {
		return err
	}
	if !slices.Contains(lib, mcfg.Aircraft) {
		logger.Warn("Aircraft asset not in backend library", "asset", mcfg.Aircraft, "assets", len(lib))
	}

	if err := sc.SetOrigin(mcfg.Origin); err != nil {
		return err
	}
	if err := sc.SpawnByGeo(core.NewEntity(actorName, mcfg.Aircraft), mcfg.Origin); err != nil {
		return err
	}
	if _, err := sc.DrawAxes(core.Transform{}, 0.1, 10, actorName, -1, true); err != nil {
		return err
	}
	_, err = sc.DrawTrail(actorName, 0.5, core.Red, core.Blue, -1)
	return err
}
