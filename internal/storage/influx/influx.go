// Package influxstorage records snapshots as InfluxDB points.
package influxstorage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/influx"
	"github.com/OCAP2/simbridge/pkg/core"
)

const connectTimeout = 10 * time.Second

type Backend struct {
	manager *influx.Manager
	now     func() time.Time
}

// New ignores cfg.Enabled: selecting this backend turns influx on.
func New(cfg config.InfluxConfig, log zerolog.Logger) *Backend {
	cfg.Enabled = true
	return &Backend{manager: influx.NewManager(cfg, log), now: time.Now}
}

func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return b.manager.Connect(ctx)
}

func (b *Backend) RecordSnapshot(snap *core.SimulationSnapshot) error {
	return b.manager.WriteSnapshot(*snap, b.now())
}

func (b *Backend) Close() error {
	return b.manager.Close()
}
