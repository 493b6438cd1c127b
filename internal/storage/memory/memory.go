// Package memory keeps a recording in memory and exports it as one JSON
// document when the recording closes.
package memory

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/pkg/core"
)

type Backend struct {
	cfg config.MemoryConfig
	log zerolog.Logger
	now func() time.Time

	mu         sync.RWMutex
	name       string
	source     string
	startedAt  time.Time
	snapshots  []core.SimulationSnapshot
	tracks     map[string]*geo.Trajectory
	exportPath string
	closed     bool
}

func New(cfg config.MemoryConfig, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		name:   "recording",
		tracks: make(map[string]*geo.Trajectory),
	}
}

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startedAt.IsZero() {
		b.startedAt = b.now()
	}
	return nil
}

func (b *Backend) StartRecording(name, source string, started time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
	b.source = source
	b.startedAt = started
	return nil
}

func (b *Backend) RecordSnapshot(snap *core.SimulationSnapshot) error {
	cp := core.NewSnapshot(snap.Timestamp, snap.Entities)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, cp)
	return nil
}

func (b *Backend) RecordTrack(tr *geo.Trajectory) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tracks[tr.Entity] = tr
	return nil
}

// Snapshots returns the recorded snapshots in arrival order.
func (b *Backend) Snapshots() []core.SimulationSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.SimulationSnapshot(nil), b.snapshots...)
}

// ExportPath is the file written at Close, empty before then or when no
// output directory is configured.
func (b *Backend) ExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportPath
}

// Close exports the recording once.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.cfg.OutputDir == "" {
		return nil
	}

	path, err := b.exportLocked(b.now())
	if err != nil {
		return err
	}
	b.exportPath = path
	b.log.Info().Str("path", path).Int("frames", len(b.snapshots)).Msg("Recording exported")
	return nil
}
