// Package backend is a reference implementation of the visualization
// backend: it serves the scene verbs over WebSocket against an in-memory
// scene and moves actors from telemetry. It exists for local runs and
// end-to-end tests; a real renderer replaces it in production.
package backend

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/internal/dispatcher"
	intotel "github.com/OCAP2/simbridge/internal/otel"
	"github.com/OCAP2/simbridge/internal/parser"
	"github.com/OCAP2/simbridge/internal/scene"
	"github.com/OCAP2/simbridge/internal/telemetry"
	"github.com/OCAP2/simbridge/pkg/core"
)

const instrumentationName = "github.com/OCAP2/simbridge/internal/backend"

// ApplySnapshotCommand is the internal command that moves actors from a
// telemetry frame. Its single argument is the frame's codec text.
const ApplySnapshotCommand = "ApplySnapshot"

// Service routes scene verbs to a Store.
type Service struct {
	store  *Store
	parser *parser.Parser
	logger *slog.Logger

	applied metric.Int64Counter
}

// NewService creates a service over store.
func NewService(store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "backend")
	return &Service{
		store:   store,
		parser:  parser.NewParser(logger),
		logger:  logger,
		applied: intotel.Counter(instrumentationName, "backend.snapshots.applied", "Telemetry frames applied to the scene"),
	}
}

// Store returns the scene the service operates on.
func (s *Service) Store() *Store { return s.store }

// RegisterHandlers registers every scene verb with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(scene.VerbCheckConnection, s.handleCheckConnection)
	d.Register(scene.VerbAssetsLibrary, s.handleAssetsLibrary)

	// Scene mutations - sync, the client waits for the reply
	d.Register(scene.VerbSpawnTransform, s.handleSpawn, dispatcher.Logged())
	d.Register(scene.VerbSpawnRelative, s.handleSpawnAnchored(s.store.SpawnRelative), dispatcher.Logged())
	d.Register(scene.VerbSpawnAttached, s.handleSpawnAnchored(s.store.SpawnAttached), dispatcher.Logged())
	d.Register(scene.VerbSpawnGeo, s.handleSpawnGeo, dispatcher.Logged())
	d.Register(scene.VerbDestroy, s.handleDestroy, dispatcher.Logged())
	d.Register(scene.VerbDestroyAll, s.handleDestroyAll, dispatcher.Logged())
	d.Register(scene.VerbDestroyMarkers, s.handleDestroyMarkers, dispatcher.Logged())
	d.Register(scene.VerbFreeze, s.handleFreeze, dispatcher.Logged())

	d.Register(scene.VerbGetTransform, s.handleGetTransform)
	d.Register(scene.VerbSetTransform, s.handleSetTransform)
	d.Register(scene.VerbGetPosition, s.handleGetPosition)
	d.Register(scene.VerbSetPosition, s.handleSetPosition)
	d.Register(scene.VerbGetGeo, s.handleGetGeo)
	d.Register(scene.VerbSetGeo, s.handleSetGeo)

	d.Register(scene.VerbDrawTrail, s.handleDrawTrail, dispatcher.Logged())
	d.Register(scene.VerbDrawAxes, s.handleDrawAxes, dispatcher.Logged())

	// Telemetry - buffered, frames arrive faster than anyone needs to wait
	d.Register(ApplySnapshotCommand, s.handleApplySnapshot, dispatcher.Buffered(64))
}

// lifetime converts backend float seconds; negative is permanent.
func lifetime(sec float64) time.Duration {
	if sec < 0 {
		return -1
	}
	return time.Duration(sec * float64(time.Second))
}

func (s *Service) handleCheckConnection(e dispatcher.Event) (any, error) {
	return nil, nil
}

func (s *Service) handleAssetsLibrary(e dispatcher.Event) (any, error) {
	return s.store.Assets(), nil
}

func (s *Service) handleSpawn(e dispatcher.Event) (any, error) {
	req, err := s.parser.ParseSpawn(e.Args, false)
	if err != nil {
		return nil, err
	}
	if err := s.store.Spawn(req.Prefab, req.Name, req.Transform); err != nil {
		return nil, err
	}
	s.logger.Info("Spawned actor", "name", req.Name, "prefab", req.Prefab)
	return nil, nil
}

func (s *Service) handleSpawnAnchored(spawn func(prefab, name string, t core.Transform, anchor string) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		req, err := s.parser.ParseSpawn(e.Args, true)
		if err != nil {
			return nil, err
		}
		if err := spawn(req.Prefab, req.Name, req.Transform, req.Anchor); err != nil {
			return nil, err
		}
		s.logger.Info("Spawned actor", "name", req.Name, "prefab", req.Prefab, "anchor", req.Anchor, "command", e.Command)
		return nil, nil
	}
}

func (s *Service) handleSpawnGeo(e dispatcher.Event) (any, error) {
	req, err := s.parser.ParseSpawnGeo(e.Args)
	if err != nil {
		return nil, err
	}
	if err := s.store.SpawnGeo(req.Prefab, req.Name, req.Geo); err != nil {
		return nil, err
	}
	s.logger.Info("Spawned actor", "name", req.Name, "prefab", req.Prefab, "geo", req.Geo)
	return nil, nil
}

func (s *Service) handleDestroy(e dispatcher.Event) (any, error) {
	name, err := s.parser.ParseName(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, s.store.Destroy(name)
}

func (s *Service) handleDestroyAll(e dispatcher.Event) (any, error) {
	s.store.DestroyAll()
	return nil, nil
}

func (s *Service) handleDestroyMarkers(e dispatcher.Event) (any, error) {
	s.store.DestroyMarkers()
	return nil, nil
}

func (s *Service) handleFreeze(e dispatcher.Event) (any, error) {
	req, err := s.parser.ParseFreeze(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, s.store.Freeze(req.Actor, req.Clone, lifetime(req.Lifetime))
}

func (s *Service) handleGetTransform(e dispatcher.Event) (any, error) {
	name, err := s.parser.ParseName(e.Args)
	if err != nil {
		return nil, err
	}
	return s.store.Transform(name)
}

func (s *Service) handleSetTransform(e dispatcher.Event) (any, error) {
	name, t, err := s.parser.ParseSetTransform(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, s.store.SetTransform(name, t)
}

func (s *Service) handleGetPosition(e dispatcher.Event) (any, error) {
	name, rel, err := s.parser.ParseGetPosition(e.Args)
	if err != nil {
		return nil, err
	}
	return s.store.Position(name, rel)
}

func (s *Service) handleSetPosition(e dispatcher.Event) (any, error) {
	m, err := s.parser.ParseSetPosition(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, s.store.SetPosition(m.Name, m.Position, m.RelativeTo)
}

func (s *Service) handleGetGeo(e dispatcher.Event) (any, error) {
	name, err := s.parser.ParseName(e.Args)
	if err != nil {
		return nil, err
	}
	return s.store.Geo(name)
}

func (s *Service) handleSetGeo(e dispatcher.Event) (any, error) {
	name, g, err := s.parser.ParseSetGeo(e.Args)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetGeo(name, g); err != nil {
		return nil, err
	}
	if name == core.OriginEntity {
		s.logger.Info("Simulation origin set", "geo", g)
	}
	return nil, nil
}

func (s *Service) handleDrawTrail(e dispatcher.Event) (any, error) {
	tr, err := s.parser.ParseTrail(e.Args)
	if err != nil {
		return nil, err
	}
	return nil, s.store.AddMarker(tr.Label, tr.Actor, lifetime(tr.Lifetime))
}

func (s *Service) handleDrawAxes(e dispatcher.Event) (any, error) {
	a, err := s.parser.ParseAxes(e.Args)
	if err != nil {
		return nil, err
	}
	owner := a.Parent
	if owner == "" {
		owner = core.OriginEntity
	}
	return nil, s.store.AddMarker(a.Label, owner, lifetime(a.Lifetime))
}

func (s *Service) handleApplySnapshot(e dispatcher.Event) (any, error) {
	snap, err := s.parser.ParseSnapshot(e.Args)
	if err != nil {
		return nil, err
	}
	n := s.store.ApplySnapshot(snap)
	s.applied.Add(context.Background(), 1)
	return n, nil
}

// Follow feeds telemetry frames from sub into the dispatcher until ctx is
// done. Only the newest frame is applied each poll; older ones are stale.
func Follow(ctx context.Context, sub *telemetry.Subscriber, d *dispatcher.Dispatcher, poll time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	last := -1.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// The first frame taken is the newest; the rest of the buffer is stale.
		newest := true
		for sub.IsDataAvailable() {
			snap, err := sub.TakeNext()
			if err != nil {
				break
			}
			if !newest || snap.Timestamp == last {
				newest = false
				continue
			}
			newest = false
			last = snap.Timestamp

			text, err := codec.EncodeString(snap)
			if err != nil {
				logger.Warn("Could not re-encode telemetry frame", "error", err)
				continue
			}
			if _, err := d.Dispatch(dispatcher.Event{Command: ApplySnapshotCommand, Args: []string{text}}); err != nil {
				logger.Debug("Telemetry frame not applied", "timestamp", snap.Timestamp, "error", err)
			}
		}
	}
}
