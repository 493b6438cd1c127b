// Package storage records telemetry snapshots to a pluggable backend.
package storage

import (
	"time"

	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/pkg/core"
)

// Backend is implemented by every recording backend.
type Backend interface {
	Init() error
	Close() error

	// RecordSnapshot stores one received snapshot. Backends must not keep
	// the pointer past the call.
	RecordSnapshot(snap *core.SimulationSnapshot) error
}

// RecordingStarter is implemented by backends that keep per-recording
// metadata.
type RecordingStarter interface {
	StartRecording(name, source string, started time.Time) error
}

// TrackRecorder is implemented by backends that store whole entity paths
// when a recording ends.
type TrackRecorder interface {
	RecordTrack(tr *geo.Trajectory) error
}
