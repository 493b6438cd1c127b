// Package convert maps telemetry types onto database rows and back.
package convert

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/internal/model"
	"github.com/OCAP2/simbridge/pkg/core"
)

// SnapshotToSamples returns one row per entity, in name order.
func SnapshotToSamples(snap core.SimulationSnapshot, recordingID uint, received time.Time) []model.EntitySample {
	names := snap.Names()
	out := make([]model.EntitySample, 0, len(names))
	for _, name := range names {
		out = append(out, StateToSample(name, snap.Entities[name], snap.Timestamp, recordingID, received))
	}
	return out
}

// StateToSample converts one entity state.
func StateToSample(entity string, s core.EntityState, simTime float64, recordingID uint, received time.Time) model.EntitySample {
	return model.EntitySample{
		Time:        received,
		RecordingID: recordingID,
		Entity:      entity,
		SimTime:     simTime,
		Position:    geo.Point3857(geo.FromState(s)),
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		Height:      s.HeightM,
		Roll:        s.RollRad,
		Pitch:       s.PitchRad,
		Yaw:         s.YawRad,
		Additional:  additionalToJSON(s.Additional),
	}
}

// SampleToState rebuilds the entity state a row was made from.
func SampleToState(m model.EntitySample) core.EntityState {
	s := core.EntityState{
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		HeightM:   m.Height,
		RollRad:   m.Roll,
		PitchRad:  m.Pitch,
		YawRad:    m.Yaw,
	}
	if len(m.Additional) > 0 {
		var extra map[string]any
		if err := json.Unmarshal(m.Additional, &extra); err == nil && len(extra) > 0 {
			s.Additional = extra
		}
	}
	return s
}

// TrackToModel converts an accumulated trajectory.
func TrackToModel(tr *geo.Trajectory, recordingID uint) model.EntityTrack {
	start, end := tr.Span()
	return model.EntityTrack{
		RecordingID: recordingID,
		Entity:      tr.Entity,
		StartTime:   start,
		EndTime:     end,
		Points:      tr.Len(),
		Path:        tr.LineString(),
	}
}

func additionalToJSON(extra map[string]any) datatypes.JSON {
	if len(extra) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}
