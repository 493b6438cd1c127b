package v1

import (
	"sort"
	"time"

	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/pkg/core"
)

// RecordingData is everything a recording kept in memory.
type RecordingData struct {
	Name      string
	Source    string
	StartedAt time.Time
	EndedAt   time.Time
	Snapshots []core.SimulationSnapshot
	Tracks    map[string]*geo.Trajectory
}

// Build assembles the export. Entities are numbered in name order.
func Build(data RecordingData) Export {
	out := Export{
		Version:   Version,
		Name:      data.Name,
		Source:    data.Source,
		StartedAt: data.StartedAt.UTC().Format(time.RFC3339Nano),
		EndedAt:   data.EndedAt.UTC().Format(time.RFC3339Nano),
		Frames:    len(data.Snapshots),
		Entities:  []Entity{},
	}
	if n := len(data.Snapshots); n > 0 {
		out.StartTime = data.Snapshots[0].Timestamp
		out.EndTime = data.Snapshots[n-1].Timestamp
	}

	byName := map[string]*Entity{}
	for _, snap := range data.Snapshots {
		for _, name := range snap.Names() {
			s := snap.Entities[name]
			e, ok := byName[name]
			if !ok {
				e = &Entity{Name: name, FirstSeen: snap.Timestamp}
				byName[name] = e
			}
			e.LastSeen = snap.Timestamp
			e.Positions = append(e.Positions, [7]float64{
				snap.Timestamp, s.Latitude, s.Longitude, s.HeightM, s.RollRad, s.PitchRad, s.YawRad,
			})
		}
	}
	for name, tr := range data.Tracks {
		e, ok := byName[name]
		if !ok || tr.Len() < 2 {
			continue
		}
		e.Track = tr.LineString().AsText()
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		e := byName[name]
		e.ID = i
		out.Entities = append(out.Entities, *e)
	}
	return out
}
