// Package v1 is the version 1 recording export document: one JSON object per
// recording with the sampled path of every entity.
package v1

const Version = "1.0"

// Export is the root document.
type Export struct {
	Version   string   `json:"version"`
	Name      string   `json:"name"`
	Source    string   `json:"source,omitempty"`
	StartedAt string   `json:"startedAt"`
	EndedAt   string   `json:"endedAt"`
	StartTime float64  `json:"startTime"`
	EndTime   float64  `json:"endTime"`
	Frames    int      `json:"frames"`
	Entities  []Entity `json:"entities"`
}

// Entity is the sampled path of one entity. Each position is
// [simTime, latitude, longitude, heightM, rollRad, pitchRad, yawRad].
type Entity struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	FirstSeen float64      `json:"firstSeen"`
	LastSeen  float64      `json:"lastSeen"`
	Positions [][7]float64 `json:"positions"`
	Track     string       `json:"track,omitempty"` // EPSG:3857 WKT
}
