package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every table migrated by the gorm storage backends.
var DatabaseModels = []any{
	&Recording{},
	&EntitySample{},
	&EntityTrack{},
}

// Recording is one telemetry recording session.
type Recording struct {
	gorm.Model
	Name      string       `json:"name" gorm:"size:127"`
	Source    string       `json:"source" gorm:"size:255"` // telemetry endpoint address
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   sql.NullTime `json:"endedAt"`
	Snapshots uint64       `json:"snapshots"`
}

func (*Recording) TableName() string {
	return "recordings"
}

// EntitySample is the state of one entity in one received snapshot.
type EntitySample struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"index:idx_entitysample_time"` // wall time the snapshot was received
	RecordingID uint      `json:"recordingId" gorm:"index:idx_entitysample_recording_id"`
	Recording   Recording `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RecordingID;"`
	Entity      string    `json:"entity" gorm:"size:128;index:idx_entitysample_entity"`
	SimTime     float64   `json:"simTime" gorm:"index:idx_entitysample_sim_time"`

	Position   geom.Point     `json:"position"` // EPSG:3857 with height as Z
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Height     float64        `json:"height"`
	Roll       float64        `json:"roll"`
	Pitch      float64        `json:"pitch"`
	Yaw        float64        `json:"yaw"`
	Additional datatypes.JSON `json:"additional"`
}

func (*EntitySample) TableName() string {
	return "entity_samples"
}

// EntityTrack is the whole path of one entity over a recording, written
// when the recording ends.
type EntityTrack struct {
	ID          uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	RecordingID uint            `json:"recordingId" gorm:"index:idx_entitytrack_recording_id"`
	Recording   Recording       `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RecordingID;"`
	Entity      string          `json:"entity" gorm:"size:128"`
	StartTime   float64         `json:"startTime"`
	EndTime     float64         `json:"endTime"`
	Points      int             `json:"points"`
	Path        geom.LineString `json:"path"`
}

func (*EntityTrack) TableName() string {
	return "entity_tracks"
}
