// pkg/core/entity.go
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPhysicsOutput is returned when a physics output used to build
// telemetry is not a finite number.
var ErrInvalidPhysicsOutput = errors.New("physics output is not a number")

// EntityRef identifies a remote object. Name is the identity key for every
// remote command; AssetPath only matters at spawn time.
type EntityRef struct {
	Name      string
	AssetPath string
}

// NewEntity creates an EntityRef.
func NewEntity(name, assetPath string) EntityRef {
	return EntityRef{Name: name, AssetPath: assetPath}
}

// Wire keys of the fixed EntityState fields.
const (
	KeyLatitude  = "Latitude"
	KeyLongitude = "Longitude"
	KeyAltitude  = "AltitudeMeters"
	KeyRoll      = "RollRad"
	KeyPitch     = "PitchRad"
	KeyYaw       = "YawRad"
)

var stateKeys = map[string]struct{}{
	KeyLatitude: {}, KeyLongitude: {}, KeyAltitude: {},
	KeyRoll: {}, KeyPitch: {}, KeyYaw: {},
}

// EntityState is the per-step telemetry of one entity. Additional carries
// caller-defined extra fields, encoded beside the fixed ones.
type EntityState struct {
	Latitude   float64
	Longitude  float64
	HeightM    float64
	RollRad    float64
	PitchRad   float64
	YawRad     float64
	Additional map[string]any
}

// Validate reports ErrInvalidPhysicsOutput if any fixed field, or any
// float value in Additional, is NaN or infinite.
func (s EntityState) Validate() error {
	fields := [...]struct {
		name string
		v    float64
	}{
		{KeyLatitude, s.Latitude},
		{KeyLongitude, s.Longitude},
		{KeyAltitude, s.HeightM},
		{KeyRoll, s.RollRad},
		{KeyPitch, s.PitchRad},
		{KeyYaw, s.YawRad},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidPhysicsOutput, f.name, f.v)
		}
	}
	for k, v := range s.Additional {
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case float32:
			f = float64(x)
		default:
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidPhysicsOutput, k, f)
		}
	}
	return nil
}

// MarshalJSON flattens Additional next to the fixed fields.
func (s EntityState) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Additional)+len(stateKeys))
	for k, v := range s.Additional {
		m[k] = v
	}
	m[KeyLatitude] = s.Latitude
	m[KeyLongitude] = s.Longitude
	m[KeyAltitude] = s.HeightM
	m[KeyRoll] = s.RollRad
	m[KeyPitch] = s.PitchRad
	m[KeyYaw] = s.YawRad
	return json.Marshal(m)
}

// UnmarshalJSON splits fixed fields from additional ones.
func (s *EntityState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out EntityState
	targets := map[string]*float64{
		KeyLatitude:  &out.Latitude,
		KeyLongitude: &out.Longitude,
		KeyAltitude:  &out.HeightM,
		KeyRoll:      &out.RollRad,
		KeyPitch:     &out.PitchRad,
		KeyYaw:       &out.YawRad,
	}
	for k, v := range raw {
		if dst, ok := targets[k]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("field %s: %w", k, err)
			}
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		if out.Additional == nil {
			out.Additional = make(map[string]any)
		}
		out.Additional[k] = val
	}
	*s = out
	return nil
}
