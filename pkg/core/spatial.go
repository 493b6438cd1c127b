// pkg/core/spatial.go
package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidGeoCoordinate is returned when latitude or longitude are out of range.
var ErrInvalidGeoCoordinate = errors.New("invalid geo coordinate")

// OriginEntity is the name of the always-present entity anchoring the
// backend's local Cartesian frame to geodetic coordinates.
const OriginEntity = "SimulationOrigin"

// Vector3 is a local Cartesian offset in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Transform is a position plus an orientation. Rotation holds Euler angles
// in degrees, the backend's convention.
type Transform struct {
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"`
}

// NewTransform builds a Transform from a position and Euler rotation in degrees.
func NewTransform(position, rotation Vector3) Transform {
	return Transform{Position: position, Rotation: rotation}
}

// Color is an RGBA color, nominally in [0,1]. Only used for debug overlays.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Common overlay colors.
var (
	Red   = Color{R: 1, A: 1}
	Blue  = Color{B: 1, A: 1}
	White = Color{R: 1, G: 1, B: 1, A: 1}
)

// GeoCoordinate is an absolute geodetic position.
// Height is meters above the WGS84 ellipsoid everywhere in simbridge.
type GeoCoordinate struct {
	Latitude  float64
	Longitude float64
	Height    float64
}

// geoWire mirrors the backend schema, whose field names differ from ours.
type geoWire struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Height    float64 `json:"Height"`
}

// MarshalJSON encodes the coordinate with the backend's field names.
func (g GeoCoordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoWire(g))
}

// UnmarshalJSON decodes the backend's field names.
func (g *GeoCoordinate) UnmarshalJSON(data []byte) error {
	var w geoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*g = GeoCoordinate(w)
	return nil
}

// Validate checks latitude and longitude ranges.
func (g GeoCoordinate) Validate() error {
	if g.Latitude < -90 || g.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of [-90,90]", ErrInvalidGeoCoordinate, g.Latitude)
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of [-180,180]", ErrInvalidGeoCoordinate, g.Longitude)
	}
	return nil
}
