package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/OCAP2/simbridge/pkg/core"
)

// GEO POINTS
// Stored geometry is always EPSG:3857 so SQLite, which has no spatial
// awareness, can still round-trip points through the WKB Scan path.
// The scene frame is a local tangent frame at the simulation origin:
// x east, y up, z north, in meters.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

var (
	toMercator   = wgs84.EPSG().Transform(4326, 3857)
	fromMercator = wgs84.EPSG().Transform(3857, 4326)
)

// ParseGeo parses "lat,lon" or "lat,lon,height" into a validated coordinate.
func ParseGeo(s string) (core.GeoCoordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.GeoCoordinate{}, ErrInvalidCoordinates
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.GeoCoordinate{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	g := core.GeoCoordinate{Latitude: vals[0], Longitude: vals[1], Height: vals[2]}
	if err := g.Validate(); err != nil {
		return core.GeoCoordinate{}, err
	}
	return g, nil
}

// Point3857 projects a geodetic coordinate to a web-mercator point, keeping
// the height as Z.
func Point3857(g core.GeoCoordinate) geom.Point {
	x, y, _ := toMercator(g.Longitude, g.Latitude, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    g.Height,
			Type: geom.DimXYZ,
		},
	)
}

// mercatorScale is the ground meters per projected meter at lat.
func mercatorScale(lat float64) float64 {
	return math.Cos(lat * math.Pi / 180)
}

// LocalOffset expresses p in the scene frame anchored at origin.
// Accurate to well under a meter within a few tens of kilometers.
func LocalOffset(origin, p core.GeoCoordinate) core.Vector3 {
	ox, oy, _ := toMercator(origin.Longitude, origin.Latitude, 0)
	px, py, _ := toMercator(p.Longitude, p.Latitude, 0)
	k := mercatorScale(origin.Latitude)
	return core.Vector3{
		X: (px - ox) * k,
		Y: p.Height - origin.Height,
		Z: (py - oy) * k,
	}
}

// FromLocal is the inverse of LocalOffset.
func FromLocal(origin core.GeoCoordinate, v core.Vector3) core.GeoCoordinate {
	ox, oy, _ := toMercator(origin.Longitude, origin.Latitude, 0)
	k := mercatorScale(origin.Latitude)
	lon, lat, _ := fromMercator(ox+v.X/k, oy+v.Z/k, 0)
	return core.GeoCoordinate{
		Latitude:  lat,
		Longitude: lon,
		Height:    origin.Height + v.Y,
	}
}

// FromState returns the geodetic position carried by an entity state.
func FromState(s core.EntityState) core.GeoCoordinate {
	return core.GeoCoordinate{Latitude: s.Latitude, Longitude: s.Longitude, Height: s.HeightM}
}
