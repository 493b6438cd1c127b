package geo

import (
	"encoding/json"
	"fmt"
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/simbridge/pkg/core"
)

// Trajectory accumulates the geodetic track of one entity.
type Trajectory struct {
	mu     sync.Mutex
	Entity string
	points []core.GeoCoordinate
	times  []float64
}

func NewTrajectory(entity string) *Trajectory {
	return &Trajectory{Entity: entity}
}

// Append adds a sample at simulation time t. Samples at or before the last
// recorded time are ignored.
func (tr *Trajectory) Append(t float64, g core.GeoCoordinate) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if n := len(tr.times); n > 0 && t <= tr.times[n-1] {
		return false
	}
	tr.points = append(tr.points, g)
	tr.times = append(tr.times, t)
	return true
}

func (tr *Trajectory) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.points)
}

// Span returns the first and last sample times.
func (tr *Trajectory) Span() (start, end float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.times) == 0 {
		return 0, 0
	}
	return tr.times[0], tr.times[len(tr.times)-1]
}

// LineString returns the track projected to EPSG:3857 with height as Z.
// Tracks with fewer than two samples yield an empty line.
func (tr *Trajectory) LineString() geom.LineString {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if len(tr.points) < 2 {
		return geom.LineString{}
	}

	flatCoords := make([]float64, 0, len(tr.points)*3)
	for _, g := range tr.points {
		x, y, _ := toMercator(g.Longitude, g.Latitude, 0)
		flatCoords = append(flatCoords, x, y, g.Height)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXYZ)
	return geom.NewLineString(seq)
}

// ParsePolyline parses a JSON array of [lat,lon] or [lat,lon,height]
// triples into a trajectory with sample times 0,1,2,...
func ParsePolyline(entity, input string) (*Trajectory, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	tr := NewTrajectory(entity)
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		g := core.GeoCoordinate{Latitude: coord[0], Longitude: coord[1]}
		if len(coord) > 2 {
			g.Height = coord[2]
		}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		tr.Append(float64(i), g)
	}
	return tr, nil
}
