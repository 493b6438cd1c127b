// Package parser converts the string arguments of backend verbs into typed
// requests. Structured arguments arrive as codec text and are decoded with
// schema validation.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/pkg/core"
)

// ErrArgCount is returned when a verb receives the wrong number of arguments.
var ErrArgCount = errors.New("wrong argument count")

// Parser provides pure []string -> request conversion.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger uses slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func argc(data []string, want int) error {
	if len(data) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrArgCount, len(data), want)
	}
	return nil
}

func parseFloat(s, field string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %w", field, err)
	}
	return f, nil
}

func parseBool(s, field string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("error parsing %s: %w", field, err)
	}
	return b, nil
}

func decodeArg[T any](s, field string) (T, error) {
	v, err := codec.Decode[T]([]byte(s))
	if err != nil {
		return v, fmt.Errorf("error parsing %s: %w", field, err)
	}
	return v, nil
}

// ParseName returns the single entity name argument.
func (p *Parser) ParseName(data []string) (string, error) {
	if err := argc(data, 1); err != nil {
		return "", err
	}
	if data[0] == "" {
		return "", errors.New("empty entity name")
	}
	return data[0], nil
}

// ParseSpawn parses prefab, name, transform and, when anchored, the anchor name.
func (p *Parser) ParseSpawn(data []string, anchored bool) (Spawn, error) {
	var s Spawn
	want := 3
	if anchored {
		want = 4
	}
	if err := argc(data, want); err != nil {
		return s, err
	}

	s.Prefab = data[0]
	s.Name = data[1]
	if s.Name == "" {
		return s, errors.New("empty entity name")
	}

	t, err := decodeArg[core.Transform](data[2], "transform")
	if err != nil {
		return s, err
	}
	s.Transform = t

	if anchored {
		s.Anchor = data[3]
	}
	return s, nil
}

// ParseSpawnGeo parses prefab, name and geo coordinate.
func (p *Parser) ParseSpawnGeo(data []string) (SpawnGeo, error) {
	var s SpawnGeo
	if err := argc(data, 3); err != nil {
		return s, err
	}
	s.Prefab = data[0]
	s.Name = data[1]
	if s.Name == "" {
		return s, errors.New("empty entity name")
	}

	g, err := decodeArg[core.GeoCoordinate](data[2], "geo coordinate")
	if err != nil {
		return s, err
	}
	if err := g.Validate(); err != nil {
		return s, err
	}
	s.Geo = g
	return s, nil
}

// ParseSetTransform parses name and transform.
func (p *Parser) ParseSetTransform(data []string) (string, core.Transform, error) {
	if err := argc(data, 2); err != nil {
		return "", core.Transform{}, err
	}
	t, err := decodeArg[core.Transform](data[1], "transform")
	return data[0], t, err
}

// ParseGetPosition parses name and the frame to express it in.
func (p *Parser) ParseGetPosition(data []string) (name, relativeTo string, err error) {
	if err := argc(data, 2); err != nil {
		return "", "", err
	}
	return data[0], data[1], nil
}

// ParseSetPosition parses name, position and relativeTo.
func (p *Parser) ParseSetPosition(data []string) (Move, error) {
	var m Move
	if err := argc(data, 3); err != nil {
		return m, err
	}
	m.Name = data[0]
	v, err := decodeArg[core.Vector3](data[1], "position")
	if err != nil {
		return m, err
	}
	m.Position = v
	m.RelativeTo = data[2]
	return m, nil
}

// ParseSetGeo parses name and geo coordinate.
func (p *Parser) ParseSetGeo(data []string) (string, core.GeoCoordinate, error) {
	if err := argc(data, 2); err != nil {
		return "", core.GeoCoordinate{}, err
	}
	g, err := decodeArg[core.GeoCoordinate](data[1], "geo coordinate")
	if err != nil {
		return "", g, err
	}
	if err := g.Validate(); err != nil {
		return "", g, err
	}
	return data[0], g, nil
}

// ParseFreeze parses actor, clone name and lifetime.
func (p *Parser) ParseFreeze(data []string) (Freeze, error) {
	var f Freeze
	if err := argc(data, 3); err != nil {
		return f, err
	}
	f.Actor = data[0]
	f.Clone = data[1]
	if f.Clone == "" {
		return f, errors.New("empty clone name")
	}
	lt, err := parseFloat(data[2], "lifetime")
	if err != nil {
		return f, err
	}
	f.Lifetime = lt
	return f, nil
}

// ParseTrail parses actor, width, start color, end color, label and lifetime.
func (p *Parser) ParseTrail(data []string) (Trail, error) {
	var tr Trail
	if err := argc(data, 6); err != nil {
		return tr, err
	}
	tr.Actor = data[0]

	width, err := parseFloat(data[1], "width")
	if err != nil {
		return tr, err
	}
	tr.Width = width

	if tr.Start, err = decodeArg[core.Color](data[2], "start color"); err != nil {
		return tr, err
	}
	if tr.End, err = decodeArg[core.Color](data[3], "end color"); err != nil {
		return tr, err
	}

	tr.Label = data[4]

	if tr.Lifetime, err = parseFloat(data[5], "lifetime"); err != nil {
		return tr, err
	}
	return tr, nil
}

// ParseAxes parses transform, width, size, label, parent, lifetime and handedness.
func (p *Parser) ParseAxes(data []string) (Axes, error) {
	var a Axes
	if err := argc(data, 7); err != nil {
		return a, err
	}

	var err error
	if a.Transform, err = decodeArg[core.Transform](data[0], "transform"); err != nil {
		return a, err
	}
	if a.Width, err = parseFloat(data[1], "width"); err != nil {
		return a, err
	}
	if a.Size, err = parseFloat(data[2], "size"); err != nil {
		return a, err
	}
	a.Label = data[3]
	a.Parent = data[4]
	if a.Lifetime, err = parseFloat(data[5], "lifetime"); err != nil {
		return a, err
	}
	if a.RightHanded, err = parseBool(data[6], "rightHanded"); err != nil {
		return a, err
	}
	return a, nil
}

// ParseSnapshot decodes a telemetry frame carried as one argument.
func (p *Parser) ParseSnapshot(data []string) (core.SimulationSnapshot, error) {
	if err := argc(data, 1); err != nil {
		return core.SimulationSnapshot{}, err
	}
	snap, err := decodeArg[core.SimulationSnapshot](data[0], "snapshot")
	if err != nil {
		return snap, err
	}
	if err := snap.Validate(); err != nil {
		p.logger.Debug("Rejected snapshot", "timestamp", snap.Timestamp, "error", err)
		return snap, err
	}
	return snap, nil
}
