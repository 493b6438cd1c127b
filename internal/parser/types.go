package parser

import "github.com/OCAP2/simbridge/pkg/core"

// Spawn holds a transform-placed spawn. Anchor is the entity the transform
// is relative to, or the parent for attached spawns; empty for the scene frame.
type Spawn struct {
	Prefab    string
	Name      string
	Transform core.Transform
	Anchor    string
}

// SpawnGeo holds a geodetically placed spawn.
type SpawnGeo struct {
	Prefab string
	Name   string
	Geo    core.GeoCoordinate
}

// Move holds a position update expressed in RelativeTo's frame.
type Move struct {
	Name       string
	Position   core.Vector3
	RelativeTo string
}

// Freeze holds a clone request. A negative Lifetime is permanent.
type Freeze struct {
	Actor    string
	Clone    string
	Lifetime float64
}

// Trail holds a trail marker request.
type Trail struct {
	Actor    string
	Width    float64
	Start    core.Color
	End      core.Color
	Label    string
	Lifetime float64
}

// Axes holds a coordinate-frame marker request.
type Axes struct {
	Transform   core.Transform
	Width       float64
	Size        float64
	Label       string
	Parent      string
	Lifetime    float64
	RightHanded bool
}
