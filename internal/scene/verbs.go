package scene

import (
	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/internal/command"
	"github.com/OCAP2/simbridge/pkg/core"
)

// Verb names understood by the visualization backend.
const (
	VerbAssetsLibrary   = "GetAssetsLibrary"
	VerbSpawnTransform  = "SpawnGameObjectUsingTransform"
	VerbSpawnGeo        = "SpawnGameObjectUsingGeoCoordinate"
	VerbSpawnRelative   = "SpawnGameObjectRelativeToOther"
	VerbSpawnAttached   = "SpawnGameObjectAttachedToParent"
	VerbDestroy         = "DestroyActor"
	VerbDestroyAll      = "DestroyAllActors"
	VerbDestroyMarkers  = "DestroyAllMarkers"
	VerbGetTransform    = "GetTransform"
	VerbSetTransform    = "SetTransform"
	VerbGetPosition     = "GetPosition"
	VerbSetPosition     = "SetPosition"
	VerbGetGeo          = "GetGeoCoordinate"
	VerbSetGeo          = "SetGeoCoordinate"
	VerbFreeze          = "FreezeActor"
	VerbDrawTrail       = "DrawActorTrail"
	VerbDrawAxes        = "DrawAxes"
	VerbCheckConnection = command.CheckConnection
)

// Verbs returns the backend verb table.
func Verbs() *command.Table {
	s, f, b, v := command.String, command.Float, command.Bool, command.Value
	return command.NewTable(
		command.Verb{Name: VerbAssetsLibrary, Reply: codec.TypeOf[[]string]()},
		// prefab, name, transform
		command.Verb{Name: VerbSpawnTransform, Args: []command.ArgKind{s, s, v}},
		// prefab, name, geo
		command.Verb{Name: VerbSpawnGeo, Args: []command.ArgKind{s, s, v}},
		// prefab, name, transform, other
		command.Verb{Name: VerbSpawnRelative, Args: []command.ArgKind{s, s, v, s}},
		// prefab, name, transform, parent
		command.Verb{Name: VerbSpawnAttached, Args: []command.ArgKind{s, s, v, s}},
		command.Verb{Name: VerbDestroy, Args: []command.ArgKind{s}},
		command.Verb{Name: VerbDestroyAll},
		command.Verb{Name: VerbDestroyMarkers},
		command.Verb{Name: VerbGetTransform, Args: []command.ArgKind{s}, Reply: codec.TypeOf[core.Transform]()},
		command.Verb{Name: VerbSetTransform, Args: []command.ArgKind{s, v}},
		// name, relativeTo
		command.Verb{Name: VerbGetPosition, Args: []command.ArgKind{s, s}, Reply: codec.TypeOf[core.Vector3]()},
		// name, position, relativeTo
		command.Verb{Name: VerbSetPosition, Args: []command.ArgKind{s, v, s}},
		command.Verb{Name: VerbGetGeo, Args: []command.ArgKind{s}, Reply: codec.TypeOf[core.GeoCoordinate]()},
		command.Verb{Name: VerbSetGeo, Args: []command.ArgKind{s, v}},
		// actor, clone, lifetime
		command.Verb{Name: VerbFreeze, Args: []command.ArgKind{s, s, f}},
		// actor, width, start, end, label, lifetime
		command.Verb{Name: VerbDrawTrail, Args: []command.ArgKind{s, f, v, v, s, f}},
		// transform, width, size, label, parent, lifetime, rightHanded
		command.Verb{Name: VerbDrawAxes, Args: []command.ArgKind{v, f, f, s, s, f, b}},
	)
}
