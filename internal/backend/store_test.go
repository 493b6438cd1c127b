package backend

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/simbridge/internal/assets"
	"github.com/OCAP2/simbridge/pkg/core"
)

var testOrigin = core.GeoCoordinate{Latitude: 52, Longitude: 4, Height: 0}

func at(x, y, z float64) core.Transform {
	return core.Transform{Position: core.Vector3{X: x, Y: y, Z: z}}
}

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s := NewStore(assets.Default(), testOrigin)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_StartsWithOrigin(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, []string{core.OriginEntity}, s.Names())

	g, err := s.Geo(core.OriginEntity)
	require.NoError(t, err)
	assert.Equal(t, testOrigin, g)

	assert.ErrorIs(t, s.Destroy(core.OriginEntity), ErrOrigin)
	assert.ErrorIs(t, s.Spawn(assets.F16, core.OriginEntity, at(0, 0, 0)), ErrOrigin)
}

func TestStore_SpawnValidation(t *testing.T) {
	s, _ := newTestStore(t)

	assert.ErrorIs(t, s.Spawn("Assets/Airplanes/Concorde", "a", at(0, 0, 0)), assets.ErrUnknownAsset)

	require.NoError(t, s.Spawn(assets.F16, "lead", at(0, 0, 0)))
	assert.ErrorIs(t, s.Spawn(assets.F16, "lead", at(0, 0, 0)), ErrEntityExists)

	assert.ErrorIs(t, s.SpawnAttached(assets.F16, "wing", at(0, 0, 0), "ghost"), ErrUnknownEntity)
	assert.ErrorIs(t, s.SpawnRelative(assets.F16, "wing", at(0, 0, 0), "ghost"), ErrUnknownEntity)
}

func TestStore_AttachedFollowsParent(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Spawn(assets.F16, "lead", at(10, 0, 0)))
	require.NoError(t, s.SpawnAttached(assets.F16, "pod", at(1, -1, 0), "lead"))
	require.NoError(t, s.SpawnRelative(assets.F16, "chase", at(0, 0, -50), "lead"))

	tr, err := s.Transform("pod")
	require.NoError(t, err)
	assert.Equal(t, core.Vector3{X: 11, Y: -1}, tr.Position)

	require.NoError(t, s.SetPosition("lead", core.Vector3{X: 20}, ""))

	tr, err = s.Transform("pod")
	require.NoError(t, err)
	assert.Equal(t, core.Vector3{X: 21, Y: -1}, tr.Position, "attached actors follow")

	tr, err = s.Transform("chase")
	require.NoError(t, err)
	assert.Equal(t, core.Vector3{X: 10, Z: -50}, tr.Position, "relative spawns do not")

	rel, err := s.Position("chase", "lead")
	require.NoError(t, err)
	assert.Equal(t, core.Vector3{X: -10, Z: -50}, rel)
}

func TestStore_SetTransformOnAttached(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Spawn(assets.F16, "lead", at(10, 0, 0)))
	require.NoError(t, s.SpawnAttached(assets.F16, "pod", at(1, 0, 0), "lead"))

	require.NoError(t, s.SetTransform("pod", at(5, 5, 5)))
	tr, err := s.Transform("pod")
	require.NoError(t, err)
	assert.Equal(t, core.Vector3{X: 5, Y: 5, Z: 5}, tr.Position)

	require.NoError(t, s.SetPosition("lead", core.Vector3{X: 15}, ""))
	tr, err = s.Transform("pod")
	require.NoError(t, err)
	assert.Equal(t, core.Vector3{X: 10, Y: 5, Z: 5}, tr.Position)
}

func TestStore_DestroyCascades(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Spawn(assets.F16, "lead", at(0, 0, 0)))
	require.NoError(t, s.SpawnAttached(assets.F16, "pod", at(0, 0, 0), "lead"))
	require.NoError(t, s.SpawnAttached(assets.F16, "light", at(0, 0, 0), "pod"))
	require.NoError(t, s.Spawn(assets.C172, "other", at(0, 0, 0)))

	require.NoError(t, s.Destroy("lead"))
	assert.Equal(t, []string{core.OriginEntity, "other"}, s.Names())

	assert.ErrorIs(t, s.Destroy("lead"), ErrUnknownEntity)

	s.DestroyAll()
	assert.Equal(t, []string{core.OriginEntity}, s.Names())
}

func TestStore_GeoRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	target := core.GeoCoordinate{Latitude: 52.01, Longitude: 4.02, Height: 300}
	require.NoError(t, s.SpawnGeo(assets.C172, "cessna", target))

	tr, err := s.Transform("cessna")
	require.NoError(t, err)
	assert.InDelta(t, 300, tr.Position.Y, 1e-9)
	assert.Greater(t, tr.Position.X, 0.0, "east of origin")
	assert.Greater(t, tr.Position.Z, 0.0, "north of origin")

	g, err := s.Geo("cessna")
	require.NoError(t, err)
	assert.InDelta(t, target.Latitude, g.Latitude, 1e-7)
	assert.InDelta(t, target.Longitude, g.Longitude, 1e-7)
	assert.InDelta(t, target.Height, g.Height, 1e-9)

	require.NoError(t, s.SetGeo("cessna", testOrigin))
	tr, err = s.Transform("cessna")
	require.NoError(t, err)
	assert.InDelta(t, 0, tr.Position.X, 1e-6)
	assert.InDelta(t, 0, tr.Position.Z, 1e-6)

	assert.Error(t, s.SetGeo("cessna", core.GeoCoordinate{Latitude: 91}))
}

func TestStore_SetOriginKeepsLocalPositions(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Spawn(assets.F16, "lead", at(100, 0, 0)))
	newOrigin := core.GeoCoordinate{Latitude: -22.95, Longitude: -43.21, Height: 1000}
	require.NoError(t, s.SetGeo(core.OriginEntity, newOrigin))

	tr, err := s.Transform("lead")
	require.NoError(t, err)
	assert.Equal(t, 100.0, tr.Position.X)

	g, err := s.Geo("lead")
	require.NoError(t, err)
	assert.InDelta(t, -22.95, g.Latitude, 1e-3)
	assert.InDelta(t, 1000, g.Height, 1e-9)
}

func TestStore_FreezeLifetime(t *testing.T) {
	s, now := newTestStore(t)

	require.NoError(t, s.Spawn(assets.F16, "lead", at(5, 0, 0)))
	require.NoError(t, s.Freeze("lead", "lead.clone[1]", 10*time.Second))
	require.NoError(t, s.Freeze("lead", "lead.clone[2]", -1))

	require.NoError(t, s.SetPosition("lead", core.Vector3{X: 50}, ""))
	tr, err := s.Transform("lead.clone[1]")
	require.NoError(t, err)
	assert.Equal(t, 5.0, tr.Position.X, "clones stay where they were frozen")

	assert.ErrorIs(t, s.Freeze("lead", "lead.clone[1]", -1), ErrEntityExists)

	*now = now.Add(11 * time.Second)
	assert.Equal(t, []string{core.OriginEntity, "lead", "lead.clone[2]"}, s.Names())
}

func TestStore_Markers(t *testing.T) {
	s, now := newTestStore(t)

	require.NoError(t, s.Spawn(assets.F16, "lead", at(0, 0, 0)))
	require.NoError(t, s.AddMarker("lead.trajectory[1]", "lead", 5*time.Second))
	require.NoError(t, s.AddMarker("lead.axes.1", "lead", -1))
	assert.ErrorIs(t, s.AddMarker("x", "ghost", -1), ErrUnknownEntity)

	assert.Equal(t, []string{"lead.axes.1", "lead.trajectory[1]"}, s.Markers())

	*now = now.Add(6 * time.Second)
	assert.Equal(t, []string{"lead.axes.1"}, s.Markers())

	s.DestroyMarkers()
	assert.Empty(t, s.Markers())
}

func TestStore_ApplySnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Spawn(assets.F16, "lead", at(0, 0, 0)))

	snap := core.NewSnapshot(1, map[string]core.EntityState{
		"lead":    {Latitude: 52, Longitude: 4, HeightM: 1200, YawRad: math.Pi / 2, PitchRad: 0.1},
		"unknown": {Latitude: 52, Longitude: 4},
	})
	assert.Equal(t, 1, s.ApplySnapshot(snap))

	tr, err := s.Transform("lead")
	require.NoError(t, err)
	assert.InDelta(t, 1200, tr.Position.Y, 1e-9)
	assert.InDelta(t, 0, tr.Position.X, 1e-9)
	assert.InDelta(t, 90, tr.Rotation.Y, 1e-9)
	assert.InDelta(t, 0.1*180/math.Pi, tr.Rotation.X, 1e-9)
	assert.NotContains(t, s.Names(), "unknown")
}
