// Package scene wraps the command channel in typed scene operations:
// spawning and destroying entities, moving them, and drawing debug markers.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/simbridge/internal/cache"
	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/pkg/core"
)

// Caller issues a verb and returns its decoded reply.
// *command.Channel satisfies it.
type Caller interface {
	Call(verb string, args ...any) (any, error)
}

// Option configures a Context.
type Option func(*Context)

// WithCleanup controls whether Close destroys all actors and markers.
func WithCleanup(enabled bool) Option {
	return func(c *Context) { c.cleanup = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithClock replaces the wall clock used for marker labels.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.now = now }
}

// WithFreezeLifetime sets how long frozen clones stay in the scene.
// Negative keeps them until destroyed.
func WithFreezeLifetime(d time.Duration) Option {
	return func(c *Context) { c.freezeLifetime = d }
}

// Context is a session against one backend scene. It owns the clone
// counters and the record of what it spawned; both die with it.
type Context struct {
	caller         Caller
	logger         *slog.Logger
	cleanup        bool
	now            func() time.Time
	freezeLifetime time.Duration

	entities *cache.EntityCache
	markers  *cache.MarkerCache
	clones   *cache.CloneRegistry

	mu        sync.Mutex
	originSet bool
}

// New creates a scene context over caller.
func New(caller Caller, opts ...Option) *Context {
	c := &Context{
		caller:         caller,
		logger:         slog.Default(),
		cleanup:        true,
		now:            time.Now,
		freezeLifetime: -1,
		entities:       cache.NewEntityCache(),
		markers:        cache.NewMarkerCache(),
		clones:         cache.NewCloneRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "scene")
	return c
}

func callAs[T any](c *Context, verb string, args ...any) (T, error) {
	var zero T
	v, err := c.caller.Call(verb, args...)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &codec.FormatError{
			Type: codec.TypeOf[T]().String(),
			Err:  fmt.Errorf("%s replied with %T", verb, v),
		}
	}
	return typed, nil
}

func (c *Context) call(verb string, args ...any) error {
	_, err := c.caller.Call(verb, args...)
	return err
}

// seconds converts a lifetime to the backend's float seconds; negative
// lifetimes mean permanent.
func seconds(d time.Duration) float64 {
	if d < 0 {
		return -1
	}
	return d.Seconds()
}

// AssetsLibrary lists the prefab paths the backend can spawn.
func (c *Context) AssetsLibrary() ([]string, error) {
	return callAs[[]string](c, VerbAssetsLibrary)
}

// SpawnAt spawns entity at a transform in the scene frame.
func (c *Context) SpawnAt(entity core.EntityRef, t core.Transform) error {
	if err := c.call(VerbSpawnTransform, entity.AssetPath, entity.Name, t); err != nil {
		return err
	}
	c.entities.Add(cache.Spawned{Entity: entity, Kind: cache.SpawnTransform})
	return nil
}

// SpawnByGeo spawns entity at a geodetic position. The backend places it
// relative to the simulation origin, which must already be set.
func (c *Context) SpawnByGeo(entity core.EntityRef, geo core.GeoCoordinate) error {
	if err := geo.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	originSet := c.originSet
	c.mu.Unlock()
	if !originSet {
		c.logger.Warn("Spawning by geo coordinate before the origin was set", "entity", entity.Name)
	}

	if err := c.call(VerbSpawnGeo, entity.AssetPath, entity.Name, geo); err != nil {
		return err
	}
	c.entities.Add(cache.Spawned{Entity: entity, Kind: cache.SpawnGeo})
	return nil
}

// SpawnRelative spawns entity at t expressed in relativeTo's frame.
func (c *Context) SpawnRelative(entity core.EntityRef, t core.Transform, relativeTo string) error {
	if err := c.call(VerbSpawnRelative, entity.AssetPath, entity.Name, t, relativeTo); err != nil {
		return err
	}
	c.entities.Add(cache.Spawned{Entity: entity, Kind: cache.SpawnRelative, Parent: relativeTo})
	return nil
}

// SpawnAttached spawns entity as a child of parent; it follows the parent.
func (c *Context) SpawnAttached(entity core.EntityRef, t core.Transform, parent string) error {
	if err := c.call(VerbSpawnAttached, entity.AssetPath, entity.Name, t, parent); err != nil {
		return err
	}
	c.entities.Add(cache.Spawned{Entity: entity, Kind: cache.SpawnAttached, Parent: parent})
	return nil
}

// Destroy removes name and everything attached to it.
func (c *Context) Destroy(name string) error {
	if err := c.call(VerbDestroy, name); err != nil {
		return err
	}
	c.entities.Remove(name)
	return nil
}

// DestroyAll removes every actor except the origin.
func (c *Context) DestroyAll() error {
	if err := c.call(VerbDestroyAll); err != nil {
		return err
	}
	c.entities.Reset()
	return nil
}

// DestroyAllMarkers removes every trail and axes marker.
func (c *Context) DestroyAllMarkers() error {
	if err := c.call(VerbDestroyMarkers); err != nil {
		return err
	}
	c.markers.Reset()
	return nil
}

// Transform returns name's pose in the scene frame.
func (c *Context) Transform(name string) (core.Transform, error) {
	return callAs[core.Transform](c, VerbGetTransform, name)
}

// SetTransform moves name to t in the scene frame.
func (c *Context) SetTransform(name string, t core.Transform) error {
	return c.call(VerbSetTransform, name, t)
}

// Position returns name's position in relativeTo's frame, or the scene
// frame when relativeTo is empty.
func (c *Context) Position(name, relativeTo string) (core.Vector3, error) {
	return callAs[core.Vector3](c, VerbGetPosition, name, relativeTo)
}

// SetPosition moves name to v in relativeTo's frame, or the scene frame
// when relativeTo is empty.
func (c *Context) SetPosition(name string, v core.Vector3, relativeTo string) error {
	return c.call(VerbSetPosition, name, v, relativeTo)
}

// GeoCoordinate returns the geodetic position of name.
func (c *Context) GeoCoordinate(name string) (core.GeoCoordinate, error) {
	return callAs[core.GeoCoordinate](c, VerbGetGeo, name)
}

// SetGeoCoordinate moves name to geo. Invalid coordinates are rejected
// before anything is sent.
func (c *Context) SetGeoCoordinate(name string, geo core.GeoCoordinate) error {
	if err := geo.Validate(); err != nil {
		return err
	}
	return c.call(VerbSetGeo, name, geo)
}

// Origin returns the geodetic position of the scene origin.
func (c *Context) Origin() (core.GeoCoordinate, error) {
	return c.GeoCoordinate(core.OriginEntity)
}

// SetOrigin anchors the scene frame at geo.
func (c *Context) SetOrigin(geo core.GeoCoordinate) error {
	if err := c.SetGeoCoordinate(core.OriginEntity, geo); err != nil {
		return err
	}
	c.mu.Lock()
	c.originSet = true
	c.mu.Unlock()
	return nil
}

// Freeze leaves a static copy of name at its current pose and returns the
// clone's name, "{name}.clone[{n}]".
func (c *Context) Freeze(name string) (string, error) {
	clone := fmt.Sprintf("%s.clone[%d]", name, c.clones.Next(name))
	if err := c.call(VerbFreeze, name, clone, seconds(c.freezeLifetime)); err != nil {
		return "", err
	}
	parent, _ := c.entities.Get(name)
	c.entities.Add(cache.Spawned{
		Entity: core.NewEntity(clone, parent.Entity.AssetPath),
		Kind:   cache.SpawnClone,
		Parent: name,
	})
	return clone, nil
}

// DrawTrail attaches a fading trail to name and returns its label.
func (c *Context) DrawTrail(name string, width float64, start, end core.Color, lifetime time.Duration) (string, error) {
	now := c.now()
	label := fmt.Sprintf("%s.trajectory[%d]", name, now.UnixNano())
	if err := c.call(VerbDrawTrail, name, width, start, end, label, seconds(lifetime)); err != nil {
		return "", err
	}
	c.markers.Set(cache.Marker{Label: label, Owner: name, Lifetime: lifetime, Created: now})
	return label, nil
}

// DrawAxes draws a coordinate frame at t under parent and returns its label.
func (c *Context) DrawAxes(t core.Transform, width, size float64, parent string, lifetime time.Duration, rightHanded bool) (string, error) {
	now := c.now()
	label := fmt.Sprintf("%s.axes.%d", parent, now.UnixNano())
	if err := c.call(VerbDrawAxes, t, width, size, label, parent, seconds(lifetime), rightHanded); err != nil {
		return "", err
	}
	c.markers.Set(cache.Marker{Label: label, Owner: parent, Lifetime: lifetime, Created: now})
	return label, nil
}

// Entities lists what this context has spawned and not destroyed.
func (c *Context) Entities() []string {
	return c.entities.Names()
}

// Markers lists labels of markers drawn by this context that have not expired.
func (c *Context) Markers() []string {
	return c.markers.Live(c.now())
}

// Close removes everything from the scene when cleanup is enabled.
func (c *Context) Close() error {
	if !c.cleanup {
		return nil
	}
	return errors.Join(c.DestroyAll(), c.DestroyAllMarkers())
}
