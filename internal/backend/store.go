package backend

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/simbridge/internal/assets"
	"github.com/OCAP2/simbridge/internal/cache"
	"github.com/OCAP2/simbridge/internal/geo"
	"github.com/OCAP2/simbridge/pkg/core"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrEntityExists  = errors.New("entity already exists")
	ErrOrigin        = errors.New("the simulation origin cannot be spawned or destroyed")
)

// maxDepth bounds parent chains so a cycle cannot hang a lookup.
const maxDepth = 32

// Actor is one object in the scene. Local is relative to Parent when
// Parent is set, otherwise it is the scene-frame pose.
type Actor struct {
	Name    string
	Prefab  string
	Local   core.Transform
	Parent  string
	Clone   bool
	Expires time.Time // zero for permanent clones
}

// Store is the scene held by the reference backend. Positions are in the
// local frame anchored at the simulation origin: x east, y up, z north.
// Rotations are Euler degrees and compose additively down a parent chain.
type Store struct {
	mu      sync.Mutex
	actors  map[string]*Actor
	origin  core.GeoCoordinate
	catalog assets.Catalog
	markers *cache.MarkerCache
	now     func() time.Time
}

// NewStore creates a scene containing only the simulation origin.
func NewStore(catalog assets.Catalog, origin core.GeoCoordinate) *Store {
	return &Store{
		actors: map[string]*Actor{
			core.OriginEntity: {Name: core.OriginEntity},
		},
		origin:  origin,
		catalog: catalog,
		markers: cache.NewMarkerCache(),
		now:     time.Now,
	}
}

// Assets lists the prefabs that can be spawned.
func (s *Store) Assets() []string {
	return s.catalog.All()
}

// expire drops clones whose lifetime has elapsed. Callers hold s.mu.
func (s *Store) expire() {
	now := s.now()
	for name, a := range s.actors {
		if a.Clone && !a.Expires.IsZero() && now.After(a.Expires) {
			s.removeLocked(name)
		}
	}
}

func (s *Store) get(name string) (*Actor, error) {
	a, ok := s.actors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return a, nil
}

// world resolves the scene-frame pose of name. Callers hold s.mu.
func (s *Store) world(name string) (core.Transform, error) {
	var t core.Transform
	for depth := 0; name != ""; depth++ {
		if depth > maxDepth {
			return core.Transform{}, fmt.Errorf("parent chain of %s too deep", name)
		}
		a, err := s.get(name)
		if err != nil {
			return core.Transform{}, err
		}
		t.Position = t.Position.Add(a.Local.Position)
		t.Rotation = t.Rotation.Add(a.Local.Rotation)
		name = a.Parent
	}
	return t, nil
}

// setWorld places name at a scene-frame pose, converting to its parent's
// frame when attached. Callers hold s.mu.
func (s *Store) setWorld(a *Actor, t core.Transform) error {
	if a.Parent == "" {
		a.Local = t
		return nil
	}
	p, err := s.world(a.Parent)
	if err != nil {
		return err
	}
	a.Local = core.Transform{
		Position: t.Position.Sub(p.Position),
		Rotation: t.Rotation.Sub(p.Rotation),
	}
	return nil
}

func (s *Store) add(a *Actor) error {
	if a.Name == core.OriginEntity {
		return ErrOrigin
	}
	if _, ok := s.actors[a.Name]; ok {
		return fmt.Errorf("%w: %s", ErrEntityExists, a.Name)
	}
	if !a.Clone && !s.catalog.Contains(a.Prefab) {
		return fmt.Errorf("%w: %s", assets.ErrUnknownAsset, a.Prefab)
	}
	s.actors[a.Name] = a
	return nil
}

// Spawn places a new actor at t in the scene frame.
func (s *Store) Spawn(prefab, name string, t core.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	return s.add(&Actor{Name: name, Prefab: prefab, Local: t})
}

// SpawnGeo places a new actor at a geodetic position, unrotated.
func (s *Store) SpawnGeo(prefab, name string, g core.GeoCoordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	t := core.Transform{Position: geo.LocalOffset(s.origin, g)}
	return s.add(&Actor{Name: name, Prefab: prefab, Local: t})
}

// SpawnRelative places a new actor at t expressed in other's frame. The
// actor does not follow other afterwards.
func (s *Store) SpawnRelative(prefab, name string, t core.Transform, other string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	ref, err := s.world(other)
	if err != nil {
		return err
	}
	w := core.Transform{
		Position: ref.Position.Add(t.Position),
		Rotation: ref.Rotation.Add(t.Rotation),
	}
	return s.add(&Actor{Name: name, Prefab: prefab, Local: w})
}

// SpawnAttached places a new actor as a child of parent at local pose t.
func (s *Store) SpawnAttached(prefab, name string, t core.Transform, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	if _, err := s.get(parent); err != nil {
		return err
	}
	return s.add(&Actor{Name: name, Prefab: prefab, Local: t, Parent: parent})
}

// removeLocked deletes name and, recursively, everything attached to it.
func (s *Store) removeLocked(name string) {
	delete(s.actors, name)
	for n, a := range s.actors {
		if a.Parent == name {
			s.removeLocked(n)
		}
	}
}

// Destroy removes name and its attached children.
func (s *Store) Destroy(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == core.OriginEntity {
		return ErrOrigin
	}
	if _, err := s.get(name); err != nil {
		return err
	}
	s.removeLocked(name)
	return nil
}

// DestroyAll removes every actor except the origin.
func (s *Store) DestroyAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := range s.actors {
		if n != core.OriginEntity {
			delete(s.actors, n)
		}
	}
}

// Transform returns the scene-frame pose of name.
func (s *Store) Transform(name string) (core.Transform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	return s.world(name)
}

// SetTransform moves name to a scene-frame pose.
func (s *Store) SetTransform(name string, t core.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == core.OriginEntity {
		return ErrOrigin
	}
	a, err := s.get(name)
	if err != nil {
		return err
	}
	return s.setWorld(a, t)
}

// Position returns name's position relative to relativeTo, or in the scene
// frame when relativeTo is empty.
func (s *Store) Position(name, relativeTo string) (core.Vector3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	w, err := s.world(name)
	if err != nil {
		return core.Vector3{}, err
	}
	ref, err := s.world(relativeTo)
	if err != nil {
		return core.Vector3{}, err
	}
	return w.Position.Sub(ref.Position), nil
}

// SetPosition moves name to v expressed relative to relativeTo, keeping
// its rotation.
func (s *Store) SetPosition(name string, v core.Vector3, relativeTo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == core.OriginEntity {
		return ErrOrigin
	}
	a, err := s.get(name)
	if err != nil {
		return err
	}
	w, err := s.world(name)
	if err != nil {
		return err
	}
	ref, err := s.world(relativeTo)
	if err != nil {
		return err
	}
	w.Position = ref.Position.Add(v)
	return s.setWorld(a, w)
}

// Geo returns the geodetic position of name.
func (s *Store) Geo(name string) (core.GeoCoordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	if name == core.OriginEntity {
		return s.origin, nil
	}
	w, err := s.world(name)
	if err != nil {
		return core.GeoCoordinate{}, err
	}
	return geo.FromLocal(s.origin, w.Position), nil
}

// SetGeo moves name to a geodetic position. Setting the origin re-anchors
// the scene frame; other actors keep their local positions.
func (s *Store) SetGeo(name string, g core.GeoCoordinate) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == core.OriginEntity {
		s.origin = g
		return nil
	}
	a, err := s.get(name)
	if err != nil {
		return err
	}
	w, err := s.world(name)
	if err != nil {
		return err
	}
	w.Position = geo.LocalOffset(s.origin, g)
	return s.setWorld(a, w)
}

// Freeze leaves a static copy of actor at its current pose. A negative
// lifetime keeps the clone until destroyed.
func (s *Store) Freeze(actor, clone string, lifetime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	src, err := s.get(actor)
	if err != nil {
		return err
	}
	w, err := s.world(actor)
	if err != nil {
		return err
	}
	c := &Actor{Name: clone, Prefab: src.Prefab, Local: w, Clone: true}
	if lifetime >= 0 {
		c.Expires = s.now().Add(lifetime)
	}
	return s.add(c)
}

// AddMarker records a debug marker owned by an existing actor.
func (s *Store) AddMarker(label, owner string, lifetime time.Duration) error {
	s.mu.Lock()
	_, err := s.get(owner)
	now := s.now()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.markers.Set(cache.Marker{Label: label, Owner: owner, Lifetime: lifetime, Created: now})
	return nil
}

// DestroyMarkers removes every marker.
func (s *Store) DestroyMarkers() {
	s.markers.Reset()
}

// Markers lists the live marker labels.
func (s *Store) Markers() []string {
	return s.markers.Live(s.now())
}

// Names lists actor names, origin included, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	names := make([]string, 0, len(s.actors))
	for n := range s.actors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplySnapshot moves every known actor to its telemetry pose and returns
// how many were moved. Entities the scene does not contain are ignored.
func (s *Store) ApplySnapshot(snap core.SimulationSnapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, name := range snap.Names() {
		if name == core.OriginEntity {
			continue
		}
		a, ok := s.actors[name]
		if !ok {
			continue
		}
		st := snap.Entities[name]
		w := core.Transform{
			Position: geo.LocalOffset(s.origin, geo.FromState(st)),
			Rotation: core.Vector3{
				X: degrees(st.PitchRad),
				Y: degrees(st.YawRad),
				Z: degrees(st.RollRad),
			},
		}
		if err := s.setWorld(a, w); err != nil {
			continue
		}
		applied++
	}
	return applied
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
