package cache

import (
	"sort"
	"sync"

	"github.com/OCAP2/simbridge/pkg/core"
)

// SpawnKind records how an entity was placed in the scene.
type SpawnKind string

const (
	SpawnTransform SpawnKind = "transform"
	SpawnGeo       SpawnKind = "geo"
	SpawnRelative  SpawnKind = "relative"
	SpawnAttached  SpawnKind = "attached"
	SpawnClone     SpawnKind = "clone"
)

// Spawned is an entity created through a scene context.
type Spawned struct {
	Entity core.EntityRef
	Kind   SpawnKind
	Parent string // reference entity for relative/attached/clone spawns
}

// EntityCache tracks the entities a scene context has spawned so they can be
// listed and cleaned up without asking the backend.
type EntityCache struct {
	m        sync.Mutex
	entities map[string]Spawned
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		entities: make(map[string]Spawned),
	}
}

func (c *EntityCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entities = make(map[string]Spawned)
}

func (c *EntityCache) Add(s Spawned) {
	c.m.Lock()
	defer c.m.Unlock()
	c.entities[s.Entity.Name] = s
}

func (c *EntityCache) Get(name string) (Spawned, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	s, ok := c.entities[name]
	return s, ok
}

// Remove drops name and every entity attached to it.
func (c *EntityCache) Remove(name string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.entities, name)
	for n, s := range c.entities {
		if s.Kind == SpawnAttached && s.Parent == name {
			delete(c.entities, n)
		}
	}
}

// Names returns the cached entity names, sorted.
func (c *EntityCache) Names() []string {
	c.m.Lock()
	defer c.m.Unlock()
	names := make([]string, 0, len(c.entities))
	for n := range c.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *EntityCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.entities)
}

// CloneRegistry hands out per-entity clone sequence numbers. Numbers start
// at 1 and are never reused, even after the entity is destroyed.
type CloneRegistry struct {
	mu     sync.Mutex
	counts map[string]*SafeCounter
}

func NewCloneRegistry() *CloneRegistry {
	return &CloneRegistry{counts: make(map[string]*SafeCounter)}
}

// Next returns the next clone number for name.
func (r *CloneRegistry) Next(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counts[name]
	if !ok {
		c = &SafeCounter{}
		r.counts[name] = c
	}
	c.Inc()
	return c.Value()
}

// Count returns how many clones of name have been issued.
func (r *CloneRegistry) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counts[name]; ok {
		return c.Value()
	}
	return 0
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
