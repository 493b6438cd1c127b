package cache

import (
	"sort"
	"sync"
	"time"
)

// Marker is a debug drawing (trail or axes) placed in the scene.
type Marker struct {
	Label    string
	Owner    string        // entity the marker follows or is parented to
	Lifetime time.Duration // zero or negative means until destroyed
	Created  time.Time
}

// Expired reports whether the backend will have removed the marker by now.
func (m Marker) Expired(now time.Time) bool {
	return m.Lifetime > 0 && now.After(m.Created.Add(m.Lifetime))
}

// MarkerCache maps marker labels to the markers drawn in the current scene
type MarkerCache struct {
	mu      sync.RWMutex
	markers map[string]Marker
}

// NewMarkerCache creates a new MarkerCache
func NewMarkerCache() *MarkerCache {
	return &MarkerCache{
		markers: make(map[string]Marker),
	}
}

// Get retrieves a marker by label
func (c *MarkerCache) Get(label string) (Marker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markers[label]
	return m, ok
}

// Set stores a marker under its label
func (c *MarkerCache) Set(m Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[m.Label] = m
}

// Delete removes a marker by label
func (c *MarkerCache) Delete(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, label)
}

// Live returns the labels of markers not yet expired at now, sorted.
func (c *MarkerCache) Live(now time.Time) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	labels := make([]string, 0, len(c.markers))
	for l, m := range c.markers {
		if !m.Expired(now) {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)
	return labels
}

// Reset clears all markers from the cache
func (c *MarkerCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = make(map[string]Marker)
}
