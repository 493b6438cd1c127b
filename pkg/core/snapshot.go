// pkg/core/snapshot.go
package core

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SimulationSnapshot is one timestamped set of entity states, the unit of
// telemetry transmission. Treat it as immutable once built.
type SimulationSnapshot struct {
	Timestamp float64                `json:"Timestamp"`
	Entities  map[string]EntityState `json:"Actors"`
}

// NewSnapshot builds a snapshot owning a copy of entities.
func NewSnapshot(timestamp float64, entities map[string]EntityState) SimulationSnapshot {
	cp := make(map[string]EntityState, len(entities))
	for k, v := range entities {
		cp[k] = v
	}
	return SimulationSnapshot{Timestamp: timestamp, Entities: cp}
}

// MarshalJSON always emits an Actors object, even for a nil map.
func (s SimulationSnapshot) MarshalJSON() ([]byte, error) {
	type wire SimulationSnapshot
	w := wire(s)
	if w.Entities == nil {
		w.Entities = map[string]EntityState{}
	}
	return json.Marshal(w)
}

// Validate checks every entity state for non-finite values.
func (s SimulationSnapshot) Validate() error {
	for _, name := range s.Names() {
		if err := s.Entities[name].Validate(); err != nil {
			return fmt.Errorf("entity %q: %w", name, err)
		}
	}
	return nil
}

// Names returns the entity names in sorted order.
func (s SimulationSnapshot) Names() []string {
	names := make([]string, 0, len(s.Entities))
	for k := range s.Entities {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
