package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/OCAP2/simbridge/pkg/core"
)

// ErrNoDecoder is returned when a registry has no decoder for a type.
var ErrNoDecoder = errors.New("no decoder registered")

// DecoderFunc turns reply text into a value of the registered type.
type DecoderFunc func(data []byte) (any, error)

// Registry maps reply types to decoders. Each consumer owns its instance;
// two command channels can carry different decoders for the same type.
type Registry struct {
	mu       sync.RWMutex
	decoders map[reflect.Type]DecoderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[reflect.Type]DecoderFunc)}
}

// DefaultRegistry creates a registry holding decoders for every core value type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	Register(r, Decode[core.Vector3])
	Register(r, Decode[core.Transform])
	Register(r, Decode[core.Color])
	Register(r, Decode[core.GeoCoordinate])
	Register(r, Decode[core.EntityState])
	Register(r, Decode[core.SimulationSnapshot])
	Register(r, Decode[[]string])
	return r
}

// Register installs fn as the decoder for T, replacing any previous one.
func Register[T any](r *Registry, fn func([]byte) (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[TypeOf[T]()] = func(data []byte) (any, error) {
		return fn(data)
	}
}

// Has reports whether a decoder exists for t.
func (r *Registry) Has(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[t]
	return ok
}

// Decode runs the decoder registered for t.
func (r *Registry) Decode(t reflect.Type, data []byte) (any, error) {
	r.mu.RLock()
	fn, ok := r.decoders[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, t)
	}
	return fn(data)
}
