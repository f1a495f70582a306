package kernel

import (
	"errors"
	"fmt"
	"sync"

	"omniversal/services/layers"
)

var (
	ErrLayerExists = errors.New("layer already registered")
	ErrLayerNil    = errors.New("layer is nil")
)

// Registry owns the ordered set of active layers for a run. It holds at most
// one layer per kind.
type Registry struct {
	mu     sync.RWMutex
	order  []layers.Layer
	byKind map[layers.Kind]layers.Layer
}

// NewRegistry creates an empty layer registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[layers.Kind]layers.Layer)}
}

// Register appends a layer, keeping declaration order.
func (r *Registry) Register(l layers.Layer) error {
	if l == nil {
		return ErrLayerNil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKind[l.Kind()]; ok {
		return fmt.Errorf("%w: %s", ErrLayerExists, l.Kind())
	}
	r.byKind[l.Kind()] = l
	r.order = append(r.order, l)
	return nil
}

// Resolve returns the layer registered for kind.
func (r *Registry) Resolve(kind layers.Kind) (layers.Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byKind[kind]
	return l, ok
}

// Layers returns the registered layers in declaration order.
func (r *Registry) Layers() []layers.Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]layers.Layer(nil), r.order...)
}

// Descriptors returns the descriptors of initialized layers in declaration
// order. The pointers are shared with the layers.
func (r *Registry) Descriptors() []*layers.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*layers.Descriptor, 0, len(r.order))
	for _, l := range r.order {
		if d := l.Descriptor(); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
