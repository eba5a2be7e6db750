package api

import (
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Registry holds the descriptors known to a client. Descriptors are
// registered once at process start; lookups after that are read-only and
// safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[schema.GroupVersionResource]ResourceDescriptor
}

func NewRegistry() *Registry {
	return &Registry{descriptors: map[schema.GroupVersionResource]ResourceDescriptor{}}
}

// Register adds a descriptor. It fails on duplicate registration and on
// descriptors whose capabilities advertise a subresource that is not present
// in the descriptor's subresource table.
func (r *Registry) Register(d ResourceDescriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	gvr := d.GroupVersionResource()
	if _, ok := r.descriptors[gvr]; ok {
		return fmt.Errorf("descriptor for %s already registered", gvr)
	}
	r.descriptors[gvr] = d
	return nil
}

// MustRegister is Register for static catalogs assembled at init time.
func (r *Registry) MustRegister(descs ...ResourceDescriptor) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the descriptor for the given group/version/plural.
func (r *Registry) Lookup(gvr schema.GroupVersionResource) (ResourceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[gvr]
	return d, ok
}

// LookupKind finds a descriptor by its kind, scanning the registry. Intended
// for interactive tooling; performance-sensitive callers should keep the
// descriptor they registered.
func (r *Registry) LookupKind(gvk schema.GroupVersionKind) (ResourceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.descriptors {
		if d.Group == gvk.Group && d.Version == gvk.Version && d.Kind == gvk.Kind {
			return d, true
		}
	}
	return ResourceDescriptor{}, false
}

// Descriptors returns a snapshot of all registered descriptors.
func (r *Registry) Descriptors() []ResourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}
