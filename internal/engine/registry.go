package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handle is a reference-counted engine owned by a Registry.
type Handle struct {
	key      string
	engine   Engine
	refs     int
	disposed bool
}

// Key returns the project key the handle was acquired under.
func (h *Handle) Key() string { return h.key }

// Engine returns the engine, or ErrDisposed once the last reference is gone.
func (h *Handle) Engine() (Engine, error) {
	if h == nil || h.disposed {
		return nil, ErrDisposed
	}
	return h.engine, nil
}

// Registry maps project keys to engines. It replaces process-wide engine
// state: whoever creates the registry owns every engine in it.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	handles map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, handles: make(map[string]*Handle)}
}

// Acquire returns the engine for key, creating it on first use. Each call
// must be paired with Dispose.
func (r *Registry) Acquire(key string, host Host, opts Options) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok {
		h.refs++
		return h, nil
	}
	if r.factory == nil {
		return nil, fmt.Errorf("engine registry: no factory for %q", key)
	}
	eng, err := r.factory(key, host, opts)
	if err != nil {
		return nil, fmt.Errorf("create engine for %q: %w", key, err)
	}
	h := &Handle{key: key, engine: eng, refs: 1}
	r.handles[key] = h
	return h, nil
}

// Get returns the live handle for key without taking a reference.
func (r *Registry) Get(key string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	return h, ok
}

// Dispose drops one reference; the last one closes the engine.
func (r *Registry) Dispose(key string) error {
	r.mu.Lock()
	h, ok := r.handles[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	h.refs--
	if h.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.handles, key)
	h.disposed = true
	r.mu.Unlock()
	return h.engine.Close()
}

// Keys lists live project keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close disposes every engine regardless of reference counts.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	var errs []error
	for _, h := range handles {
		h.disposed = true
		if err := h.engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
