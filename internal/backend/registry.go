package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a backend, failing when the backend cannot exist
// in this build.
type Factory func() (Backend, error)

// Registry maps backend names to factories. NewRegistry seeds the
// always-present backends; the cluster entry depends on build tags.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("sequential", func() (Backend, error) { return Sequential{}, nil })
	r.Register("parallel", func() (Backend, error) { return Parallel{}, nil })
	r.Register("cluster", newClusterBackend)
	return r
}

// Register inserts or overwrites a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Resolve constructs the named backend. Unknown names fail with
// ErrUnknown and the sorted known names; a registered factory that
// cannot build (missing tag, missing runtime) fails with its own
// error, typically wrapping ErrUnavailable.
func (r *Registry) Resolve(name string) (Backend, error) {
	r.mu.RLock()
	f := r.factories[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknown, name, strings.Join(r.Known(), ", "))
	}
	b, err := f()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return b, nil
}

// Known returns all registered names sorted, buildable or not.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available filters Known down to backends that construct and pass
// their capability probe.
func (r *Registry) Available(ctx context.Context) []string {
	var names []string
	for _, name := range r.Known() {
		b, err := r.Resolve(name)
		if err != nil {
			continue
		}
		if p, ok := b.(Prober); ok {
			if err := p.Probe(ctx); err != nil {
				continue
			}
		}
		names = append(names, name)
	}
	return names
}
