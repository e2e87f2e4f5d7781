package pool

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps task kinds to the TaskFunc that implements them.
//
// Job descriptions carry a kind name instead of a code pointer; each
// dispatcher resolves the name against its registry before any worker
// starts. A Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]TaskFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]TaskFunc)}
}

// DefaultRegistry is used by dispatchers created without WithRegistry.
var DefaultRegistry = NewRegistry()

// Register adds fn under kind.
func (r *Registry) Register(kind string, fn TaskFunc) error {
	if kind == "" {
		return fmt.Errorf("register: empty task kind")
	}
	if fn == nil {
		return fmt.Errorf("register %q: nil task func", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.funcs[kind]; ok {
		return fmt.Errorf("register %q: %w", kind, ErrDuplicateKind)
	}
	r.funcs[kind] = fn
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(kind string, fn TaskFunc) {
	if err := r.Register(kind, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the func registered under kind.
func (r *Registry) Lookup(kind string) (TaskFunc, error) {
	r.mu.RLock()
	fn, ok := r.funcs[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return fn, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Register adds fn under kind in DefaultRegistry.
func Register(kind string, fn TaskFunc) error {
	return DefaultRegistry.Register(kind, fn)
}
