package host

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/wippyai/wasm-launcher/errors"
	"github.com/wippyai/wasm-launcher/loader"
)

var (
	// ErrEmptyName is returned when a factory is registered without a name.
	ErrEmptyName = stderrors.New("host: empty module name")
	// ErrNilFactory is returned when a nil factory is registered.
	ErrNilFactory = stderrors.New("host: nil factory")
)

// Registry is a concurrency-safe name -> native module table.
type Registry struct {
	m     sync.Map // map[string]*loader.Module
	mu    sync.Mutex
	count int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds name to a factory. Each name can be bound once; a second
// registration fails with an identity conflict.
func (r *Registry) Register(name string, f loader.Factory) error {
	if name == "" {
		return ErrEmptyName
	}
	if f == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.m.Load(name); ok {
		return errors.New(errors.PhaseRegister, errors.KindIdentityConflict).
			Name(name).
			Detail("host module already registered").
			Build()
	}
	r.m.Store(name, loader.NewHostModule(name, f))
	r.count++
	return nil
}

// Provide registers a typed constructor under name.
func Provide[T any](r *Registry, name string, ctor func() (T, error)) error {
	if ctor == nil {
		return ErrNilFactory
	}
	return r.Register(name, func() (any, error) {
		return ctor()
	})
}

// MustProvide is Provide for package initialization; it panics on error.
func MustProvide[T any](r *Registry, name string, ctor func() (T, error)) {
	if err := Provide(r, name, ctor); err != nil {
		panic(err)
	}
}

// Resolve returns the module registered under name. Every call for the same
// name returns the same module.
func (r *Registry) Resolve(_ context.Context, name string) (*loader.Module, error) {
	if v, ok := r.m.Load(name); ok {
		return v.(*loader.Module), nil
	}
	return nil, errors.NotFound(errors.PhaseResolve, "host module", name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, r.count)
	r.mu.Unlock()
	r.m.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
