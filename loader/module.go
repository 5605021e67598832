package loader

import (
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-launcher/errors"
)

// Factory constructs a native module's value with no external arguments.
type Factory func() (any, error)

// Provenance records where a module's bytes came from.
type Provenance struct {
	// Origin is the directory or archive the bytes were read from.
	Origin string
	// Path is the resource path within Origin.
	Path      string
	Namespace string
	Signers   []string
	Sealed    bool
}

// Module is an established module identity. Resolving the same name again
// returns the same *Module.
type Module struct {
	Compiled   wazero.CompiledModule
	factory    Factory
	Name       string
	Code       []byte
	Provenance Provenance
}

// NewHostModule creates a native module backed by a factory. Host modules
// are served by a Parent and never pass through the pipeline.
func NewHostModule(name string, f Factory) *Module {
	return &Module{Name: name, factory: f}
}

// IsHost reports whether the module is native rather than compiled.
func (m *Module) IsHost() bool {
	return m.factory != nil
}

// Instantiate constructs a new value from a host module. Compiled modules
// are not constructible and return a plugin construction error, as does a
// factory that fails or panics.
func (m *Module) Instantiate() (v any, err error) {
	if m.factory == nil {
		return nil, errors.PluginConstruction(m.Name, fmt.Errorf("module is not constructible"))
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, errors.PluginConstruction(m.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	v, err = m.factory()
	if err != nil {
		return nil, errors.PluginConstruction(m.Name, err)
	}
	if v == nil {
		return nil, errors.PluginConstruction(m.Name, fmt.Errorf("factory returned nil"))
	}
	return v, nil
}
