package transform

// Stage rewrites the bytes of one module. name is the internal name used to
// fetch the bytes, transformedName is the name the module will be defined
// under. code may be nil; returning nil means no data.
type Stage interface {
	Transform(name, transformedName string, code []byte) []byte
}

// StageFunc adapts a function to Stage.
type StageFunc func(name, transformedName string, code []byte) []byte

func (f StageFunc) Transform(name, transformedName string, code []byte) []byte {
	return f(name, transformedName, code)
}

// Virtualizer translates between a module's public and internal names.
// Unmap and Remap are expected to be inverses for any given name.
type Virtualizer interface {
	// Unmap returns the internal name bytes are fetched under.
	Unmap(name string) string
	// Remap returns the final name the module is defined under.
	Remap(name string) string
}

// VirtualizingStage is a stage that also virtualizes names.
type VirtualizingStage interface {
	Stage
	Virtualizer
}

// Kind tags a plugin with the capabilities it offers.
type Kind uint8

const (
	KindTransformer Kind = iota
	KindVirtualizingTransformer
)

func (k Kind) String() string {
	switch k {
	case KindTransformer:
		return "transformer"
	case KindVirtualizingTransformer:
		return "virtualizing-transformer"
	default:
		return "unknown"
	}
}

// Plugin is a constructed transformer ready for registration.
// Build one with Transformer or VirtualizingTransformer.
type Plugin struct {
	stage       Stage
	virtualizer Virtualizer
	name        string
	kind        Kind
}

// Transformer wraps a plain stage.
func Transformer(name string, s Stage) Plugin {
	return Plugin{name: name, kind: KindTransformer, stage: s}
}

// VirtualizingTransformer wraps a stage that also virtualizes names.
func VirtualizingTransformer(name string, s VirtualizingStage) Plugin {
	return Plugin{name: name, kind: KindVirtualizingTransformer, stage: s, virtualizer: s}
}

func (p Plugin) Name() string { return p.name }
func (p Plugin) Kind() Kind   { return p.kind }
func (p Plugin) Stage() Stage { return p.stage }

// Virtualizer returns the plugin's virtualizer, or nil for plain transformers.
func (p Plugin) Virtualizer() Virtualizer { return p.virtualizer }

// identity is the Virtualizer used when no plugin provides one.
type identity struct{}

func (identity) Unmap(name string) string { return name }
func (identity) Remap(name string) string { return name }

// Identity returns a Virtualizer that leaves names unchanged.
func Identity() Virtualizer { return identity{} }
