package plugins

import (
	"strings"

	"github.com/wippyai/wasm-launcher/transform"
	"github.com/wippyai/wasm-launcher/wasm"
)

// StampSection is the custom section Stamp appends.
const StampSection = "launcher.transformed"

// NewStamp returns a transformer that records the final module name in a
// custom section. Absent input and non-module data pass through unchanged.
func NewStamp() transform.Plugin {
	return transform.Transformer(StampName, transform.StageFunc(
		func(_, transformedName string, code []byte) []byte {
			if code == nil || !wasm.IsModule(code) {
				return code
			}
			return wasm.AppendCustomSection(code, StampSection, []byte(transformedName))
		}))
}

// Remap is a virtualizer backed by a public -> internal name table.
type Remap struct {
	toInternal map[string]string
	toPublic   map[string]string
}

// NewRemap returns a virtualizing transformer for table. Its stage leaves
// bytes untouched.
func NewRemap(table map[string]string) transform.Plugin {
	r := &Remap{
		toInternal: make(map[string]string, len(table)),
		toPublic:   make(map[string]string, len(table)),
	}
	for public, internal := range table {
		r.toInternal[public] = internal
		r.toPublic[internal] = public
	}
	return transform.VirtualizingTransformer(RemapName, r)
}

func (r *Remap) Unmap(name string) string {
	if internal, ok := r.toInternal[name]; ok {
		return internal
	}
	return name
}

func (r *Remap) Remap(name string) string {
	if public, ok := r.toPublic[name]; ok {
		return public
	}
	return name
}

func (r *Remap) Transform(_, _ string, code []byte) []byte {
	return code
}

// NewSynth returns a transformer that generates an empty module for absent
// units whose final name starts with one of prefixes.
func NewSynth(prefixes []string) transform.Plugin {
	prefixes = append([]string(nil), prefixes...)
	return transform.Transformer(SynthName, transform.StageFunc(
		func(_, transformedName string, code []byte) []byte {
			if code != nil {
				return code
			}
			for _, p := range prefixes {
				if strings.HasPrefix(transformedName, p) {
					return wasm.EmptyModule()
				}
			}
			return nil
		}))
}
