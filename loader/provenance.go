package loader

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-launcher/source"
)

type namespace struct {
	origin string
	sealed bool
}

type namespaces struct {
	entries map[string]*namespace
	mu      sync.Mutex
}

// provenance looks up where internal's bytes live. The second result
// reports whether the container carries a manifest.
func (l *Loader) provenance(internal string) (Provenance, bool) {
	prov := Provenance{Namespace: source.Namespace(internal)}

	res, ok := l.sources.Locate(source.Path(internal))
	if !ok {
		// Synthesized by a transformer.
		return prov, false
	}
	prov.Origin = res.Origin()
	prov.Path = res.Path()

	mf := res.Manifest()
	if mf == nil {
		return prov, false
	}
	prov.Signers = append([]string(nil), mf.Signers...)
	prov.Sealed = mf.IsSealed(prov.Namespace)
	return prov, true
}

// recordNamespace notes the first definition of a module's namespace and
// checks later ones against it. It runs only after the module was defined.
// Seal violations are logged, never returned.
func (l *Loader) recordNamespace(internal string, prov Provenance, manifest bool) {
	ns := prov.Namespace
	if ns == "" || prov.Origin == "" {
		return
	}

	l.namespaces.mu.Lock()
	defer l.namespaces.mu.Unlock()

	existing, seen := l.namespaces.entries[ns]
	switch {
	case !seen:
		l.namespaces.entries[ns] = &namespace{origin: prov.Origin, sealed: prov.Sealed}
	case manifest && existing.sealed && existing.origin != prov.Origin:
		Logger().Error("trying to seal already secured path",
			zap.String("namespace", ns),
			zap.String("module", internal),
			zap.String("origin", prov.Origin),
			zap.String("sealed_by", existing.origin))
	case manifest && prov.Sealed && !existing.sealed:
		Logger().Error("has a security seal but path defined and not secure",
			zap.String("namespace", ns),
			zap.String("module", internal),
			zap.String("origin", prov.Origin))
	case !manifest && existing.sealed:
		Logger().Error("defining elements for sealed path",
			zap.String("namespace", ns),
			zap.String("module", internal),
			zap.String("origin", prov.Origin))
	}
}
