package loader

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-launcher/engine"
	"github.com/wippyai/wasm-launcher/errors"
	"github.com/wippyai/wasm-launcher/resource"
	"github.com/wippyai/wasm-launcher/source"
	"github.com/wippyai/wasm-launcher/transform"
)

// Parent resolves names the loader delegates. Results are returned to the
// caller unmodified and are never cached by the loader.
type Parent interface {
	Resolve(ctx context.Context, name string) (*Module, error)
}

type noParent struct{}

func (noParent) Resolve(_ context.Context, name string) (*Module, error) {
	return nil, errors.NotFound(errors.PhaseResolve, "delegated module", name)
}

// Options configures a Loader.
type Options struct {
	// Parent serves delegated names. Defaults to a parent that finds nothing.
	Parent Parent
	// Engine defines identities. A private engine is created when nil and
	// closed with the loader.
	Engine *engine.Engine
	// EngineConfig is used when Engine is nil.
	EngineConfig *engine.Config
	Sources      []source.Source
	// Delegate and Bypass seed the exclusion prefixes.
	Delegate []string
	Bypass   []string
	// DumpDir, when set, receives a copy of every transformed unit.
	DumpDir string
	// Trace logs every resolution at debug level.
	Trace bool
	// TraceStages logs every transformer invocation at debug level.
	TraceStages bool
}

// Loader resolves module names to identities through the resource cache
// and the transformer pipeline.
type Loader struct {
	parent     Parent
	engine     *engine.Engine
	sources    *source.Set
	resources  *resource.Cache
	pipeline   *transform.Pipeline
	delegate   prefixSet
	bypass     prefixSet
	cache      sync.Map // map[string]*Module, keyed by final name
	invalid    sync.Map // map[string]struct{}, keyed by public name
	namespaces namespaces
	watcher    *source.Watcher
	dumpDir    string
	watchMu    sync.Mutex
	ownsEngine bool
	trace      bool
}

// New creates a loader. The loader and everything it caches live until Close.
func New(ctx context.Context, opts Options) *Loader {
	l := &Loader{
		parent:     opts.Parent,
		engine:     opts.Engine,
		sources:    source.NewSet(opts.Sources...),
		pipeline:   transform.NewPipeline(Logger()),
		namespaces: namespaces{entries: make(map[string]*namespace)},
		dumpDir:    opts.DumpDir,
		trace:      opts.Trace,
	}
	if l.parent == nil {
		l.parent = noParent{}
	}
	if l.engine == nil {
		l.engine = engine.New(ctx, opts.EngineConfig)
		l.ownsEngine = true
	}
	l.resources = resource.New(l.sources)
	l.resources.SetTrace(opts.Trace)
	l.pipeline.SetTrace(opts.Trace && opts.TraceStages)

	for _, p := range opts.Delegate {
		l.delegate.add(p)
	}
	for _, p := range opts.Bypass {
		l.bypass.add(p)
	}
	return l
}

// AddDelegateExclusion hands every name starting with prefix to the parent.
// It does not affect names already resolved.
func (l *Loader) AddDelegateExclusion(prefix string) {
	l.delegate.add(prefix)
}

// AddBypassExclusion skips the transformer pipeline for names starting
// with prefix. It does not affect names already resolved.
func (l *Loader) AddBypassExclusion(prefix string) {
	l.bypass.add(prefix)
}

// DelegateExclusions returns the delegate prefixes.
func (l *Loader) DelegateExclusions() []string { return l.delegate.list() }

// BypassExclusions returns the bypass prefixes.
func (l *Loader) BypassExclusions() []string { return l.bypass.list() }

// AddSource appends a source to the search path.
func (l *Loader) AddSource(src source.Source) { l.sources.Add(src) }

// Sources returns the search path in order.
func (l *Loader) Sources() []source.Source { return l.sources.Sources() }

// Pipeline returns the loader's transformer pipeline.
func (l *Loader) Pipeline() *transform.Pipeline { return l.pipeline }

// Transformers returns the names of registered transformers in order.
func (l *Loader) Transformers() []string { return l.pipeline.Stages() }

// Engine returns the engine identities are defined in.
func (l *Loader) Engine() *engine.Engine { return l.engine }

// Resolve returns the module identity for name.
//
// Delegated names go straight to the parent. Otherwise a cached identity is
// returned if there is one; names that failed before fail again without any
// work. New names are fetched, transformed (unless bypassed) and defined
// exactly once under their final name.
func (l *Loader) Resolve(ctx context.Context, name string) (*Module, error) {
	if l.delegate.matches(name) {
		if l.trace {
			Logger().Debug("delegating module", zap.String("module", name))
		}
		return l.parent.Resolve(ctx, name)
	}

	if m, ok := l.cached(name); ok {
		return m, nil
	}

	if l.isInvalid(name) {
		return nil, errors.NotFound(errors.PhaseResolve, "module", name)
	}

	if l.bypass.matches(name) {
		code := l.resources.Fetch(name)
		if code == nil {
			l.markInvalid(name)
			return nil, errors.NotFound(errors.PhaseFetch, "module", name)
		}
		m, err := l.define(ctx, name, name, code)
		if err != nil {
			l.defineFailed(name, err)
			return nil, err
		}
		return m, nil
	}

	v := l.pipeline.Virtualizer()
	internal := v.Unmap(name)
	final := v.Remap(name)

	if m, ok := l.cached(final); ok {
		return m, nil
	}

	raw := l.resources.Fetch(internal)
	code := l.pipeline.Apply(internal, final, raw)
	if code == nil {
		l.markInvalid(name)
		return nil, errors.NotFound(errors.PhaseTransform, "module", name)
	}

	if l.dumpDir != "" {
		l.dump(final, code)
	}

	m, err := l.define(ctx, internal, final, code)
	if err != nil {
		l.defineFailed(name, err)
		return nil, err
	}
	return m, nil
}

// defineFailed remembers name as failed. A caller that lost a definition
// race within this loader still finds the winner, since the identity cache
// is consulted before the failed set.
func (l *Loader) defineFailed(name string, err error) {
	if l.trace {
		Logger().Debug("failed to define module", zap.String("module", name), zap.Error(err))
	}
	l.markInvalid(name)
}

func (l *Loader) define(ctx context.Context, internal, final string, code []byte) (*Module, error) {
	prov, manifest := l.provenance(internal)

	compiled, err := l.engine.Define(ctx, final, code)
	if err != nil {
		return nil, err
	}
	l.recordNamespace(internal, prov, manifest)

	m := &Module{
		Name:       final,
		Code:       code,
		Compiled:   compiled,
		Provenance: prov,
	}
	if _, loaded := l.cache.LoadOrStore(final, m); loaded {
		return nil, errors.IdentityConflict(final)
	}

	if l.trace {
		Logger().Debug("module resolved",
			zap.String("module", final),
			zap.String("internal", internal),
			zap.String("origin", prov.Origin))
	}
	return m, nil
}

func (l *Loader) cached(name string) (*Module, bool) {
	if v, ok := l.cache.Load(name); ok {
		return v.(*Module), true
	}
	return nil, false
}

func (l *Loader) isInvalid(name string) bool {
	_, ok := l.invalid.Load(name)
	return ok
}

func (l *Loader) markInvalid(name string) {
	l.invalid.Store(name, struct{}{})
}

// ClearNegative forgets failed resolutions for names, in both the loader
// and the resource cache, so the next Resolve starts fresh.
func (l *Loader) ClearNegative(names ...string) {
	for _, name := range names {
		l.invalid.Delete(name)
	}
	l.resources.ClearNegative(names...)
}

// RegisterTransformer resolves a transformer plugin by name, constructs it
// and appends it to the pipeline. Failures are logged and returned; the
// pipeline is left unchanged.
func (l *Loader) RegisterTransformer(ctx context.Context, name string) error {
	err := l.registerTransformer(ctx, name)
	if err != nil {
		Logger().Error("could not register transformer",
			zap.String("transformer", name),
			zap.Error(err))
	}
	return err
}

// RegisterPlugin appends an already constructed transformer to the pipeline.
func (l *Loader) RegisterPlugin(p transform.Plugin) error {
	return l.pipeline.Register(p)
}

func (l *Loader) registerTransformer(ctx context.Context, name string) error {
	m, err := l.Resolve(ctx, name)
	if err != nil {
		return errors.PluginConstruction(name, err)
	}
	v, err := m.Instantiate()
	if err != nil {
		return err
	}
	p, ok := v.(transform.Plugin)
	if !ok {
		return errors.New(errors.PhaseRegister, errors.KindPluginConstruction).
			Name(name).
			Detail("factory produced %T, not a transformer", v).
			Build()
	}
	if err := l.pipeline.Register(p); err != nil {
		return errors.PluginConstruction(name, err)
	}
	Logger().Debug("transformer registered",
		zap.String("transformer", name),
		zap.Stringer("kind", p.Kind()))
	return nil
}

// Watch starts reporting new module files under directory sources: names
// that failed before are cleared for retry and rewritten files are re-read.
// Modules already defined are not replaced.
func (l *Loader) Watch(ctx context.Context) error {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if l.watcher != nil {
		return nil
	}

	w, err := source.NewWatcher(func(c source.Change) {
		if !c.Created {
			l.resources.Invalidate(c.Name)
		}
		l.ClearNegative(c.Name)
	})
	if err != nil {
		return err
	}
	for _, src := range l.sources.Sources() {
		dir, ok := src.(*source.DirSource)
		if !ok {
			continue
		}
		if err := w.Add(dir.Root()); err != nil {
			_ = w.Stop()
			return err
		}
	}
	w.Start(ctx)
	l.watcher = w
	return nil
}

// Close stops watching, closes sources and, if the loader created its own
// engine, the engine.
func (l *Loader) Close(ctx context.Context) error {
	var err error
	l.watchMu.Lock()
	if l.watcher != nil {
		err = multierr.Append(err, l.watcher.Stop())
		l.watcher = nil
	}
	l.watchMu.Unlock()

	err = multierr.Append(err, l.sources.Close())
	if l.ownsEngine {
		err = multierr.Append(err, l.engine.Close(ctx))
	}
	return err
}
