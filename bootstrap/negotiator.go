package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-launcher/engine"
	"github.com/wippyai/wasm-launcher/errors"
	"github.com/wippyai/wasm-launcher/loader"
)

// DefaultMaxRounds bounds negotiation when no limit is configured.
const DefaultMaxRounds = 64

// Negotiator runs one launch. It is not reusable.
type Negotiator struct {
	loader     *loader.Loader
	blackboard *Blackboard
	primary    Plugin
	logger     *zap.Logger
	seen       map[string]struct{}
	options    Options
	processed  []Plugin
	stdio      engine.Stdio
	maxRounds  int
	rounds     int
}

// Option customizes a Negotiator.
type Option func(*Negotiator)

// WithMaxRounds bounds the number of instantiate/process rounds. Values
// below one select DefaultMaxRounds.
func WithMaxRounds(n int) Option {
	return func(ng *Negotiator) {
		if n > 0 {
			ng.maxRounds = n
		}
	}
}

// WithStdio connects a compiled entry point to the given streams.
func WithStdio(stdio engine.Stdio) Option {
	return func(ng *Negotiator) {
		ng.stdio = stdio
	}
}

// New creates a negotiator whose queue is seeded with opts.Plugins.
func New(l *loader.Loader, opts Options, options ...Option) *Negotiator {
	ng := &Negotiator{
		loader:     l,
		options:    opts,
		blackboard: NewBlackboard(opts.Plugins...),
		seen:       make(map[string]struct{}),
		maxRounds:  DefaultMaxRounds,
	}
	for _, o := range options {
		o(ng)
	}
	ng.logger = Logger().With(zap.String("session", uuid.NewString()))
	return ng
}

// Blackboard returns the state shared with plugins.
func (ng *Negotiator) Blackboard() *Blackboard { return ng.blackboard }

// Primary returns the first plugin constructed, or nil.
func (ng *Negotiator) Primary() Plugin { return ng.primary }

// Processed returns every plugin processed so far, in processing order.
func (ng *Negotiator) Processed() []Plugin {
	return append([]Plugin(nil), ng.processed...)
}

// Rounds returns the number of rounds run so far.
func (ng *Negotiator) Rounds() int { return ng.rounds }

// Negotiate runs instantiate and process rounds until no plugin names are
// pending. A plugin that cannot be constructed is logged and dropped. A
// plugin that fails to inject, or a queue that is still not empty after
// the maximum number of rounds, stops negotiation with a fatal error.
func (ng *Negotiator) Negotiate(ctx context.Context) error {
	for len(ng.blackboard.queue) > 0 {
		if ng.rounds >= ng.maxRounds {
			return errors.New(errors.PhaseBootstrap, errors.KindBootstrapFatal).
				Detail("plugins still pending after %d rounds: %s",
					ng.maxRounds, strings.Join(ng.blackboard.queue, ", ")).
				Build()
		}
		ng.rounds++

		ng.instantiate(ctx)
		if err := ng.process(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (ng *Negotiator) instantiate(ctx context.Context) {
	for {
		name, ok := ng.blackboard.pop()
		if !ok {
			return
		}
		if _, dup := ng.seen[name]; dup {
			ng.logger.Warn("plugin has already been visited, skipping", zap.String("plugin", name))
			continue
		}
		ng.seen[name] = struct{}{}
		ng.logger.Info("loading plugin", zap.String("plugin", name))

		ng.loader.AddDelegateExclusion(namespacePrefix(name))

		p, err := ng.construct(ctx, name)
		if err != nil {
			ng.logger.Error("could not construct plugin", zap.String("plugin", name), zap.Error(err))
			continue
		}
		ng.blackboard.plugins = append(ng.blackboard.plugins, p)
		if ng.primary == nil {
			ng.logger.Info("using primary plugin", zap.String("plugin", name))
			ng.primary = p
		}
	}
}

func (ng *Negotiator) construct(ctx context.Context, name string) (Plugin, error) {
	m, err := ng.loader.Resolve(ctx, name)
	if err != nil {
		return nil, errors.PluginConstruction(name, err)
	}
	v, err := m.Instantiate()
	if err != nil {
		return nil, err
	}
	p, ok := v.(Plugin)
	if !ok {
		return nil, errors.New(errors.PhaseRegister, errors.KindPluginConstruction).
			Name(name).
			Detail("factory produced %T, not a bootstrap plugin", v).
			Build()
	}
	return p, nil
}

// process drains the plugins constructed since the last round. Plugins
// are handled in construction order.
func (ng *Negotiator) process(ctx context.Context) error {
	for len(ng.blackboard.plugins) > len(ng.processed) {
		p := ng.blackboard.plugins[len(ng.processed)]
		ng.logger.Info("calling plugin", zap.String("type", fmt.Sprintf("%T", p)))
		if err := ng.call(ctx, p); err != nil {
			return errors.BootstrapFatal(fmt.Sprintf("plugin %T failed", p), err)
		}
		ng.processed = append(ng.processed, p)
	}
	return nil
}

func (ng *Negotiator) call(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	p.AcceptOptions(append([]string(nil), ng.options.Residual...),
		ng.options.GameDir, ng.options.AssetsDir, ng.options.Profile)
	return p.InjectInto(ctx, ng.loader, ng.blackboard)
}

// Finalize appends every processed plugin's launch arguments to the
// blackboard and returns the primary plugin's target with the final
// argument list.
func (ng *Negotiator) Finalize() (string, []string, error) {
	if ng.primary == nil {
		return "", nil, errors.BootstrapFatal("no primary plugin", nil)
	}
	for _, p := range ng.processed {
		ng.blackboard.AppendArguments(p.LaunchArguments()...)
	}
	target := ng.primary.LaunchTarget()
	if target == "" {
		return "", nil, errors.BootstrapFatal("primary plugin names no launch target", nil)
	}
	return target, ng.blackboard.Arguments(), nil
}

// Launch negotiates, finalizes and runs the entry point. It returns when
// the entry point returns. Every error it returns is a bootstrap fatal
// error and has already been logged.
func (ng *Negotiator) Launch(ctx context.Context) error {
	err := ng.launch(ctx)
	if err != nil {
		if !errors.IsKind(err, errors.KindBootstrapFatal) {
			err = errors.BootstrapFatal("unable to launch", err)
		}
		ng.logger.Error("unable to launch", zap.Error(err))
	}
	return err
}

func (ng *Negotiator) launch(ctx context.Context) error {
	if err := ng.Negotiate(ctx); err != nil {
		return err
	}
	target, args, err := ng.Finalize()
	if err != nil {
		return err
	}

	m, err := ng.loader.Resolve(ctx, target)
	if err != nil {
		return errors.BootstrapFatal("resolve launch target "+target, err)
	}

	ng.logger.Info("launching", zap.String("target", target), zap.Strings("args", args))

	if m.IsHost() {
		v, err := m.Instantiate()
		if err != nil {
			return errors.BootstrapFatal("construct launch target "+target, err)
		}
		entry, ok := v.(EntryPoint)
		if !ok {
			return errors.BootstrapFatal("launch target "+target+" has no entry operation",
				errors.NotFound(errors.PhaseLaunch, "entry operation", target))
		}
		return runEntry(ctx, entry, args)
	}
	return ng.loader.Engine().Run(ctx, m.Name, m.Compiled, args, ng.stdio)
}

func runEntry(ctx context.Context, entry EntryPoint, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.PhaseLaunch, errors.KindInvalidData).
				Detail("entry point panicked: %v", r).
				Build()
		}
	}()
	return entry.Main(ctx, args)
}

// namespacePrefix returns the text before the last dot of name, or name
// itself when it has no dot.
func namespacePrefix(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
