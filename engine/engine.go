package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-launcher/errors"
)

// StartFunction is the export invoked by Run.
const StartFunction = "_start"

const wasiModuleName = "wasi_snapshot_preview1"

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32

	// Interpreter selects the wazero interpreter instead of the compiler.
	Interpreter bool
}

// Engine owns a wazero runtime and the registry of defined modules.
type Engine struct {
	runtime      wazero.Runtime
	defined      map[string]wazero.CompiledModule
	mu           sync.Mutex
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// New creates an engine. cfg may be nil.
func New(ctx context.Context, cfg *Config) *Engine {
	var runtimeCfg wazero.RuntimeConfig
	if cfg != nil && cfg.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	} else {
		runtimeCfg = wazero.NewRuntimeConfig()
	}
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		defined: make(map[string]wazero.CompiledModule),
	}
}

// Define compiles code and records it under name. It fails with an identity
// conflict if name was already defined, including by a concurrent caller
// that finished first.
func (e *Engine) Define(ctx context.Context, name string, code []byte) (wazero.CompiledModule, error) {
	if _, ok := e.Defined(name); ok {
		return nil, errors.IdentityConflict(name)
	}

	compiled, err := e.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, errors.New(errors.PhaseDefine, errors.KindInvalidData).
			Name(name).
			Detail("compile module").
			Cause(err).
			Build()
	}

	e.mu.Lock()
	if _, ok := e.defined[name]; ok {
		e.mu.Unlock()
		// Identical bytes share compiled code in the runtime, so the
		// loser's module is left for Close instead of being released here.
		Logger().Debug("lost definition race", zap.String("module", name))
		return nil, errors.IdentityConflict(name)
	}
	e.defined[name] = compiled
	e.mu.Unlock()

	Logger().Debug("module defined",
		zap.String("module", name),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return compiled, nil
}

// Defined returns the compiled module recorded under name.
func (e *Engine) Defined(name string) (wazero.CompiledModule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.defined[name]
	return c, ok
}

// InitWASI instantiates WASI preview1 in the engine's runtime.
// Safe for concurrent calls.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasiModuleName) == nil {
		builder := e.runtime.NewHostModuleBuilder(wasiModuleName)
		wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// Stdio connects a running program to the host. Nil fields are discarded
// (or empty, for Stdin).
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run instantiates compiled as a program named name and runs its start
// function with args. The program sees name as argv[0].
func (e *Engine) Run(ctx context.Context, name string, compiled wazero.CompiledModule, args []string, stdio Stdio) error {
	if _, ok := compiled.ExportedFunctions()[StartFunction]; !ok {
		return errors.NotFound(errors.PhaseLaunch, "entry operation "+StartFunction, name)
	}

	if err := e.InitWASI(ctx); err != nil {
		return errors.Wrap(errors.PhaseLaunch, errors.KindInvalidData, err, "init WASI")
	}

	argv := make([]string, 0, len(args)+1)
	argv = append(argv, name)
	argv = append(argv, args...)

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(argv...).
		WithStartFunctions(StartFunction)
	if stdio.Stdin != nil {
		modCfg = modCfg.WithStdin(stdio.Stdin)
	}
	if stdio.Stdout != nil {
		modCfg = modCfg.WithStdout(stdio.Stdout)
	}
	if stdio.Stderr != nil {
		modCfg = modCfg.WithStderr(stdio.Stderr)
	}

	Logger().Debug("running module", zap.String("module", name), zap.Strings("args", args))

	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		var exitErr *sys.ExitError
		if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return nil
		}
		return errors.New(errors.PhaseLaunch, errors.KindInvalidData).
			Name(name).
			Detail("run module").
			Cause(err).
			Build()
	}
	return mod.Close(ctx)
}

// Close releases every defined module and the runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defined := e.defined
	e.defined = make(map[string]wazero.CompiledModule)
	e.mu.Unlock()

	var err error
	for _, c := range defined {
		err = multierr.Append(err, c.Close(ctx))
	}
	return multierr.Append(err, e.runtime.Close(ctx))
}
