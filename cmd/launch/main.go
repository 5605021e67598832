package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/wasm-launcher/bootstrap"
	"github.com/wippyai/wasm-launcher/config"
	"github.com/wippyai/wasm-launcher/engine"
	"github.com/wippyai/wasm-launcher/errors"
	"github.com/wippyai/wasm-launcher/host"
	"github.com/wippyai/wasm-launcher/loader"
	"github.com/wippyai/wasm-launcher/plugins"
	"github.com/wippyai/wasm-launcher/resource"
	"github.com/wippyai/wasm-launcher/source"
)

var rootCmd = &cobra.Command{
	Use:   "launch [options] [args...]",
	Short: "Negotiate plugins and run a wasm entry point",
	Long: `launch constructs the plugins named by --tweakClass (or the built-in
default plugin), lets them register transformers on the module loader and
contribute arguments, then runs the entry point the first plugin names.

Unrecognized arguments are passed through to every plugin unchanged.

Options:
` + bootstrap.Usage(),
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), args, engine.Stdio{
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		})
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Launch failures were logged already.
		if !errors.IsKind(err, errors.KindBootstrapFatal) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdio engine.Stdio) error {
	opts, err := bootstrap.ParseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.Path(opts.ConfigPath))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Debug.Loading)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	setLoggers(logger)

	sources := make([]source.Source, 0, len(cfg.Sources))
	for _, loc := range cfg.Sources {
		src, err := source.Open(loc)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "open source "+loc)
		}
		sources = append(sources, src)
	}

	var dumpDir string
	if cfg.Debug.LoadingSave {
		home := opts.GameDir
		if home == "" {
			home = "."
		}
		if dumpDir, err = loader.PrepareDumpDir(home); err != nil {
			logger.Warn("could not create dump directory", zap.Error(err))
		}
	}

	reg := host.NewRegistry()
	if err := plugins.Register(reg, cfg); err != nil {
		return err
	}

	l := loader.New(ctx, loader.Options{
		Parent:       reg,
		EngineConfig: cfg.EngineConfig(),
		Sources:      sources,
		Delegate:     cfg.DelegatePrefixes(),
		Bypass:       cfg.Bypass,
		DumpDir:      dumpDir,
		Trace:        cfg.Debug.Loading,
		TraceStages:  cfg.Debug.LoadingFiner,
	})
	defer func() {
		if err := l.Close(context.Background()); err != nil {
			logger.Warn("close loader", zap.Error(err))
		}
	}()

	if cfg.Watch {
		if err := l.Watch(ctx); err != nil {
			logger.Warn("could not watch sources", zap.Error(err))
		}
	}

	if len(opts.Plugins) == 0 {
		opts.Plugins = []string{plugins.DefaultName}
	}
	ng := bootstrap.New(l, opts,
		bootstrap.WithMaxRounds(cfg.MaxRounds),
		bootstrap.WithStdio(stdio))
	return ng.Launch(ctx)
}

func newLogger(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func setLoggers(l *zap.Logger) {
	engine.SetLogger(l.Named("engine"))
	source.SetLogger(l.Named("source"))
	resource.SetLogger(l.Named("resource"))
	loader.SetLogger(l.Named("loader"))
	bootstrap.SetLogger(l.Named("bootstrap"))
}
