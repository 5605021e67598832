package plugins

import (
	"context"

	"github.com/wippyai/wasm-launcher/bootstrap"
	"github.com/wippyai/wasm-launcher/config"
	"github.com/wippyai/wasm-launcher/loader"
)

// Default is a primary-capable bootstrap plugin driven by the launch
// section of the configuration.
type Default struct {
	cfg        config.LaunchConfig
	blackboard *bootstrap.Blackboard
	args       []string
	gameDir    string
	assetsDir  string
	profile    string
}

// NewDefault creates the default plugin for cfg.
func NewDefault(cfg config.LaunchConfig) *Default {
	return &Default{cfg: cfg}
}

func (d *Default) AcceptOptions(args []string, gameDir, assetsDir, profile string) {
	d.args = args
	d.gameDir = gameDir
	d.assetsDir = assetsDir
	d.profile = profile
}

// InjectInto registers the configured transformers and enqueues the
// configured plugins. A transformer that cannot be registered is skipped.
func (d *Default) InjectInto(ctx context.Context, l *loader.Loader, bb *bootstrap.Blackboard) error {
	d.blackboard = bb
	for _, name := range d.cfg.Transformers {
		// Failures are logged by the loader and leave the pipeline unchanged.
		_ = l.RegisterTransformer(ctx, name)
	}
	bb.Enqueue(d.cfg.Plugins...)
	return nil
}

func (d *Default) LaunchTarget() string {
	return d.cfg.Target
}

// LaunchArguments returns the residual command line, the configured extra
// arguments, then the directory and profile options unless an earlier
// plugin already supplied them.
func (d *Default) LaunchArguments() []string {
	out := append([]string(nil), d.args...)
	out = append(out, d.cfg.Arguments...)
	for _, opt := range []struct{ flag, value string }{
		{"--gameDir", d.gameDir},
		{"--assetsDir", d.assetsDir},
		{"--version", d.profile},
	} {
		if opt.value == "" || d.has(opt.flag) {
			continue
		}
		out = append(out, opt.flag, opt.value)
	}
	return out
}

func (d *Default) has(flag string) bool {
	return d.blackboard != nil && d.blackboard.HasArgument(flag)
}
