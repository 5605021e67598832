package bootstrap

import (
	"context"

	"github.com/wippyai/wasm-launcher/loader"
)

// Plugin takes part in negotiation. Plugins are constructed by name
// through the loader, so a plugin module's factory must return a Plugin.
type Plugin interface {
	// AcceptOptions receives the residual command line arguments and the
	// parsed directories and profile. Empty strings mean unset.
	AcceptOptions(args []string, gameDir, assetsDir, profile string)
	// InjectInto runs after AcceptOptions. Plugins register transformers and
	// exclusions on l here and may enqueue more plugins on bb.
	InjectInto(ctx context.Context, l *loader.Loader, bb *Blackboard) error
	// LaunchTarget names the entry point module. Only the primary plugin's
	// target is used.
	LaunchTarget() string
	// LaunchArguments returns the arguments this plugin contributes.
	LaunchArguments() []string
}

// EntryPoint is a native launch target.
type EntryPoint interface {
	Main(ctx context.Context, args []string) error
}

// EntryFunc adapts a function to EntryPoint.
type EntryFunc func(ctx context.Context, args []string) error

func (f EntryFunc) Main(ctx context.Context, args []string) error {
	return f(ctx, args)
}
