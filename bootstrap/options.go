package bootstrap

import (
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/wippyai/wasm-launcher/errors"
)

// Options are the command line options the launcher understands. Anything
// else on the command line is kept in Residual and handed to plugins.
type Options struct {
	Profile    string
	GameDir    string
	AssetsDir  string
	ConfigPath string
	// Plugins seeds the negotiation queue, in command line order.
	Plugins  []string
	Residual []string
}

func (o *Options) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("launch", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.Profile, "version", "", "The version we launched with")
	fs.StringVar(&o.GameDir, "gameDir", "", "Alternative game directory")
	fs.StringVar(&o.AssetsDir, "assetsDir", "", "Assets directory")
	fs.StringArrayVar(&o.Plugins, "tweakClass", nil, "Plugin(s) to load")
	fs.StringVar(&o.ConfigPath, "launcherConfig", "", "Launcher configuration file")
	return fs
}

// Usage returns the help text for the known options.
func Usage() string {
	var o Options
	return o.flagSet().FlagUsages()
}

// ParseArgs splits args into known options and residual arguments.
// Known options take a value either as "--name value" or "--name=value".
// Unknown options and positional arguments are kept verbatim and in order;
// everything after "--" is residual.
func ParseArgs(args []string) (Options, error) {
	var opts Options
	fs := opts.flagSet()

	var known []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			opts.Residual = append(opts.Residual, args[i+1:]...)
			break
		}
		body, ok := strings.CutPrefix(arg, "--")
		if !ok {
			opts.Residual = append(opts.Residual, arg)
			continue
		}
		name, _, hasValue := strings.Cut(body, "=")
		if fs.Lookup(name) == nil {
			opts.Residual = append(opts.Residual, arg)
			continue
		}
		if hasValue {
			known = append(known, arg)
			continue
		}
		if i+1 >= len(args) {
			return Options{}, errors.New(errors.PhaseBootstrap, errors.KindInvalidInput).
				Name(name).
				Detail("option --%s requires an argument", name).
				Build()
		}
		known = append(known, "--"+name+"="+args[i+1])
		i++
	}

	if err := fs.Parse(known); err != nil {
		return Options{}, errors.Wrap(errors.PhaseBootstrap, errors.KindInvalidInput, err, "parse options")
	}
	return opts, nil
}
