package plugins

import (
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-launcher/config"
	"github.com/wippyai/wasm-launcher/host"
	"github.com/wippyai/wasm-launcher/transform"
)

// Register binds every built-in plugin in reg, configured from cfg.
func Register(reg *host.Registry, cfg *config.Config) error {
	launch := cfg.Launch
	return multierr.Combine(
		host.Provide(reg, DefaultName, func() (*Default, error) {
			return NewDefault(launch), nil
		}),
		host.Provide(reg, StampName, func() (transform.Plugin, error) {
			return NewStamp(), nil
		}),
		host.Provide(reg, RemapName, func() (transform.Plugin, error) {
			return NewRemap(launch.Remap), nil
		}),
		host.Provide(reg, SynthName, func() (transform.Plugin, error) {
			return NewSynth(launch.Synthesize), nil
		}),
	)
}
