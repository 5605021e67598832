// Package config loads the launcher configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-launcher/engine"
	"github.com/wippyai/wasm-launcher/errors"
)

// Environment variables read by the launcher.
const (
	EnvConfig             = "LAUNCHER_CONFIG"
	EnvDebugLoading       = "LAUNCHER_DEBUG_LOADING"
	EnvDebugLoadingFiner  = "LAUNCHER_DEBUG_LOADING_FINER"
	EnvDebugLoadingSave   = "LAUNCHER_DEBUG_LOADING_SAVE"
	DefaultDelegatePrefix = "launcher."
	DefaultMaxRounds      = 64
)

// Config is the launcher configuration.
type Config struct {
	// Sources are directories or .zip/.bundle archives, searched in order.
	Sources []string `yaml:"sources"`
	// Delegate prefixes are served by the host registry. Built-in plugins
	// are always delegated; see DelegatePrefixes.
	Delegate []string `yaml:"delegate"`
	// Bypass prefixes are loaded without running transformers.
	Bypass    []string     `yaml:"bypass"`
	Launch    LaunchConfig `yaml:"launch"`
	Engine    EngineConfig `yaml:"engine"`
	Debug     DebugConfig  `yaml:"debug"`
	MaxRounds int          `yaml:"max_rounds"`
	// Watch clears failed lookups when module files appear in directory sources.
	Watch bool `yaml:"watch"`
}

// LaunchConfig drives the default bootstrap plugin.
type LaunchConfig struct {
	// Remap exposes internal module names under public ones (public: internal).
	Remap map[string]string `yaml:"remap"`
	// Target is the entry point module name.
	Target string `yaml:"target"`
	// Transformers are registered in order by the default plugin.
	Transformers []string `yaml:"transformers"`
	// Plugins are enqueued by the default plugin after it runs.
	Plugins []string `yaml:"plugins"`
	// Synthesize lists name prefixes for which empty modules are generated
	// when no source has them.
	Synthesize []string `yaml:"synthesize"`
	// Arguments are extra launch arguments.
	Arguments []string `yaml:"arguments"`
}

// EngineConfig configures the wasm runtime.
type EngineConfig struct {
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	Interpreter      bool   `yaml:"interpreter"`
}

// DebugConfig enables loader diagnostics. LoadingFiner and LoadingSave only
// take effect together with Loading.
type DebugConfig struct {
	Loading      bool `yaml:"loading"`
	LoadingFiner bool `yaml:"loading_finer"`
	LoadingSave  bool `yaml:"loading_save"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Delegate:  []string{DefaultDelegatePrefix},
		MaxRounds: DefaultMaxRounds,
	}
}

// Path returns the configuration path: flag if set, else $LAUNCHER_CONFIG.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvConfig)
}

// Load reads a YAML configuration file over the defaults and applies
// environment overrides. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config")
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks field ranges and normalizes dependent debug flags.
func (c *Config) Validate() error {
	if c.MaxRounds < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "max_rounds must not be negative")
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	for i, s := range c.Sources {
		if s == "" {
			return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("sources[%d] is empty", i))
		}
	}
	for _, p := range append(append([]string(nil), c.Delegate...), c.Bypass...) {
		if p == "" {
			return errors.InvalidInput(errors.PhaseConfig, "empty exclusion prefix matches every module")
		}
	}
	if !c.Debug.Loading {
		c.Debug.LoadingFiner = false
		c.Debug.LoadingSave = false
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	for _, o := range []struct {
		name string
		dst  *bool
	}{
		{EnvDebugLoading, &c.Debug.Loading},
		{EnvDebugLoadingFiner, &c.Debug.LoadingFiner},
		{EnvDebugLoadingSave, &c.Debug.LoadingSave},
	} {
		v, ok := os.LookupEnv(o.name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, o.name)
		}
		*o.dst = b
	}
	return nil
}

// DelegatePrefixes returns the configured delegate prefixes with the
// built-in plugin prefix added if the file left it out.
func (c *Config) DelegatePrefixes() []string {
	out := append([]string(nil), c.Delegate...)
	if !slices.Contains(out, DefaultDelegatePrefix) {
		out = append(out, DefaultDelegatePrefix)
	}
	return out
}

// EngineConfig converts the engine section for engine.New.
func (c *Config) EngineConfig() *engine.Config {
	return &engine.Config{
		MemoryLimitPages: c.Engine.MemoryLimitPages,
		Interpreter:      c.Engine.Interpreter,
	}
}
