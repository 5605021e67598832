// Package plugins holds the launcher's built-in plugins.
//
// Default is the bootstrap plugin used when no --tweakClass is given. The
// remaining plugins are transformers the Default plugin registers when the
// configuration names them.
package plugins

// Names the built-in plugins are registered under.
const (
	DefaultName = "launcher.tweak.Default"
	StampName   = "launcher.transform.Stamp"
	RemapName   = "launcher.transform.Remap"
	SynthName   = "launcher.transform.Synth"
)
