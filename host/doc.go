// Package host is the fallback resolver for native modules.
//
// A Registry maps module names to Go factory functions. A loader configured
// with the registry as its parent serves delegated names from it, which is
// how plugins and native entry points are constructed by name:
//
//	reg := host.NewRegistry()
//	host.Provide(reg, "launcher.tweak.Default", plugins.NewDefault)
//	l := loader.New(ctx, loader.Options{Parent: reg, Delegate: []string{"launcher."}})
package host
