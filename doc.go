// Package launcher is a pluggable module-loading runtime for WebAssembly.
//
// Module names are resolved to compiled modules through a loader that
// fetches bytes from ordered sources, runs them through a pipeline of
// transformers and defines each module exactly once. Before anything runs,
// a bootstrap negotiation lets plugins register transformers, discover
// further plugins and contribute launch arguments; the first plugin then
// names the entry point.
//
// # Architecture Overview
//
//	launcher/
//	├── cmd/launch/   Command line entry: options, config, logging, launch
//	├── bootstrap/    Plugin negotiation, Blackboard, argument parsing
//	├── loader/       Name resolution, exclusions, identity cache, sealing
//	├── transform/    Transformer pipeline and name virtualization
//	├── resource/     Byte fetching with positive and negative caches
//	├── source/       Directory, archive and in-memory sources, watcher
//	├── engine/       wazero runtime: compile once, run entry points
//	├── host/         Registry of native modules constructed by name
//	├── plugins/      Built-in bootstrap plugin and transformers
//	├── config/       YAML configuration
//	├── wasm/         Binary helpers: sections, custom sections, exports
//	└── errors/       Structured error types
//
// # Quick Start
//
//	reg := host.NewRegistry()
//	plugins.Register(reg, cfg)
//
//	l := loader.New(ctx, loader.Options{
//	    Parent:   reg,
//	    Sources:  []source.Source{source.Dir("mods")},
//	    Delegate: []string{"launcher."},
//	})
//	defer l.Close(ctx)
//
//	ng := bootstrap.New(l, bootstrap.Options{Plugins: []string{plugins.DefaultName}})
//	err := ng.Launch(ctx)
//
// # Resolution
//
// Loader.Resolve checks, in order: delegate prefixes (served by the parent,
// never cached), the identity cache, names that failed before, bypass
// prefixes (fetched and defined without transformers), and finally the
// full path: virtualize the name, fetch, transform, define. A name that
// fails stays failed until Loader.ClearNegative is called for it.
package launcher
