// Package bootstrap negotiates which plugins take part in a launch and
// hands control to the entry point the primary plugin names.
//
// Plugins are named on the command line with --tweakClass and constructed
// through the loader. Each one may register transformers, push further
// plugin names onto the shared Blackboard and contribute launch arguments.
// Negotiation runs in rounds until no plugin names are pending:
//
//	instantiate  pop every pending name, skip names seen before, construct
//	process      accept options, then inject into the loader
//	finalize     collect launch arguments, resolve the primary's target, run it
//
// The first plugin constructed is the primary. Negotiation is single
// threaded; the Blackboard is not safe for concurrent use.
package bootstrap
