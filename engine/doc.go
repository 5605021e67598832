// Package engine establishes module identities on top of wazero.
//
// Defining a module compiles its final bytes and records the compiled module
// under its final name. A name can be defined at most once per engine: when
// two callers race to define the same name, both may compile, but only the
// first registration wins and the other caller receives an identity
// conflict. The losing compilation is closed.
//
// Run executes a defined module as a program: WASI preview1 is instantiated
// once per engine, the module is instantiated with the given arguments and
// its "_start" export runs to completion. A WASI exit with status 0 counts as
// success.
//
// # Thread Safety
//
// Engine is safe for concurrent use.
package engine
