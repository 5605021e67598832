// Package source locates raw module bytes.
//
// A Source maps a resource path ("com/example/Game.wasm") to a Resource that
// can be opened for reading. Three sources are provided:
//
//   - Dir: a directory tree on the local filesystem
//   - Archive: a zip bundle, optionally carrying a bundle.yaml manifest with
//     signer and sealing information
//   - Memory: an in-memory file map, mostly for tests and embedding
//
// A Set searches its sources in the order they were added; the first source
// that has the path wins.
//
// Watcher reports new and rewritten module files under directory sources so
// that previously unresolvable names can be retried.
package source
