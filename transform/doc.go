// Package transform implements the ordered transformer pipeline applied to
// module bytes before their identity is established.
//
// # Stages
//
// A Stage receives the internal name, the final (transformed) name and the
// current bytes, and returns new bytes. nil means "no data" and is a valid
// value between stages: every stage runs in registration order regardless of
// what the previous one returned, so a later stage may synthesize a module
// from nothing.
//
// # Name virtualization
//
// A plugin may also translate between public and internal names. Plugins are
// tagged at construction time as plain transformers or virtualizing
// transformers; the first virtualizing transformer registered becomes the
// pipeline's Virtualizer. Later ones still run as ordinary stages.
//
// # Thread Safety
//
// Pipeline is safe for concurrent use. Apply works on a snapshot of the
// stages, so registrations during an Apply take effect on the next call.
package transform
