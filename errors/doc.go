// Package errors provides structured error types for the launcher.
//
// Errors are categorized by Phase (where in resolution or bootstrap the
// error occurred) and Kind (what went wrong). The Error type carries the
// module or plugin name involved and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDefine, errors.KindIdentityConflict).
//		Name("com.example.Game").
//		Detail("already defined").
//		Build()
//
// Or use convenience constructors for the common cases:
//
//	err := errors.NotFound(errors.PhaseResolve, "module", name)
//	err := errors.PluginConstruction(name, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches on Kind alone, which is what most callers want.
package errors
