// Package wasm provides the small slice of WebAssembly binary handling the
// launcher needs: header checks, section walking, custom sections and export
// names.
//
// It does not decode function bodies or validate modules; compilation and
// validation are left to the engine. Transformer stages use this package to
// inspect or annotate units without a full decode:
//
//	if !wasm.IsModule(code) {
//	    return code
//	}
//	return wasm.AppendCustomSection(code, "launcher.transformed", []byte(name))
package wasm
