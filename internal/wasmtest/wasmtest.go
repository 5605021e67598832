// Package wasmtest provides hand-assembled module binaries for tests.
package wasmtest

import "github.com/wippyai/wasm-launcher/wasm"

// Empty returns a module with no sections.
func Empty() []byte {
	return wasm.EmptyModule()
}

// Start returns a module exporting a no-op "_start".
func Start() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type 0: () -> ()
		0x03, 0x02, 0x01, 0x00, // func 0: type 0
		0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
		0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
	}
}

// Exit returns a module whose "_start" calls WASI proc_exit with code.
// code must be below 64 to fit a single-byte signed LEB128 immediate.
func Exit(code byte) []byte {
	out := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x08, 0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00, // (i32)->(), ()->()
		0x02, 0x24, 0x01, 0x16,
	}
	out = append(out, "wasi_snapshot_preview1"...)
	out = append(out, 0x09)
	out = append(out, "proc_exit"...)
	out = append(out, 0x00, 0x00) // func, type 0
	out = append(out,
		0x03, 0x02, 0x01, 0x01, // func 1: type 1
		0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,
		0x0a, 0x08, 0x01, 0x06, 0x00, 0x41, code&0x3f, 0x10, 0x00, 0x0b,
	)
	return out
}

// NoStart returns a module with a function exported as "run" instead of "_start".
func NoStart() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x07, 0x01, 0x03, 'r', 'u', 'n', 0x00, 0x00,
		0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
	}
}
