package source

import (
	"path"
	"strings"
)

// Extension is the file extension of module resources.
const Extension = ".wasm"

// Path maps a dotted module name to its resource path.
func Path(name string) string {
	return strings.ReplaceAll(name, ".", "/") + Extension
}

// Name maps a slash-separated resource path back to a module name.
// It reports false for paths that are not module resources.
func Name(p string) (string, bool) {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if !strings.HasSuffix(p, Extension) || strings.HasPrefix(p, "../") {
		return "", false
	}
	base := strings.TrimSuffix(p, Extension)
	if base == "" || base == "." {
		return "", false
	}
	return strings.ReplaceAll(base, "/", "."), true
}

// Namespace returns the part of name before its last dot, or "" if the name
// is not namespaced.
func Namespace(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[:i]
}
