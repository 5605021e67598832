// Package resource implements the raw module cache.
//
// Cache sits between the loader and the byte sources. It remembers both the
// untransformed bytes of every module it has read (positive cache) and every
// name it failed to find (negative cache), so repeated lookups never touch
// storage twice.
//
// # Reserved names
//
// Module names without a namespace that start with a platform-reserved
// device name (CON, PRN, AUX, NUL, COM1-9, LPT1-9, compared
// case-insensitively) cannot exist as files on every platform. Their bytes
// are looked up under an underscore-prefixed name first ("con" -> "_con")
// and, when found, cached under the original name.
//
// # Thread Safety
//
// Cache is safe for concurrent use. Two callers may read the same uncached
// name at the same time; both read it and the last store wins, which is
// harmless because the bytes are identical.
package resource
