package resource

import (
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-launcher/source"
)

var reservedNames = []string{
	"CON", "PRN", "AUX", "NUL",
	"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
}

// Locator finds the resource behind a path. *source.Set implements it.
type Locator interface {
	Locate(path string) (source.Resource, bool)
}

// Cache holds raw module bytes keyed by internal module name.
type Cache struct {
	locator  Locator
	positive sync.Map // map[string][]byte
	negative sync.Map // map[string]struct{}
	trace    bool
}

// New creates a cache reading through locator.
func New(locator Locator) *Cache {
	return &Cache{locator: locator}
}

// SetTrace enables per-lookup debug logging.
func (c *Cache) SetTrace(on bool) {
	c.trace = on
}

// Fetch returns the raw bytes for name, or nil if the module cannot be
// found or read. Failures are remembered until ClearNegative.
func (c *Cache) Fetch(name string) []byte {
	if _, ok := c.negative.Load(name); ok {
		return nil
	}
	if data, ok := c.positive.Load(name); ok {
		return data.([]byte)
	}

	if isReserved(name) {
		if data := c.Fetch("_" + name); data != nil {
			c.positive.Store(name, data)
			return data
		}
	}

	path := source.Path(name)
	res, ok := c.locator.Locate(path)
	if !ok {
		if c.trace {
			Logger().Debug("module resource not found", zap.String("path", path))
		}
		c.negative.Store(name, struct{}{})
		return nil
	}

	data, err := readFully(res)
	if err != nil {
		if c.trace {
			Logger().Debug("failed to load module resource",
				zap.String("module", name),
				zap.String("origin", res.Origin()),
				zap.Error(err))
		}
		c.negative.Store(name, struct{}{})
		return nil
	}

	if c.trace {
		Logger().Debug("loaded module resource",
			zap.String("module", name),
			zap.String("origin", res.Origin()),
			zap.Int("size", len(data)))
	}
	c.positive.Store(name, data)
	return data
}

// ClearNegative forgets failed lookups for names so they are retried.
func (c *Cache) ClearNegative(names ...string) {
	for _, name := range names {
		c.negative.Delete(name)
	}
}

// Invalidate drops cached bytes for names. The next Fetch reads storage.
func (c *Cache) Invalidate(names ...string) {
	for _, name := range names {
		c.positive.Delete(name)
	}
}

// IsNegative reports whether name is currently known to be unresolvable.
func (c *Cache) IsNegative(name string) bool {
	_, ok := c.negative.Load(name)
	return ok
}

func isReserved(name string) bool {
	if strings.IndexByte(name, '.') >= 0 {
		return false
	}
	upper := strings.ToUpper(name)
	for _, r := range reservedNames {
		if strings.HasPrefix(upper, r) {
			return true
		}
	}
	return false
}

func readFully(res source.Resource) ([]byte, error) {
	rc, err := res.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		Logger().Warn("problem reading module stream",
			zap.String("path", res.Path()),
			zap.Error(err))
		return nil, err
	}
	return data, nil
}
