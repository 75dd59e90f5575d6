// Package modcache memoizes module resolution for the engine.
//
// Entries are keyed by containing file and specifier. Only hits are cached:
// a specifier that fails today is searched again next time, since a new
// file may have appeared in between.
package modcache

import (
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"astrols/internal/metrics"
	"astrols/internal/trace"
	"astrols/internal/vfs"
	"astrols/internal/vpath"
)

// Options configures a Cache.
type Options struct {
	Resolver Resolver
	// Native is the plain filesystem of the first resolution phase.
	Native vfs.FS
	// Shim is the component-aware filesystem of the second phase.
	Shim   vfs.FS
	Tracer trace.Tracer
}

// Cache is safe for concurrent use. Distinct keys resolve in parallel;
// concurrent lookups of one key share a single search.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]ResolvedModule
	// generation растёт при каждой инвалидации; поиск, начатый до неё,
	// не записывает результат
	generation uint64

	group    singleflight.Group
	attempts atomic.Int64

	resolver Resolver
	native   vfs.FS
	shim     vfs.FS
	tracer   trace.Tracer
}

// New creates an empty Cache.
func New(opts Options) *Cache {
	if opts.Resolver == nil {
		opts.Resolver = NodeResolver{}
	}
	if opts.Native == nil {
		opts.Native = vfs.OS{}
	}
	if opts.Shim == nil {
		opts.Shim = opts.Native
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	return &Cache{
		entries:  make(map[string]ResolvedModule),
		resolver: opts.Resolver,
		native:   opts.Native,
		shim:     opts.Shim,
		tracer:   opts.Tracer,
	}
}

// Key builds the composite cache key.
func Key(containing, spec string) string {
	return vpath.ToReal(containing) + "::" + vpath.ToReal(spec)
}

type outcome struct {
	res ResolvedModule
	ok  bool
}

// Resolve returns the target of spec imported from containing.
func (c *Cache) Resolve(spec, containing string) (ResolvedModule, bool) {
	key := Key(containing, spec)

	c.mu.RLock()
	res, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		metrics.Resolved("cached")
		return res, true
	}

	// поиск, начатый до Invalidate, не должен отвечать вызовам после него
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	v, _, _ := c.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		c.attempts.Add(1)
		res, ok := c.search(spec, vpath.ToReal(containing))
		if ok {
			c.mu.Lock()
			if c.generation == gen {
				c.entries[key] = res
			}
			c.mu.Unlock()
		}
		return outcome{res: res, ok: ok}, nil
	})
	out := v.(outcome)
	if out.ok {
		metrics.Resolved("resolved")
		trace.Point(c.tracer, trace.ScopeModule, "resolve", spec, "from", containing, "to", out.res.ResolvedPath)
	} else {
		metrics.Resolved("unresolved")
		trace.Point(c.tracer, trace.ScopeModule, "resolve:miss", spec, "from", containing)
	}
	return out.res, out.ok
}

// search runs the two-phase resolution: the plain filesystem first, then
// the shim, whose virtual component hits are rewritten to the real path.
func (c *Cache) search(spec, containing string) (ResolvedModule, bool) {
	if res, ok := c.resolver.Resolve(spec, containing, c.native); ok && !vpath.IsVirtualPath(res.ResolvedPath) {
		return res, true
	}
	res, ok := c.resolver.Resolve(spec, containing, c.shim)
	if !ok {
		return ResolvedModule{}, false
	}
	if vpath.IsVirtualPath(res.ResolvedPath) {
		res.ResolvedPath = vpath.ToReal(res.ResolvedPath)
		res.Extension = vpath.ExtensionForKind(vpath.ScriptTSX)
	}
	return res, true
}

// Invalidate drops every entry resolving to resolvedRealPath and returns how
// many were removed.
func (c *Cache) Invalidate(resolvedRealPath string) int {
	target := vpath.ToReal(resolvedRealPath)
	c.mu.Lock()
	c.generation++
	n := 0
	for key, res := range c.entries {
		if vpath.ToReal(res.ResolvedPath) == target {
			delete(c.entries, key)
			n++
		}
	}
	c.mu.Unlock()
	metrics.Invalidated(n)
	trace.Point(c.tracer, trace.ScopeModule, "resolve:invalidate", target)
	return n
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	c.generation++
	n := len(c.entries)
	c.entries = make(map[string]ResolvedModule)
	c.mu.Unlock()
	metrics.Invalidated(n)
	return n
}

// Attempts returns how many searches actually ran.
func (c *Cache) Attempts() int64 {
	return c.attempts.Load()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
