package modcache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrols/internal/snapshot"
	"astrols/internal/vfs"
	"astrols/internal/vpath"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func newCache(t *testing.T, resolver Resolver) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := snapshot.New(snapshot.Options{})
	require.NoError(t, err)
	shim, err := vfs.NewShim(vfs.OS{}, store, snapshot.DiskProvider{}, vfs.ShimOptions{})
	require.NoError(t, err)
	return New(Options{Resolver: resolver, Native: vfs.OS{}, Shim: shim}), dir
}

func TestUnresolvedIsNeverCached(t *testing.T) {
	c, dir := newCache(t, nil)
	from := filepath.Join(dir, "index.ts")

	_, ok := c.Resolve("./missing", from)
	assert.False(t, ok)
	_, ok = c.Resolve("./missing", from)
	assert.False(t, ok)
	assert.EqualValues(t, 2, c.Attempts(), "each miss re-runs resolution")
	assert.Equal(t, 0, c.Len())

	// the module appears later and is found without any invalidation
	writeFile(t, filepath.Join(dir, "missing.ts"), "export {}")
	res, ok := c.Resolve("./missing", from)
	require.True(t, ok)
	assert.Equal(t, vpath.ExtTS, res.Extension)
}

func TestHitsAreCached(t *testing.T) {
	c, dir := newCache(t, nil)
	writeFile(t, filepath.Join(dir, "util.ts"), "export {}")
	from := filepath.Join(dir, "index.ts")

	first, ok := c.Resolve("./util", from)
	require.True(t, ok)
	second, ok := c.Resolve("./util", from)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, c.Attempts())
	assert.Equal(t, 1, c.Len())
}

func TestComponentImportRewrittenToRealPath(t *testing.T) {
	c, dir := newCache(t, nil)
	card := filepath.Join(dir, "components", "Card.astro")
	writeFile(t, card, "<p/>")

	res, ok := c.Resolve("./components/Card.astro", filepath.Join(dir, "pages", "..", "index.astro"))
	require.True(t, ok)
	assert.Equal(t, filepath.ToSlash(card), res.ResolvedPath)
	assert.Equal(t, vpath.ExtTSX, res.Extension)
	assert.False(t, vpath.IsVirtualPath(res.ResolvedPath))
}

func TestNativeHitWinsOverShim(t *testing.T) {
	var phases []string
	resolver := ResolverFunc(func(spec, containing string, fsys vfs.FS) (ResolvedModule, bool) {
		if _, ok := fsys.(vfs.OS); ok {
			phases = append(phases, "native")
			return ResolvedModule{ResolvedPath: "/lib/x.d.ts", Extension: vpath.ExtDTS}, true
		}
		phases = append(phases, "shim")
		return ResolvedModule{}, false
	})
	c, _ := newCache(t, resolver)
	res, ok := c.Resolve("x", "/proj/a.ts")
	require.True(t, ok)
	assert.Equal(t, "/lib/x.d.ts", res.ResolvedPath)
	assert.Equal(t, []string{"native"}, phases)
}

func TestInvalidateRemovesEntriesPointingAtPath(t *testing.T) {
	c, dir := newCache(t, nil)
	card := filepath.Join(dir, "Card.astro")
	writeFile(t, card, "<p/>")
	writeFile(t, filepath.Join(dir, "util.ts"), "")
	a, b := filepath.Join(dir, "a.astro"), filepath.Join(dir, "b.astro")

	_, ok := c.Resolve("./Card.astro", a)
	require.True(t, ok)
	_, ok = c.Resolve("./Card.astro", b)
	require.True(t, ok)
	_, ok = c.Resolve("./util", a)
	require.True(t, ok)

	assert.Equal(t, 2, c.Invalidate(filepath.ToSlash(card)))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, os.Remove(card))
	_, ok = c.Resolve("./Card.astro", a)
	assert.False(t, ok, "deleted target is searched again, not served stale")

	assert.Equal(t, 1, c.InvalidateAll())
	assert.Equal(t, 0, c.Len())
}

func TestInvalidationDuringSearchIsNotOverwritten(t *testing.T) {
	var c *Cache
	resolver := ResolverFunc(func(spec, containing string, fsys vfs.FS) (ResolvedModule, bool) {
		// a delete lands while this search is in flight
		c.InvalidateAll()
		return ResolvedModule{ResolvedPath: "/proj/gone.ts", Extension: vpath.ExtTS}, true
	})
	c = New(Options{Resolver: resolver})
	res, ok := c.Resolve("./gone", "/proj/a.ts")
	require.True(t, ok, "the caller still gets the result")
	assert.Equal(t, "/proj/gone.ts", res.ResolvedPath)
	assert.Equal(t, 0, c.Len(), "stale result must not be cached")
}

func TestResolveAfterInvalidateRunsFreshSearch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	resolver := ResolverFunc(func(spec, containing string, fsys vfs.FS) (ResolvedModule, bool) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return ResolvedModule{ResolvedPath: "/proj/gone.ts", Extension: vpath.ExtTS}, true
		}
		return ResolvedModule{ResolvedPath: "/proj/moved.ts", Extension: vpath.ExtTS}, true
	})
	c := New(Options{Resolver: resolver})

	first := make(chan ResolvedModule, 1)
	go func() {
		res, _ := c.Resolve("./dep", "/proj/a.ts")
		first <- res
	}()
	<-started
	c.Invalidate("/proj/gone.ts")

	// the first search is still blocked; this call must not join it
	res, ok := c.Resolve("./dep", "/proj/a.ts")
	require.True(t, ok)
	assert.Equal(t, "/proj/moved.ts", res.ResolvedPath)
	assert.Equal(t, int64(2), c.Attempts())

	close(release)
	assert.Equal(t, "/proj/gone.ts", (<-first).ResolvedPath)
	res, ok = c.Resolve("./dep", "/proj/a.ts")
	require.True(t, ok)
	assert.Equal(t, "/proj/moved.ts", res.ResolvedPath, "the older search must not overwrite the entry")
	assert.Equal(t, int64(2), c.Attempts())
}

func TestConcurrentResolveSameKey(t *testing.T) {
	c, dir := newCache(t, nil)
	writeFile(t, filepath.Join(dir, "util.ts"), "")
	from := filepath.Join(dir, "index.ts")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := c.Resolve("./util", from)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Attempts(), int64(16))
	assert.Equal(t, 1, c.Len())
}

func TestKeyNormalizesVirtualPaths(t *testing.T) {
	assert.Equal(t, "/a/B.astro::./C.astro", Key("/a/B.astro.tsx", "./C.astro.tsx"))
}
