package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrols/internal/source"
	"astrols/internal/transpile"
	"astrols/internal/vpath"
)

func newStore(t *testing.T, tr transpile.Transpiler) *Store {
	t.Helper()
	s, err := New(Options{Transpiler: tr})
	require.NoError(t, err)
	return s
}

func withHeader(src string) transpile.Result {
	res := transpile.Identity(src)
	res.Generated = "// gen\n" + src
	return res
}

func TestSetSameTextKeepsVersion(t *testing.T) {
	s := newStore(t, nil)
	first := s.Set("/proj/a.ts", "export const a = 1;")
	require.EqualValues(t, 1, first.Version)

	again := s.Set("/proj/a.ts", "export const a = 1;")
	assert.Same(t, first, again)
	assert.EqualValues(t, 1, again.Version)

	next := s.Set("/proj/a.ts", "export const a = 2;")
	assert.EqualValues(t, 2, next.Version)
	assert.Equal(t, "export const a = 2;", next.Text)
	assert.Equal(t, "1", first.VersionString(), "old snapshot stays intact")
}

func TestComponentIsTranspiledOncePerSource(t *testing.T) {
	s := newStore(t, transpile.Func(withHeader))
	a := s.Set("/proj/Card.astro", "<p/>")
	assert.Equal(t, "// gen\n<p/>", a.Text)
	assert.True(t, a.IsComponent())
	require.NotNil(t, a.GeneratedFrom)
	assert.Equal(t, source.Hash("<p/>"), *a.GeneratedFrom)
	assert.Equal(t, vpath.ScriptTSX, a.Kind)

	s.Set("/proj/Card.astro", "<div/>")
	back := s.Set("/proj/Card.astro", "<p/>")
	assert.EqualValues(t, 3, back.Version)
	assert.Equal(t, "// gen\n<p/>", back.Text)
	assert.EqualValues(t, 2, s.TranspileCount(), "identical source reuses generated text")

	// another path with the same source shares the cached result
	s.Set("/proj/Other.astro", "<p/>")
	assert.EqualValues(t, 2, s.TranspileCount())
}

func TestPlainFilesAreNotTranspiled(t *testing.T) {
	s := newStore(t, transpile.Func(withHeader))
	snap := s.Set("/proj/util.ts", "export {}")
	assert.Equal(t, "export {}", snap.Text)
	assert.Nil(t, snap.GeneratedFrom)
	assert.EqualValues(t, 0, s.TranspileCount())
}

func TestVirtualPathKeysToReal(t *testing.T) {
	s := newStore(t, nil)
	s.Set("/proj/Card.astro", "<p/>")
	snap, ok := s.Get("/proj/Card.astro.tsx")
	require.True(t, ok)
	assert.Equal(t, "/proj/Card.astro", snap.RealPath)
}

func TestGetOrCreate(t *testing.T) {
	s := newStore(t, nil)
	calls := 0
	provider := ProviderFunc(func(p string) (string, bool) {
		calls++
		if p == "/proj/missing.ts" {
			return "", false
		}
		return "export const x = 1;", true
	})

	_, ok := s.GetOrCreate("/proj/missing.ts", provider)
	assert.False(t, ok, "missing source is absent, not an error")

	snap, ok := s.GetOrCreate("/proj/x.ts", provider)
	require.True(t, ok)
	assert.EqualValues(t, 1, snap.Version)

	again, ok := s.GetOrCreate("/proj/x.ts", provider)
	require.True(t, ok)
	assert.Same(t, snap, again)
	assert.Equal(t, 2, calls)
}

func TestDeleteThenRecreateContinuesVersions(t *testing.T) {
	s := newStore(t, nil)
	s.Set("/proj/a.ts", "1")
	s.Set("/proj/a.ts", "2")
	require.True(t, s.Delete("/proj/a.ts"))
	assert.False(t, s.Delete("/proj/a.ts"))

	_, ok := s.Get("/proj/a.ts")
	assert.False(t, ok)

	snap := s.Set("/proj/a.ts", "1")
	assert.EqualValues(t, 3, snap.Version)
}

func TestPathsAndReset(t *testing.T) {
	s := newStore(t, nil)
	s.Set("/b.ts", "b")
	s.Set("/a.ts", "a")
	assert.Equal(t, []string{"/a.ts", "/b.ts"}, s.Paths())
	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestConcurrentWritersBumpOncePerChange(t *testing.T) {
	s := newStore(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set("/proj/a.ts", fmt.Sprintf("v%d", i))
		}(i)
	}
	wg.Wait()
	snap, ok := s.Get("/proj/a.ts")
	require.True(t, ok)
	assert.EqualValues(t, 50, snap.Version)
}

func TestDiskProviderDecodes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.astro")
	require.NoError(t, os.WriteFile(p, []byte("\xEF\xBB\xBF<p/>"), 0o644))

	text, ok := DiskProvider{}.Content(p)
	require.True(t, ok)
	assert.Equal(t, "<p/>", text)

	_, ok = DiskProvider{}.Content(filepath.Join(dir, "nope.astro"))
	assert.False(t, ok)
}

func TestOverlayPrefersBuffers(t *testing.T) {
	o := NewOverlay(ProviderFunc(func(string) (string, bool) { return "disk", true }))
	o.Put("/a.ts", "buffer")
	text, _ := o.Content("/a.ts")
	assert.Equal(t, "buffer", text)
	o.Drop("/a.ts")
	text, _ = o.Content("/a.ts")
	assert.Equal(t, "disk", text)
	assert.False(t, o.Has("/a.ts"))
}
