package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrols/internal/snapshot"
	"astrols/internal/transpile"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func newShim(t *testing.T) (*Shim, *snapshot.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := snapshot.New(snapshot.Options{Transpiler: transpile.Func(func(src string) transpile.Result {
		res := transpile.Identity(src)
		res.Generated = "/*tsx*/" + src
		return res
	})})
	require.NoError(t, err)
	shim, err := NewShim(OS{}, store, snapshot.DiskProvider{}, ShimOptions{})
	require.NoError(t, err)
	return shim, store, dir
}

func TestShimFileExistsFollowsRealCounterpart(t *testing.T) {
	shim, store, dir := newShim(t)
	card := filepath.Join(dir, "Card.astro")
	writeFile(t, card, "<p/>")

	assert.True(t, shim.FileExists(card+".tsx"))
	assert.False(t, shim.FileExists(filepath.Join(dir, "Missing.astro.tsx")))

	// buffers registered only in memory exist too
	store.Set(filepath.Join(dir, "Draft.astro"), "<p/>")
	assert.True(t, shim.FileExists(filepath.Join(dir, "Draft.astro.tsx")))
}

func TestShimReadFileUsesSnapshotStore(t *testing.T) {
	shim, store, dir := newShim(t)
	card := filepath.Join(dir, "Card.astro")
	writeFile(t, card, "<p>disk</p>")

	text, ok := shim.ReadFile(card + ".tsx")
	require.True(t, ok)
	assert.Equal(t, "/*tsx*/<p>disk</p>", text)

	// an edit in the store wins over the disk contents
	store.Set(card, "<p>edited</p>")
	text, ok = shim.ReadFile(card + ".tsx")
	require.True(t, ok)
	assert.Equal(t, "/*tsx*/<p>edited</p>", text)

	util := filepath.Join(dir, "util.ts")
	writeFile(t, util, "export {}")
	text, ok = shim.ReadFile(util)
	require.True(t, ok)
	assert.Equal(t, "export {}", text)
	_, owned := store.Get(util)
	assert.False(t, owned, "plain files are not pulled into the store")

	_, ok = shim.ReadFile(filepath.Join(dir, "Nope.astro.tsx"))
	assert.False(t, ok)
}

func TestShimReadFileFrameworkStub(t *testing.T) {
	shim, _, dir := newShim(t)
	widget := filepath.Join(dir, "Widget.vue")
	writeFile(t, widget, "<template/>")

	text, ok := shim.ReadFile(widget + ".ts")
	require.True(t, ok)
	assert.Equal(t, FrameworkStub, text)
}

func TestShimReadDirectoryWidensExtensions(t *testing.T) {
	shim, _, dir := newShim(t)
	writeFile(t, filepath.Join(dir, "src", "a.ts"), "")
	writeFile(t, filepath.Join(dir, "src", "Card.astro"), "")
	writeFile(t, filepath.Join(dir, "src", "W.vue"), "")
	writeFile(t, filepath.Join(dir, "src", "notes.md"), "")
	writeFile(t, filepath.Join(dir, "node_modules", "x", "index.ts"), "")

	got := shim.ReadDirectory(dir, []string{".ts"}, []string{"node_modules"}, nil, -1)
	rel := make([]string, 0, len(got))
	for _, p := range got {
		r, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"src/Card.astro", "src/W.vue", "src/a.ts"}, rel)

	plain := OS{}.ReadDirectory(dir, []string{".ts"}, []string{"node_modules"}, nil, -1)
	assert.Len(t, plain, 1)
}

func TestReadDirectoryDepthAndInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.ts"), "")
	writeFile(t, filepath.Join(dir, "sub", "b.ts"), "")
	writeFile(t, filepath.Join(dir, "sub", "deep", "c.ts"), "")

	assert.Len(t, OS{}.ReadDirectory(dir, []string{".ts"}, nil, nil, 0), 1)
	assert.Len(t, OS{}.ReadDirectory(dir, []string{".ts"}, nil, nil, 1), 2)
	assert.Len(t, OS{}.ReadDirectory(dir, []string{".ts"}, nil, []string{"**/b.ts"}, -1), 1)
}

func TestShimDirectoryExistsDenyList(t *testing.T) {
	shim, _, dir := newShim(t)
	react := filepath.Join(dir, "node_modules", "@types", "react")
	node := filepath.Join(dir, "node_modules", "@types", "node")
	require.NoError(t, os.MkdirAll(react, 0o755))
	require.NoError(t, os.MkdirAll(node, 0o755))

	assert.False(t, shim.DirectoryExists(react))
	assert.False(t, shim.DirectoryExists(react+"/"))
	assert.True(t, shim.DirectoryExists(node))
	assert.True(t, OS{}.DirectoryExists(react))
}

func TestShimRealpathKeepsVirtualSuffix(t *testing.T) {
	shim, _, dir := newShim(t)
	card := filepath.Join(dir, "Card.astro")
	writeFile(t, card, "")
	link := filepath.Join(dir, "Link.astro")
	if err := os.Symlink(card, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	realCard := OS{}.Realpath(card)
	assert.Equal(t, realCard+".tsx", shim.Realpath(link+".tsx"))
	assert.Equal(t, realCard, shim.Realpath(link))
}

func TestNewShimRejectsBadPattern(t *testing.T) {
	_, err := NewShim(OS{}, nil, nil, ShimOptions{DenyDirs: []string{"("}})
	assert.Error(t, err)
}
