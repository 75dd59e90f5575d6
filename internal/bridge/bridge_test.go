package bridge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrols/internal/diag"
	"astrols/internal/diagnostics"
	"astrols/internal/engine"
	"astrols/internal/vpath"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func newBridge(t *testing.T, opts Options) (*Bridge, string) {
	t.Helper()
	if opts.Root == "" {
		opts.Root = filepath.ToSlash(t.TempDir())
	}
	b, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, opts.Root
}

func TestEndToEndPlainFile(t *testing.T) {
	b, dir := newBridge(t, Options{})
	writeFile(t, filepath.Join(dir, "util.ts"), "export const u = 1;\n")
	a := dir + "/a.x"
	ctx := context.Background()

	b.RegisterOrUpdateFile(a, "const a = 1;\nexport default a;\n")
	got, ok := b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	assert.Empty(t, got)

	text := "import x from './missing';\nexport default x;\n"
	b.RegisterOrUpdateFile(a, text)
	got, ok = b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, diag.CannotFindModule, got[0].Code)
	assert.Equal(t, a, got[0].Path)
	assert.Equal(t, strings.Index(text, "'./missing'"), got[0].Range.Start.Character)

	_, ok = b.ResolveModule("./util", a)
	require.True(t, ok)
	require.Equal(t, 1, b.Resolutions().Len())

	assert.True(t, b.RemoveFile(a))
	got, ok = b.GetDiagnostics(ctx, a)
	assert.False(t, ok)
	assert.Empty(t, got)

	assert.False(t, b.RemoveFile(dir+"/util.ts"), "util.ts was never registered")
	assert.Equal(t, 0, b.Resolutions().Len(), "entries resolving to a removed file are gone")
}

func TestComponentDiagnosticsMapToSource(t *testing.T) {
	b, dir := newBridge(t, Options{})
	writeFile(t, filepath.Join(dir, "Card.astro"), "<p>card</p>\n")
	index := dir + "/index.astro"
	src := "---\n" +
		"import Card from './Card.astro';\n" +
		"import Missing from './Missing.astro';\n" +
		"---\n" +
		"<Card a=\"1\" a=\"2\" />\n" +
		"<Missing />\n"

	b.RegisterOrUpdateFile(index, src)
	got, ok := b.GetDiagnostics(context.Background(), index)
	require.True(t, ok)
	require.Len(t, got, 1, "duplicate attribute is a translation artifact")
	assert.Equal(t, diag.CannotFindModule, got[0].Code)
	assert.Equal(t, 2, got[0].Range.Start.Line)
	assert.Equal(t, len("import Missing from "), got[0].Range.Start.Character)
	assert.Equal(t, "ts", got[0].Source)

	res, ok := b.ResolveModule("./Card.astro", index)
	require.True(t, ok)
	assert.Equal(t, dir+"/Card.astro", res.ResolvedPath)
	assert.Equal(t, vpath.ExtTSX, res.Extension)
}

func TestParserErrorShortCircuits(t *testing.T) {
	b, dir := newBridge(t, Options{})
	p := dir + "/broken.astro"
	b.RegisterOrUpdateFile(p, "---\nimport x from './nope';\n")
	got, ok := b.GetDiagnostics(context.Background(), p)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, diag.ParserFrontmatterUnterminated, got[0].Code)
	assert.Equal(t, diag.SevError, got[0].Severity)
}

type editingEngine struct {
	host       engine.Host
	onSemantic func()
}

func (e *editingEngine) SyntacticDiagnostics(context.Context, string) ([]engine.Diagnostic, error) {
	return nil, nil
}

func (e *editingEngine) SuggestionDiagnostics(context.Context, string) ([]engine.Diagnostic, error) {
	return nil, nil
}

func (e *editingEngine) SemanticDiagnostics(_ context.Context, path string) ([]engine.Diagnostic, error) {
	if f := e.onSemantic; f != nil {
		e.onSemantic = nil
		f()
	}
	v := e.host.ScriptVersion(path)
	return []engine.Diagnostic{{Start: 0, Length: 1, Category: engine.CategoryError, Message: "v" + v, Code: 2304}}, nil
}

func (e *editingEngine) ProjectUpdated() {}
func (e *editingEngine) Close() error    { return nil }

func TestPassRestartsOnConcurrentEdit(t *testing.T) {
	var eng *editingEngine
	b, dir := newBridge(t, Options{Factory: func(_ string, host engine.Host, _ engine.Options) (engine.Engine, error) {
		eng = &editingEngine{host: host}
		return eng, nil
	}})
	p := dir + "/a.ts"
	b.RegisterOrUpdateFile(p, "xx")
	eng.onSemantic = func() { b.RegisterOrUpdateFile(p, "yy") }

	got, ok := b.GetDiagnostics(context.Background(), p)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].Message, "the result belongs to the newer version only")
}

func TestHostMethods(t *testing.T) {
	b, dir := newBridge(t, Options{})
	card := dir + "/Card.astro"
	b.RegisterOrUpdateFile(card, "<p>x</p>")
	b.RegisterOrUpdateFile(dir+"/util.ts", "export {}")

	assert.ElementsMatch(t, []string{card + ".tsx", dir + "/util.ts"}, b.ScriptFileNames())
	assert.Equal(t, "1", b.ScriptVersion(card+".tsx"))
	assert.Equal(t, "", b.ScriptVersion(dir+"/nope.ts"))

	text, ok := b.ScriptSnapshot(card + ".tsx")
	require.True(t, ok)
	virt, ok := b.VirtualText(card)
	require.True(t, ok)
	assert.Equal(t, text, virt)
	assert.True(t, strings.HasPrefix(virt, "<>"))

	assert.True(t, b.FS().FileExists(card+".tsx"), "registered buffers exist through the shim")
}

func TestDiscoverFiles(t *testing.T) {
	b, dir := newBridge(t, Options{})
	writeFile(t, filepath.Join(dir, "src", "pages", "index.astro"), "")
	writeFile(t, filepath.Join(dir, "src", "lib.ts"), "")
	writeFile(t, filepath.Join(dir, "README.md"), "")
	writeFile(t, filepath.Join(dir, "node_modules", "x", "index.js"), "")
	writeFile(t, filepath.Join(dir, "dist", "out.js"), "")

	var rel []string
	for _, p := range b.DiscoverFiles("") {
		r, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.ElementsMatch(t, []string{"src/pages/index.astro", "src/lib.ts"}, rel)
}

func TestOpenFileReadsDisk(t *testing.T) {
	b, dir := newBridge(t, Options{})
	writeFile(t, filepath.Join(dir, "a.ts"), "export const a = 1;\n")
	v, ok := b.OpenFile(dir + "/a.ts")
	require.True(t, ok)
	assert.EqualValues(t, 1, v)
	_, ok = b.OpenFile(dir + "/missing.ts")
	assert.False(t, ok)

	// a caller buffer wins and bumps the version
	v = b.RegisterOrUpdateFile(dir+"/a.ts", "export const a = 2;\n")
	assert.EqualValues(t, 2, v)
}

func TestResetAndClose(t *testing.T) {
	b, dir := newBridge(t, Options{})
	b.RegisterOrUpdateFile(dir+"/a.ts", "let a = 1;")
	b.Reset()
	assert.Empty(t, b.Files())

	b.RegisterOrUpdateFile(dir+"/a.ts", "let a = 1;")
	require.NoError(t, b.Close())
	_, ok := b.GetDiagnostics(context.Background(), dir+"/a.ts")
	assert.False(t, ok, "closed bridge has no engine")
}

func TestSharedRegistry(t *testing.T) {
	created := 0
	reg := engine.NewRegistry(func(_ string, host engine.Host, _ engine.Options) (engine.Engine, error) {
		created++
		return &editingEngine{host: host}, nil
	})
	root := filepath.ToSlash(t.TempDir())
	b1, err := New(Options{Root: root, Engines: reg})
	require.NoError(t, err)
	b2, err := New(Options{Root: root, Engines: reg})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	require.NoError(t, b1.Close())
	_, ok := reg.Get(root + "/tsconfig.json")
	assert.True(t, ok, "second bridge still holds the engine")
	require.NoError(t, b2.Close())
	_, ok = reg.Get(root + "/tsconfig.json")
	assert.False(t, ok)
}

func TestSetFilterAppliesToNextPass(t *testing.T) {
	b, dir := newBridge(t, Options{})
	a := dir + "/a.ts"
	b.RegisterOrUpdateFile(a, "import x from './missing';\nexport default x;\n")
	ctx := context.Background()

	got, ok := b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	require.Len(t, got, 1)

	require.NoError(t, b.SetFilter(diagnostics.Options{Rules: []diagnostics.Rule{
		{Code: diag.CannotFindModule, When: `path endsWith "a.ts"`},
	}}))
	got, ok = b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	assert.Empty(t, got)

	assert.Error(t, b.SetFilter(diagnostics.Options{Rules: []diagnostics.Rule{{When: "path +"}}}),
		"a broken rule keeps the previous filter")
	got, ok = b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestProjectChangedDropsResolutionsAndRechecks(t *testing.T) {
	b, dir := newBridge(t, Options{})
	writeFile(t, filepath.Join(dir, "util.ts"), "export const u = 1;\n")
	a := dir + "/a.ts"
	ctx := context.Background()

	b.RegisterOrUpdateFile(a, "import u from './util';\nimport l from './late';\nexport default u + l;\n")
	got, ok := b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, diag.CannotFindModule, got[0].Code)
	require.Equal(t, 1, b.Resolutions().Len())

	// a file appearing on disk alone does not touch cached semantic results
	writeFile(t, filepath.Join(dir, "late.ts"), "export const l = 2;\n")
	got, ok = b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	assert.Len(t, got, 1)

	b.ProjectChanged()
	assert.Equal(t, 0, b.Resolutions().Len())

	got, ok = b.GetDiagnostics(ctx, a)
	require.True(t, ok)
	assert.Empty(t, got)
	assert.Equal(t, 2, b.Resolutions().Len())
}
