package tsxengine

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrols/internal/diag"
	"astrols/internal/engine"
	"astrols/internal/modcache"
	"astrols/internal/vfs"
)

type fakeHost struct {
	texts    map[string]string
	versions map[string]int
	known    map[string]bool
	resolves int
}

func newHost() *fakeHost {
	return &fakeHost{texts: map[string]string{}, versions: map[string]int{}, known: map[string]bool{}}
}

func (h *fakeHost) set(path, text string) {
	h.texts[path] = text
	h.versions[path]++
}

func (h *fakeHost) ScriptFileNames() []string {
	names := make([]string, 0, len(h.texts))
	for p := range h.texts {
		names = append(names, p)
	}
	return names
}

func (h *fakeHost) ScriptVersion(path string) string {
	v, ok := h.versions[path]
	if !ok {
		return ""
	}
	return strconv.Itoa(v)
}

func (h *fakeHost) ScriptSnapshot(path string) (string, bool) {
	t, ok := h.texts[path]
	return t, ok
}

func (h *fakeHost) ResolveModule(spec, _ string) (modcache.ResolvedModule, bool) {
	h.resolves++
	if h.known[spec] {
		return modcache.ResolvedModule{ResolvedPath: "/proj/" + strings.TrimPrefix(spec, "./")}, true
	}
	return modcache.ResolvedModule{}, false
}

func (h *fakeHost) FS() vfs.FS { return vfs.OS{} }

func all(t *testing.T, e *Engine, path string) (syn, sem, sug []engine.Diagnostic) {
	t.Helper()
	ctx := context.Background()
	var err error
	syn, err = e.SyntacticDiagnostics(ctx, path)
	require.NoError(t, err)
	sem, err = e.SemanticDiagnostics(ctx, path)
	require.NoError(t, err)
	sug, err = e.SuggestionDiagnostics(ctx, path)
	require.NoError(t, err)
	return syn, sem, sug
}

func TestCleanFileHasNoDiagnostics(t *testing.T) {
	h := newHost()
	h.known["./Card.astro"] = true
	h.set("/proj/a.astro.tsx", "import Card from './Card.astro';\n;<><Card title=\"x\" /></>\n")
	syn, sem, sug := all(t, New(h, engine.Options{}), "/proj/a.astro.tsx")
	assert.Empty(t, syn)
	assert.Empty(t, sem)
	assert.Empty(t, sug)
}

func TestUnresolvedImport(t *testing.T) {
	h := newHost()
	text := "import x from './missing';\nexport default x;\n"
	h.set("/proj/a.ts", text)
	_, sem, _ := all(t, New(h, engine.Options{}), "/proj/a.ts")
	require.Len(t, sem, 1)
	assert.Equal(t, int(diag.CannotFindModule), sem[0].Code)
	assert.Equal(t, strings.Index(text, "'./missing'"), sem[0].Start)
	assert.Equal(t, len("'./missing'"), sem[0].Length)
	assert.Equal(t, engine.CategoryError, sem[0].Category)
}

func TestSideEffectImportIsNotReported(t *testing.T) {
	h := newHost()
	h.set("/proj/a.ts", "import './styles.css';\n")
	_, sem, _ := all(t, New(h, engine.Options{}), "/proj/a.ts")
	assert.Empty(t, sem)
}

func TestJSONImportWithoutFlag(t *testing.T) {
	h := newHost()
	h.set("/proj/a.ts", "import data from './data.json';\nexport default data;\n")
	_, sem, _ := all(t, New(h, engine.Options{}), "/proj/a.ts")
	require.Len(t, sem, 1)
	assert.Equal(t, int(diag.JSONModuleNotAllowed), sem[0].Code)

	_, sem, _ = all(t, New(h, engine.Options{ResolveJSONModule: true}), "/proj/a.ts")
	require.Len(t, sem, 1)
	assert.Equal(t, int(diag.CannotFindModule), sem[0].Code)
}

func TestScriptExtensionImport(t *testing.T) {
	h := newHost()
	h.known["./util.ts"] = true
	h.set("/proj/a.ts", "import u from './util.ts';\nexport default u;\n")
	_, sem, _ := all(t, New(h, engine.Options{}), "/proj/a.ts")
	require.Len(t, sem, 1)
	assert.Equal(t, int(diag.ImportRequiresExtension), sem[0].Code)
}

func TestDuplicateAttribute(t *testing.T) {
	h := newHost()
	text := ";<><div a=\"1\" a=\"2\" /></>\n"
	h.set("/proj/a.astro.tsx", text)
	_, sem, _ := all(t, New(h, engine.Options{}), "/proj/a.astro.tsx")
	require.Len(t, sem, 1)
	assert.Equal(t, int(diag.DuplicateJSXAttribute), sem[0].Code)
	assert.Equal(t, strings.LastIndex(text, "a="), sem[0].Start)
}

func TestUnusedImportSuggestion(t *testing.T) {
	h := newHost()
	h.known["./Card.astro"] = true
	h.known["./Other.astro"] = true
	text := "import Card from './Card.astro';\nimport Other from './Other.astro';\n;<><Card /></>\n"
	h.set("/proj/a.astro.tsx", text)
	_, _, sug := all(t, New(h, engine.Options{}), "/proj/a.astro.tsx")
	require.Len(t, sug, 1)
	assert.Equal(t, int(diag.DeclaredButNeverRead), sug[0].Code)
	assert.Equal(t, engine.CategorySuggestion, sug[0].Category)
	assert.Equal(t, engine.ReportsUnnecessary, sug[0].Flags)
	assert.Equal(t, strings.Index(text, "Other"), sug[0].Start)
}

func TestSyntaxErrorsAreErrors(t *testing.T) {
	h := newHost()
	h.set("/proj/a.ts", "const = ;\n")
	syn, _, _ := all(t, New(h, engine.Options{}), "/proj/a.ts")
	require.NotEmpty(t, syn)
	for _, d := range syn {
		assert.Equal(t, engine.CategoryError, d.Category)
		assert.Contains(t, []int{int(diag.DeclarationExpected), int(diag.ExpressionExpected)}, d.Code)
	}
}

func TestResultsCachedPerVersion(t *testing.T) {
	h := newHost()
	h.set("/proj/a.ts", "import x from './missing';\nexport default x;\n")
	e := New(h, engine.Options{})
	all(t, e, "/proj/a.ts")
	all(t, e, "/proj/a.ts")
	assert.EqualValues(t, 1, e.parses.Load())
	assert.Equal(t, 1, h.resolves)

	e.ProjectUpdated()
	all(t, e, "/proj/a.ts")
	assert.EqualValues(t, 1, e.parses.Load(), "project change keeps the tree")
	assert.Equal(t, 2, h.resolves, "but re-resolves imports")

	h.set("/proj/a.ts", "export const y = 1;\n")
	_, sem, _ := all(t, e, "/proj/a.ts")
	assert.EqualValues(t, 2, e.parses.Load())
	assert.Empty(t, sem)
}

func TestUnknownPath(t *testing.T) {
	e := New(newHost(), engine.Options{})
	_, err := e.SyntacticDiagnostics(context.Background(), "/nope.ts")
	assert.ErrorIs(t, err, ErrNoScript)
	_, ok := e.SyntaxTree(context.Background(), "/nope.ts")
	assert.False(t, ok)
}

func TestSyntaxTreeMatchesVersion(t *testing.T) {
	h := newHost()
	h.set("/proj/a.ts", "let a = 1;\n")
	e := New(h, engine.Options{})
	tree, ok := e.SyntaxTree(context.Background(), "/proj/a.ts")
	require.True(t, ok)
	assert.Equal(t, "1", tree.Version)
	assert.Equal(t, "let a = 1;\n", tree.Text)
	assert.Equal(t, "program", tree.Root.Type())
}

func TestCanceledContext(t *testing.T) {
	h := newHost()
	h.set("/proj/a.ts", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(h, engine.Options{}).SemanticDiagnostics(ctx, "/proj/a.ts")
	assert.ErrorIs(t, err, context.Canceled)
}
