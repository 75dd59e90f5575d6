// Package tsxengine is the default type-checking engine: a tree-sitter
// TSX parse of each virtual file plus the cross-file checks that matter for
// components (import resolution, JSX attribute rules, unused imports).
//
// It does not attempt full type checking. Results are cached per path and
// keyed by the host's version string; cross-file results also depend on the
// project version bumped by ProjectUpdated.
package tsxengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"astrols/internal/diag"
	"astrols/internal/engine"
)

// ErrNoScript reports a path the host does not know.
var ErrNoScript = errors.New("no script for path")

// maxSnapshotRetries bounds the version/text consistency loop.
const maxSnapshotRetries = 3

type fileState struct {
	version string
	tree    engine.Tree
	facts   facts

	semanticProject uint64
	semantic        []engine.Diagnostic
	semanticDone    bool
}

// Engine implements engine.Engine and engine.TreeProvider.
type Engine struct {
	host engine.Host
	opts engine.Options

	mu      sync.Mutex
	files   map[string]*fileState
	project atomic.Uint64
	parses  atomic.Int64
}

var (
	_ engine.Engine       = (*Engine)(nil)
	_ engine.TreeProvider = (*Engine)(nil)
)

// New creates an engine reading through host.
func New(host engine.Host, opts engine.Options) *Engine {
	return &Engine{host: host, opts: opts, files: make(map[string]*fileState)}
}

// Factory adapts New to engine.Factory.
func Factory(_ string, host engine.Host, opts engine.Options) (engine.Engine, error) {
	if host == nil {
		return nil, errors.New("tsxengine: nil host")
	}
	return New(host, opts), nil
}

// Parse parses text as TSX.
func Parse(text string) *sitter.Tree {
	p := sitter.NewParser()
	p.SetLanguage(tsx.GetLanguage())
	return p.Parse(nil, []byte(text))
}

// state returns the analysis of the current version of path, parsing it
// when the version moved.
func (e *Engine) state(ctx context.Context, path string) (*fileState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		version string
		text    string
	)
	for attempt := 0; ; attempt++ {
		version = e.host.ScriptVersion(path)
		if version == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoScript, path)
		}
		e.mu.Lock()
		st, ok := e.files[path]
		e.mu.Unlock()
		if ok && st.version == version {
			return st, nil
		}
		var found bool
		text, found = e.host.ScriptSnapshot(path)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNoScript, path)
		}
		// текст мог смениться между чтением версии и снапшота
		if e.host.ScriptVersion(path) == version || attempt >= maxSnapshotRetries {
			break
		}
	}

	tree := Parse(text)
	e.parses.Add(1)
	src := []byte(text)
	root := tree.RootNode()
	st := &fileState{
		version: version,
		tree:    engine.Tree{Root: root, Text: text, Version: version},
		facts:   collect(root, src),
	}
	e.mu.Lock()
	e.files[path] = st
	e.mu.Unlock()
	return st, nil
}

// SyntacticDiagnostics implements engine.Engine.
func (e *Engine) SyntacticDiagnostics(ctx context.Context, path string) ([]engine.Diagnostic, error) {
	st, err := e.state(ctx, path)
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.facts.syntactic), nil
}

// SemanticDiagnostics implements engine.Engine.
func (e *Engine) SemanticDiagnostics(ctx context.Context, path string) ([]engine.Diagnostic, error) {
	st, err := e.state(ctx, path)
	if err != nil {
		return nil, err
	}
	project := e.project.Load()
	e.mu.Lock()
	if st.semanticDone && st.semanticProject == project {
		out := slices.Clone(st.semantic)
		e.mu.Unlock()
		return out, nil
	}
	e.mu.Unlock()

	out := slices.Clone(st.facts.attrs)
	for _, ref := range st.facts.imports {
		out = append(out, e.checkImport(ref, path)...)
	}
	slices.SortStableFunc(out, func(a, b engine.Diagnostic) int { return a.Start - b.Start })

	e.mu.Lock()
	st.semantic, st.semanticProject, st.semanticDone = out, project, true
	e.mu.Unlock()
	return slices.Clone(out), nil
}

func (e *Engine) checkImport(ref importRef, path string) []engine.Diagnostic {
	if ref.spec == "" {
		return nil
	}
	var out []engine.Diagnostic
	if ext := scriptExtension(ref.spec); ext != "" {
		out = append(out, engine.Diagnostic{
			Start:    ref.start,
			Length:   ref.end - ref.start,
			Category: engine.CategoryError,
			Message:  fmt.Sprintf("An import path cannot end with a '%s' extension.", ext),
			Code:     int(diag.ImportRequiresExtension),
		})
	}
	if _, ok := e.host.ResolveModule(ref.spec, path); ok || ref.sideEffect {
		return out
	}
	d := engine.Diagnostic{
		Start:    ref.start,
		Length:   ref.end - ref.start,
		Category: engine.CategoryError,
		Message:  fmt.Sprintf("Cannot find module '%s' or its corresponding type declarations.", ref.spec),
		Code:     int(diag.CannotFindModule),
	}
	if strings.HasSuffix(ref.spec, ".json") && !e.opts.ResolveJSONModule {
		d.Message = fmt.Sprintf("Cannot find module '%s'. Consider using '--resolveJsonModule' to import module with '.json' extension.", ref.spec)
		d.Code = int(diag.JSONModuleNotAllowed)
	}
	return append(out, d)
}

func scriptExtension(spec string) string {
	if strings.HasSuffix(spec, ".d.ts") {
		return ""
	}
	for _, ext := range []string{".ts", ".tsx"} {
		if strings.HasSuffix(spec, ext) {
			return ext
		}
	}
	return ""
}

// SuggestionDiagnostics implements engine.Engine.
func (e *Engine) SuggestionDiagnostics(ctx context.Context, path string) ([]engine.Diagnostic, error) {
	st, err := e.state(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []engine.Diagnostic
	for _, ref := range st.facts.imports {
		for _, l := range ref.locals {
			if st.facts.usage[l.name] > 0 {
				continue
			}
			out = append(out, engine.Diagnostic{
				Start:    l.start,
				Length:   l.end - l.start,
				Category: engine.CategorySuggestion,
				Message:  fmt.Sprintf("'%s' is declared but its value is never read.", l.name),
				Code:     int(diag.DeclaredButNeverRead),
				Flags:    engine.ReportsUnnecessary,
			})
		}
	}
	return out, nil
}

// SyntaxTree implements engine.TreeProvider.
func (e *Engine) SyntaxTree(ctx context.Context, path string) (engine.Tree, bool) {
	st, err := e.state(ctx, path)
	if err != nil {
		return engine.Tree{}, false
	}
	return st.tree, true
}

// ProjectUpdated implements engine.Engine.
func (e *Engine) ProjectUpdated() {
	e.project.Add(1)
}

// Forget drops cached analysis of path.
func (e *Engine) Forget(path string) {
	e.mu.Lock()
	delete(e.files, path)
	e.mu.Unlock()
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.files = make(map[string]*fileState)
	e.mu.Unlock()
	return nil
}
