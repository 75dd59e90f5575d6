// Package engine defines the narrow contract between the bridge and a
// type-checking engine, plus the registry that owns engine instances.
//
// The engine only ever sees virtual paths. It reads file text and versions
// through a Host and never touches the disk on its own for component files.
package engine

import (
	"context"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"

	"astrols/internal/modcache"
	"astrols/internal/vfs"
)

// ErrDisposed is returned by a handle whose engine was already disposed.
var ErrDisposed = errors.New("engine disposed")

// Category is the engine's own severity scale.
type Category uint8

const (
	CategoryWarning Category = iota
	CategoryError
	CategorySuggestion
	CategoryMessage
)

func (c Category) String() string {
	switch c {
	case CategoryWarning:
		return "warning"
	case CategoryError:
		return "error"
	case CategorySuggestion:
		return "suggestion"
	case CategoryMessage:
		return "message"
	}
	return "unknown"
}

// Flags carries engine hints about a diagnostic.
type Flags uint8

const (
	ReportsUnnecessary Flags = 1 << iota
	ReportsDeprecated
)

// Diagnostic is a raw engine result. Offsets index the virtual text.
type Diagnostic struct {
	// Start is negative for diagnostics without a position.
	Start    int
	Length   int
	Category Category
	Message  string
	Code     int
	Flags    Flags
}

// HasStart reports whether the diagnostic is anchored in the text.
func (d Diagnostic) HasStart() bool { return d.Start >= 0 }

// Host is everything an engine may consult about the project.
type Host interface {
	// ScriptFileNames lists the virtual paths of every known script.
	ScriptFileNames() []string
	// ScriptVersion is the version string the engine keys its caches on.
	// Empty means unknown path.
	ScriptVersion(path string) string
	ScriptSnapshot(path string) (string, bool)
	ResolveModule(spec, containing string) (modcache.ResolvedModule, bool)
	FS() vfs.FS
}

// Engine is the subset of a type-checker the bridge calls.
type Engine interface {
	SyntacticDiagnostics(ctx context.Context, path string) ([]Diagnostic, error)
	SemanticDiagnostics(ctx context.Context, path string) ([]Diagnostic, error)
	SuggestionDiagnostics(ctx context.Context, path string) ([]Diagnostic, error)
	// ProjectUpdated tells the engine that project structure changed and
	// cross-file results must be recomputed.
	ProjectUpdated()
	Close() error
}

// Tree is a syntax tree of one version of a virtual file.
type Tree struct {
	Root    *sitter.Node
	Text    string
	Version string
}

// TreeProvider is implemented by engines that can hand out the syntax tree
// they analyzed, so the boundary walk does not parse the file twice.
type TreeProvider interface {
	SyntaxTree(ctx context.Context, path string) (Tree, bool)
}

// Options are the compiler settings an engine is created with.
type Options struct {
	ResolveJSONModule bool
}

// Factory creates an engine for one project.
type Factory func(key string, host Host, opts Options) (Engine, error)
