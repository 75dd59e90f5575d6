package diagfmt

import (
	"fmt"
	"path/filepath"
	"strings"

	"astrols/internal/source"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto chooses relative or absolute path automatically.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// ParsePathMode parses auto|absolute|relative|basename.
func ParsePathMode(s string) (PathMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return PathModeAuto, nil
	case "absolute":
		return PathModeAbsolute, nil
	case "relative":
		return PathModeRelative, nil
	case "basename":
		return PathModeBasename, nil
	}
	return PathModeAuto, fmt.Errorf("invalid path mode: %q (expected: auto|absolute|relative|basename)", s)
}

// Texts returns the text a record's positions refer to, for context lines.
type Texts func(path string) (string, bool)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	Context  int // строк контекста над строкой диагностики
	PathMode PathMode
	BaseDir  string
	Width    int // максимальная ширина строки, 0 - не ограничено
	Texts    Texts
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode PathMode
	BaseDir  string
	Max      int // обрезка вывода, не Bag
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
	BaseDir        string
}

func formatPath(p string, mode PathMode, base string) string {
	switch mode {
	case PathModeAbsolute:
		return p
	case PathModeRelative:
		return source.RelativePath(p, base)
	case PathModeBasename:
		return filepath.Base(p)
	default:
		if base == "" {
			return p
		}
		return source.RelativePath(p, base)
	}
}
