package vpath

import "strings"

// ScriptKind is the flavor of script the engine should parse a file as.
type ScriptKind uint8

const (
	ScriptUnknown ScriptKind = iota
	ScriptJS
	ScriptJSX
	ScriptTS
	ScriptTSX
	ScriptJSON
)

func (k ScriptKind) String() string {
	switch k {
	case ScriptJS:
		return "js"
	case ScriptJSX:
		return "jsx"
	case ScriptTS:
		return "ts"
	case ScriptTSX:
		return "tsx"
	case ScriptJSON:
		return "json"
	}
	return "unknown"
}

// Extension is a resolved module extension as the engine understands it.
type Extension string

const (
	ExtJS   Extension = ".js"
	ExtJSX  Extension = ".jsx"
	ExtTS   Extension = ".ts"
	ExtTSX  Extension = ".tsx"
	ExtDTS  Extension = ".d.ts"
	ExtJSON Extension = ".json"
)

// ExtensionForKind maps a script kind to its extension; unknown kinds map to .js.
func ExtensionForKind(k ScriptKind) Extension {
	switch k {
	case ScriptJSX:
		return ExtJSX
	case ScriptTS:
		return ExtTS
	case ScriptTSX:
		return ExtTSX
	case ScriptJSON:
		return ExtJSON
	default:
		return ExtJS
	}
}

// KindForPath returns the script kind for a real or virtual path. Component
// files are always TSX.
func KindForPath(p string) ScriptKind {
	switch kindOf(p) {
	case KindComponentReal, KindComponentVirtual:
		return ScriptTSX
	case KindFrameworkVirtual:
		return ScriptTS
	}
	switch {
	case strings.HasSuffix(p, ".d.ts"), strings.HasSuffix(p, ".ts"),
		strings.HasSuffix(p, ".mts"), strings.HasSuffix(p, ".cts"):
		return ScriptTS
	case strings.HasSuffix(p, ".tsx"):
		return ScriptTSX
	case strings.HasSuffix(p, ".jsx"):
		return ScriptJSX
	case strings.HasSuffix(p, ".js"), strings.HasSuffix(p, ".mjs"), strings.HasSuffix(p, ".cjs"):
		return ScriptJS
	case strings.HasSuffix(p, ".json"):
		return ScriptJSON
	}
	return ScriptUnknown
}

// ExtensionOf returns the engine extension of a path, preferring .d.ts.
func ExtensionOf(p string) (Extension, bool) {
	for _, ext := range []Extension{ExtDTS, ExtTS, ExtTSX, ExtJS, ExtJSX, ExtJSON} {
		if strings.HasSuffix(p, string(ext)) {
			return ext, true
		}
	}
	return "", false
}
