package modcache

import (
	"path"
	"strings"

	gojson "github.com/goccy/go-json"

	"astrols/internal/vfs"
	"astrols/internal/vpath"
)

// ResolvedModule is the target of an import.
type ResolvedModule struct {
	ResolvedPath      string          `json:"resolvedPath"`
	Extension         vpath.Extension `json:"extension"`
	IsExternalLibrary bool            `json:"isExternalLibrary,omitempty"`
}

// Resolver runs one module search against a filesystem.
type Resolver interface {
	Resolve(spec, containing string, fsys vfs.FS) (ResolvedModule, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(spec, containing string, fsys vfs.FS) (ResolvedModule, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(spec, containing string, fsys vfs.FS) (ResolvedModule, bool) {
	return f(spec, containing, fsys)
}

// NodeResolver follows node module resolution the way a TypeScript
// compiler does: extension probing, directory index files, package.json
// type entries and node_modules walk-up with @types fallback.
type NodeResolver struct {
	// ResolveJSON allows importing .json modules.
	ResolveJSON bool
}

var probeExtensions = []vpath.Extension{vpath.ExtTS, vpath.ExtTSX, vpath.ExtDTS, vpath.ExtJS, vpath.ExtJSX}

var jsToTS = map[string][]vpath.Extension{
	".js":  {vpath.ExtTS, vpath.ExtTSX, vpath.ExtDTS},
	".jsx": {vpath.ExtTSX},
	".mjs": {".mts", ".d.mts"},
	".cjs": {".cts", ".d.cts"},
}

// Resolve implements Resolver.
func (r NodeResolver) Resolve(spec, containing string, fsys vfs.FS) (ResolvedModule, bool) {
	if spec == "" {
		return ResolvedModule{}, false
	}
	if i := strings.IndexAny(spec, "?#"); i > 0 {
		spec = spec[:i]
	}
	dir := path.Dir(toSlash(containing))
	if isPathLike(spec) {
		candidate := toSlash(spec)
		if !path.IsAbs(candidate) {
			candidate = path.Join(dir, candidate)
		}
		if res, ok := r.loadAsFile(candidate, fsys); ok {
			return res, true
		}
		return r.loadAsDirectory(candidate, fsys)
	}
	return r.loadFromNodeModules(spec, dir, fsys)
}

func isPathLike(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") ||
		spec == "." || spec == ".." || strings.HasPrefix(spec, "/")
}

func (r NodeResolver) loadAsFile(candidate string, fsys vfs.FS) (ResolvedModule, bool) {
	ext := path.Ext(candidate)
	if subs, ok := jsToTS[ext]; ok {
		base := strings.TrimSuffix(candidate, ext)
		for _, sub := range subs {
			if p := base + string(sub); fsys.FileExists(p) {
				return ResolvedModule{ResolvedPath: p, Extension: extensionOf(p)}, true
			}
		}
	}
	if ext == string(vpath.ExtJSON) {
		if fsys.FileExists(candidate) {
			return ResolvedModule{ResolvedPath: candidate, Extension: vpath.ExtJSON}, r.ResolveJSON
		}
		return ResolvedModule{}, false
	}
	if e, ok := vpath.ExtensionOf(candidate); ok && e != vpath.ExtJSON && fsys.FileExists(candidate) {
		return ResolvedModule{ResolvedPath: candidate, Extension: e}, true
	}
	for _, e := range probeExtensions {
		if p := candidate + string(e); fsys.FileExists(p) {
			return ResolvedModule{ResolvedPath: p, Extension: e}, true
		}
	}
	return ResolvedModule{}, false
}

type packageManifest struct {
	Types   string `json:"types"`
	Typings string `json:"typings"`
	Module  string `json:"module"`
	Main    string `json:"main"`
}

func (r NodeResolver) loadAsDirectory(dir string, fsys vfs.FS) (ResolvedModule, bool) {
	if !fsys.DirectoryExists(dir) {
		return ResolvedModule{}, false
	}
	if raw, ok := fsys.ReadFile(path.Join(dir, "package.json")); ok {
		var pkg packageManifest
		if err := gojson.Unmarshal([]byte(raw), &pkg); err == nil {
			for _, entry := range []string{pkg.Types, pkg.Typings, pkg.Module, pkg.Main} {
				if entry == "" {
					continue
				}
				target := path.Join(dir, toSlash(entry))
				if res, ok := r.loadAsFile(target, fsys); ok {
					return res, true
				}
				if res, ok := r.loadIndex(target, fsys); ok {
					return res, true
				}
			}
		}
	}
	return r.loadIndex(dir, fsys)
}

func (r NodeResolver) loadIndex(dir string, fsys vfs.FS) (ResolvedModule, bool) {
	for _, e := range probeExtensions {
		if p := path.Join(dir, "index"+string(e)); fsys.FileExists(p) {
			return ResolvedModule{ResolvedPath: p, Extension: e}, true
		}
	}
	return ResolvedModule{}, false
}

func (r NodeResolver) loadFromNodeModules(spec, dir string, fsys vfs.FS) (ResolvedModule, bool) {
	typesName := typesPackageName(spec)
	for {
		if path.Base(dir) != "node_modules" {
			nm := path.Join(dir, "node_modules")
			if fsys.DirectoryExists(nm) {
				candidate := path.Join(nm, spec)
				if res, ok := r.loadAsFile(candidate, fsys); ok {
					res.IsExternalLibrary = true
					return res, true
				}
				if res, ok := r.loadAsDirectory(candidate, fsys); ok {
					res.IsExternalLibrary = true
					return res, true
				}
				typesDir := path.Join(nm, "@types", typesName)
				if res, ok := r.loadAsDirectory(typesDir, fsys); ok {
					res.IsExternalLibrary = true
					return res, true
				}
				if res, ok := r.loadAsFile(typesDir, fsys); ok {
					res.IsExternalLibrary = true
					return res, true
				}
			}
		}
		parent := path.Dir(dir)
		if parent == dir {
			return ResolvedModule{}, false
		}
		dir = parent
	}
}

// typesPackageName mangles @scope/name into scope__name.
func typesPackageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		if i := strings.IndexByte(spec, '/'); i > 0 {
			return spec[1:i] + "__" + spec[i+1:]
		}
	}
	return spec
}

func extensionOf(p string) vpath.Extension {
	if e, ok := vpath.ExtensionOf(p); ok {
		return e
	}
	return vpath.Extension(path.Ext(p))
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
