package vfs

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"astrols/internal/snapshot"
	"astrols/internal/vpath"
)

// DefaultDenyDirs keeps resolution away from directories that are huge and
// never needed.
var DefaultDenyDirs = []string{`node_modules/@types/react$`}

// FrameworkStub is the text served for other-framework virtual files. Their
// own transpilers live outside this process; the stub types the default
// export loosely so imports of them type-check.
const FrameworkStub = "declare const component: any;\nexport default component;\n"

// ShimOptions configures a Shim.
type ShimOptions struct {
	// DenyDirs are regular expressions matched against slash-form
	// directory paths. nil selects DefaultDenyDirs.
	DenyDirs []string
	// ExtraExtensions are added to every ReadDirectory request on top of
	// the embedded component extensions.
	ExtraExtensions []string
}

// Shim presents component files to the engine as virtual script files.
// It performs no caching of its own.
type Shim struct {
	base     FS
	store    *snapshot.Store
	provider snapshot.ContentProvider
	deny     []*regexp.Regexp
	exts     []string
}

var _ FS = (*Shim)(nil)

// NewShim wraps base. Component text is read from store, filled from
// provider on a miss.
func NewShim(base FS, store *snapshot.Store, provider snapshot.ContentProvider, opts ShimOptions) (*Shim, error) {
	patterns := opts.DenyDirs
	if patterns == nil {
		patterns = DefaultDenyDirs
	}
	deny := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid deny-dirs pattern %q: %w", pat, err)
		}
		deny = append(deny, re)
	}
	exts := append(vpath.EmbeddedExtensions(), opts.ExtraExtensions...)
	return &Shim{base: base, store: store, provider: provider, deny: deny, exts: exts}, nil
}

// FileExists reports a virtual path as existing iff its real counterpart
// exists, on disk or as a registered buffer.
func (s *Shim) FileExists(p string) bool {
	realPath := vpath.EnsureReal(p)
	if _, ok := s.store.Get(realPath); ok {
		return true
	}
	return s.base.FileExists(realPath)
}

// ReadFile serves the snapshot store's text for every path it owns and for
// every component path. Other files are read from the base FS.
func (s *Shim) ReadFile(p string) (string, bool) {
	if k, err := vpath.Classify(p); err == nil && k == vpath.KindFrameworkVirtual {
		if !s.FileExists(p) {
			return "", false
		}
		return FrameworkStub, true
	}
	realPath := vpath.ToReal(p)
	if snap, ok := s.store.Get(realPath); ok {
		return snap.Text, true
	}
	if vpath.IsComponentPath(realPath) {
		snap, ok := s.store.GetOrCreate(realPath, s.provider)
		if !ok {
			return "", false
		}
		return snap.Text, true
	}
	return s.base.ReadFile(p)
}

// ReadDirectory widens extensions with the embedded component extensions.
func (s *Shim) ReadDirectory(root string, extensions, exclude, include []string, depth int) []string {
	widened := make([]string, 0, len(extensions)+len(s.exts))
	widened = append(widened, extensions...)
	for _, ext := range s.exts {
		if !slices.Contains(widened, ext) {
			widened = append(widened, ext)
		}
	}
	return s.base.ReadDirectory(root, widened, exclude, include, depth)
}

// DirectoryExists reports false for denied directories.
func (s *Shim) DirectoryExists(p string) bool {
	if s.Denied(p) {
		return false
	}
	return s.base.DirectoryExists(p)
}

// Denied reports whether p matches the deny list.
func (s *Shim) Denied(p string) bool {
	slash := strings.TrimSuffix(strings.ReplaceAll(p, `\`, "/"), "/")
	for _, re := range s.deny {
		if re.MatchString(slash) {
			return true
		}
	}
	return false
}

// GetDirectories implements FS.
func (s *Shim) GetDirectories(p string) []string {
	return s.base.GetDirectories(p)
}

// Realpath resolves a virtual path through its real counterpart and puts
// the virtual suffix back.
func (s *Shim) Realpath(p string) string {
	if !vpath.IsFrameworkVirtualPath(p) {
		return s.base.Realpath(p)
	}
	realPath := vpath.EnsureReal(p)
	suffix := strings.TrimPrefix(p, realPath)
	return s.base.Realpath(realPath) + suffix
}

