// Package vpath classifies and converts between real component paths and the
// virtual script paths presented to the type-checking engine.
//
// All functions are pure: they look at suffixes only and never touch the
// filesystem.
package vpath

import (
	"errors"
	"strings"
)

const (
	// ComponentExt is the extension of component files.
	ComponentExt = ".astro"
	// VirtualSuffix is appended to a component path to form its virtual path.
	VirtualSuffix = ".tsx"
)

// ErrAmbiguousPath reports a path that matches more than one virtual form.
var ErrAmbiguousPath = errors.New("ambiguous virtual path")

// Kind is the classification of a path string.
type Kind uint8

const (
	// KindPlain is an ordinary script or data file.
	KindPlain Kind = iota
	// KindComponentReal is a component source file (Foo.astro).
	KindComponentReal
	// KindComponentVirtual is the virtual script form of a component (Foo.astro.tsx).
	KindComponentVirtual
	KindFrameworkReal
	KindFrameworkVirtual
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindComponentReal:
		return "component-real"
	case KindComponentVirtual:
		return "component-virtual"
	case KindFrameworkReal:
		return "other-framework-real"
	case KindFrameworkVirtual:
		return "other-framework-virtual"
	}
	return "unknown"
}

// virtualForm pairs a source extension with the suffix its virtual path gets.
type virtualForm struct {
	ext     string
	virtual string
	kind    Kind
}

// Ordered from most specific to least specific suffix.
var virtualForms = []virtualForm{
	{ext: ComponentExt, virtual: VirtualSuffix, kind: KindComponentVirtual},
	{ext: ".svelte", virtual: ".ts", kind: KindFrameworkVirtual},
	{ext: ".vue", virtual: ".ts", kind: KindFrameworkVirtual},
	{ext: ".jsx", virtual: ".ts", kind: KindFrameworkVirtual},
	{ext: ".tsx", virtual: ".ts", kind: KindFrameworkVirtual},
}

var frameworkExts = []string{".svelte", ".vue"}

// Classify returns the kind of p. Paths whose virtual suffix strips down to
// another virtual path (Card.astro.tsx.ts) are rejected with ErrAmbiguousPath.
func Classify(p string) (Kind, error) {
	for _, form := range virtualForms {
		suffix := form.ext + form.virtual
		if !strings.HasSuffix(p, suffix) {
			continue
		}
		inner := strings.TrimSuffix(p, form.virtual)
		if _, nested := matchVirtual(inner); nested {
			return KindPlain, ErrAmbiguousPath
		}
		return form.kind, nil
	}
	if strings.HasSuffix(p, ComponentExt) {
		return KindComponentReal, nil
	}
	for _, ext := range frameworkExts {
		if strings.HasSuffix(p, ext) {
			return KindFrameworkReal, nil
		}
	}
	return KindPlain, nil
}

func matchVirtual(p string) (virtualForm, bool) {
	for _, form := range virtualForms {
		if strings.HasSuffix(p, form.ext+form.virtual) {
			return form, true
		}
	}
	return virtualForm{}, false
}

func kindOf(p string) Kind {
	k, err := Classify(p)
	if err != nil {
		return KindPlain
	}
	return k
}

// IsComponentPath reports whether p is a real component path.
func IsComponentPath(p string) bool {
	return kindOf(p) == KindComponentReal
}

// IsVirtualPath reports whether p is the virtual form of a component.
func IsVirtualPath(p string) bool {
	return kindOf(p) == KindComponentVirtual
}

// IsFrameworkVirtualPath reports whether p is any recognized virtual form,
// component or other framework.
func IsFrameworkVirtualPath(p string) bool {
	k := kindOf(p)
	return k == KindComponentVirtual || k == KindFrameworkVirtual
}

// ToVirtual appends VirtualSuffix to component paths. Everything else,
// including paths that are already virtual, is returned unchanged.
func ToVirtual(p string) string {
	if IsComponentPath(p) {
		return p + VirtualSuffix
	}
	return p
}

// ToReal strips VirtualSuffix from a component virtual path.
func ToReal(p string) string {
	if IsVirtualPath(p) {
		return strings.TrimSuffix(p, VirtualSuffix)
	}
	return p
}

// NormalizeToReal is used wherever a path re-enters caller-visible space.
func NormalizeToReal(p string) string {
	return ToReal(p)
}

// EnsureReal strips whichever recognized virtual suffix p carries.
func EnsureReal(p string) string {
	k, err := Classify(p)
	if err != nil {
		return p
	}
	switch k {
	case KindComponentVirtual:
		return strings.TrimSuffix(p, VirtualSuffix)
	case KindFrameworkVirtual:
		form, _ := matchVirtual(p)
		return strings.TrimSuffix(p, form.virtual)
	}
	return p
}

// EmbeddedExtensions lists the component/framework extensions injected into
// directory scans so candidate searches find them.
func EmbeddedExtensions() []string {
	return []string{ComponentExt, ".svelte", ".vue"}
}
