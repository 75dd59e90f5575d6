// Package vfs is the filesystem capability set the type-checking engine
// reads through.
//
// OS talks to the real disk. Shim wraps any FS so that component files show
// up as virtual script files whose text comes from the snapshot store.
package vfs

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"astrols/internal/source"
)

// FS is the set of filesystem operations the engine and the resolver use.
type FS interface {
	FileExists(p string) bool
	ReadFile(p string) (string, bool)
	// ReadDirectory lists files under root whose names end with one of
	// extensions. exclude/include are glob patterns matched against the
	// slash path relative to root and against the base name; depth < 0 means
	// unlimited.
	ReadDirectory(root string, extensions, exclude, include []string, depth int) []string
	DirectoryExists(p string) bool
	GetDirectories(p string) []string
	Realpath(p string) string
}

// OS is the real filesystem.
type OS struct{}

var _ FS = OS{}

// FileExists implements FS.
func (OS) FileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile implements FS.
func (OS) ReadFile(p string) (string, bool) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	text, err := source.Decode(raw)
	if err != nil {
		return "", false
	}
	return text, true
}

// DirectoryExists implements FS.
func (OS) DirectoryExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// GetDirectories implements FS.
func (OS) GetDirectories(p string) []string {
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

// Realpath implements FS.
func (OS) Realpath(p string) string {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return p
	}
	return resolved
}

// ReadDirectory implements FS.
func (OS) ReadDirectory(root string, extensions, exclude, include []string, depth int) []string {
	var out []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// нечитаемые каталоги пропускаем
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		rel := source.RelativePath(p, root)
		if d.IsDir() {
			if p == root {
				return nil
			}
			if matchAny(exclude, rel, d.Name()) {
				return fs.SkipDir
			}
			if depth >= 0 && strings.Count(rel, "/")+1 > depth {
				return fs.SkipDir
			}
			return nil
		}
		if !hasExtension(d.Name(), extensions) {
			return nil
		}
		if matchAny(exclude, rel, d.Name()) {
			return nil
		}
		if len(include) > 0 && !matchAny(include, rel, d.Name()) {
			return nil
		}
		out = append(out, source.NormalizePath(p))
		return nil
	})
	sort.Strings(out)
	return out
}

func hasExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// matchAny matches glob patterns against rel and base. A leading "**/" in a
// pattern matches at any depth.
func matchAny(patterns []string, rel, base string) bool {
	for _, pat := range patterns {
		pat = filepath.ToSlash(pat)
		trimmed := strings.TrimPrefix(pat, "**/")
		for _, cand := range []string{rel, base} {
			if ok, _ := path.Match(pat, cand); ok {
				return true
			}
			if ok, _ := path.Match(trimmed, cand); ok {
				return true
			}
		}
	}
	return false
}
