// Package snapshot holds the text the type-checking engine sees for every
// file it has been asked about.
//
// A Snapshot is immutable. Updates replace the stored pointer, so a reader
// that loaded a snapshot keeps a consistent (text, version) pair for as long
// as it holds it.
package snapshot

import (
	"strconv"
	"sync"

	"astrols/internal/source"
	"astrols/internal/transpile"
	"astrols/internal/vpath"
)

// Snapshot is the engine-visible state of one real path.
type Snapshot struct {
	RealPath string
	Version  int64
	// Text is what the engine reads: generated script for components, the
	// source itself for plain script files.
	Text   string
	Source string
	// GeneratedFrom is the digest of Source when Text was produced by the
	// transpiler; nil for plain files.
	GeneratedFrom *source.Digest
	ParserError   *transpile.ParserError
	Mappings      transpile.Mappings
	Kind          vpath.ScriptKind

	textOnce  sync.Once
	textLines *source.LineIndex
	srcOnce   sync.Once
	srcLines  *source.LineIndex
}

// VersionString is the version in the form the engine caches on.
func (s *Snapshot) VersionString() string {
	return strconv.FormatInt(s.Version, 10)
}

// IsComponent reports whether Text was generated by the transpiler.
func (s *Snapshot) IsComponent() bool {
	return s.GeneratedFrom != nil
}

// TextLines returns the line index of Text, built on first use.
func (s *Snapshot) TextLines() *source.LineIndex {
	s.textOnce.Do(func() {
		s.textLines = source.BuildLineIndex(s.Text)
	})
	return s.textLines
}

// SourceLines returns the line index of Source, built on first use.
func (s *Snapshot) SourceLines() *source.LineIndex {
	s.srcOnce.Do(func() {
		s.srcLines = source.BuildLineIndex(s.Source)
	})
	return s.srcLines
}

// SourceOffset maps an offset in Text to Source, or -1 when it points into
// synthesized text.
func (s *Snapshot) SourceOffset(gen int) int {
	return s.Mappings.SourceOffset(gen)
}
