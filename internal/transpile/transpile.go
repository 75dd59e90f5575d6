// Package transpile turns component sources into the script text the
// type-checking engine reads.
//
// A Transpiler is a pure function of the source text. Besides the generated
// text it returns the segment mappings between generated and source offsets,
// and at most one ParserError when the source could not be parsed at all.
package transpile

import (
	"fmt"

	"astrols/internal/source"
)

// Parser error codes reported by the default transpiler.
const (
	CodeUnterminatedFrontmatter = 9001
	CodeUnterminatedExpression  = 9002
	CodeUnterminatedComment     = 9003
	CodeUnterminatedRawElement  = 9004
	CodeUnterminatedTag         = 9005
)

// ParserError describes a source that could not be parsed.
type ParserError struct {
	Message string
	Range   source.Range
	// Start/Length are byte offsets in the source text.
	Start  int
	Length int
	Code   int
}

func (e *ParserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Range.Start, e.Message)
}

// Result is the output of a single transpile call.
type Result struct {
	Generated   string
	ParserError *ParserError
	Mappings    Mappings
}

// SourceOffset maps an offset in Generated back to the source, or -1 when the
// offset lies in synthesized text.
func (r *Result) SourceOffset(gen int) int {
	if r == nil {
		return -1
	}
	return r.Mappings.SourceOffset(gen)
}

// Transpiler converts component source to generated script text.
type Transpiler interface {
	Transpile(src string) Result
}

// Func adapts an ordinary function to Transpiler.
type Func func(src string) Result

// Transpile implements Transpiler.
func (f Func) Transpile(src string) Result {
	return f(src)
}

// Identity returns src unchanged with a single full-length mapping.
func Identity(src string) Result {
	var m Mappings
	if src != "" {
		m.segs = []Segment{{Gen: 0, Src: 0, Len: len(src)}}
	}
	return Result{Generated: src, Mappings: m}
}

func newParserError(src string, start, length, code int, msg string) *ParserError {
	idx := source.BuildLineIndex(src)
	return &ParserError{
		Message: msg,
		Range:   idx.RangeAt(start, length),
		Start:   start,
		Length:  length,
		Code:    code,
	}
}
