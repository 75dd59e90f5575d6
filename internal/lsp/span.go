package lsp

import (
	"math"

	"fortio.org/safecast"
	"github.com/sourcegraph/go-lsp"

	"astrols/internal/diag"
	"astrols/internal/source"
)

// protocol positions are uinteger, i.e. [0, 2^31-1]
func toUInteger(n int) int {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[int32](n)
	if err != nil {
		return math.MaxInt32
	}
	return int(v)
}

// diagnostic is the wire form of a diagnostic. go-lsp's Diagnostic has no
// tags and a string code.
type diagnostic struct {
	Range    lsp.Range              `json:"range"`
	Severity lsp.DiagnosticSeverity `json:"severity,omitempty"`
	Code     int                    `json:"code,omitempty"`
	Source   string                 `json:"source,omitempty"`
	Message  string                 `json:"message"`
	Tags     []int                  `json:"tags,omitempty"`
}

type publishDiagnosticsParams struct {
	URI         lsp.DocumentURI `json:"uri"`
	Version     int             `json:"version,omitempty"`
	Diagnostics []diagnostic    `json:"diagnostics"`
}

// utf16Mapper converts byte-based record positions of one text to UTF-16
// columns.
type utf16Mapper struct {
	text string
	idx  *source.LineIndex
}

func newUTF16Mapper(text string) utf16Mapper {
	return utf16Mapper{text: text, idx: source.BuildLineIndex(text)}
}

func (m utf16Mapper) position(p source.Position) lsp.Position {
	u := source.UTF16Position(m.text, m.idx, p)
	return lsp.Position{Line: toUInteger(u.Line), Character: toUInteger(u.Character)}
}

func (m utf16Mapper) diagnostic(r diag.Record) diagnostic {
	d := diagnostic{
		Range:    lsp.Range{Start: m.position(r.Range.Start), End: m.position(r.Range.End)},
		Severity: lsp.DiagnosticSeverity(r.Severity),
		Code:     int(r.Code),
		Source:   r.Source,
		Message:  r.Message,
	}
	for _, t := range r.Tags {
		// 1 = Unnecessary, 2 = Deprecated
		d.Tags = append(d.Tags, int(t))
	}
	return d
}
