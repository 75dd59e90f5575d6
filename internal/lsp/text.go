package lsp

import (
	"strings"

	"github.com/sourcegraph/go-lsp"

	"astrols/internal/source"
)

// applyChanges applies content changes in order; a change without a range
// replaces the whole document.
func applyChanges(text string, changes []lsp.TextDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetForPosition(text, change.Range.Start)
		end := max(offsetForPosition(text, change.Range.End), start)
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// offsetForPosition converts a UTF-16 position into a byte offset. Lines
// past the end clamp to len(text), characters past the end of a line clamp
// to its terminator.
func offsetForPosition(text string, pos lsp.Position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	idx := source.BuildLineIndex(text)
	if pos.Line >= idx.LineCount() {
		return len(text)
	}
	start := idx.LineStart(pos.Line)
	end := len(text)
	if pos.Line+1 < idx.LineCount() {
		end = idx.LineStart(pos.Line + 1)
	}
	line := strings.TrimRight(text[start:end], "\r\n")
	return start + source.ByteOffsetForUTF16(line, pos.Character)
}
