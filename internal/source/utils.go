package source

import (
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode turns raw file bytes into UTF-8 text. A UTF-8 or UTF-16 BOM selects
// the encoding and is dropped; without a BOM the bytes are taken as UTF-8.
func Decode(content []byte) (string, error) {
	if len(content) < 2 || (content[0] != 0xEF && content[0] != 0xFE && content[0] != 0xFF) {
		// быстрый путь: BOM точно нет
		return string(content), nil
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, content)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NormalizePath gives every path the same slash form.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	// единый вид в кроссплатформенных дифах
	return filepath.ToSlash(filepath.Clean(p))
}

// RelativePath returns p relative to base when p lives under base, and p
// itself otherwise.
func RelativePath(p, base string) string {
	if base == "" {
		return p
	}
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, `..\`) {
		return p
	}
	return filepath.ToSlash(rel)
}

// UTF16Len counts the UTF-16 code units needed to encode s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r == utf8.RuneError {
			n++
			continue
		}
		n += utf16.RuneLen(r)
	}
	return n
}

// ByteOffsetForUTF16 walks line until col UTF-16 units have been consumed and
// returns the byte offset reached. Columns past the end clamp to len(line).
func ByteOffsetForUTF16(line string, col int) int {
	if col <= 0 {
		return 0
	}
	units := 0
	for i, r := range line {
		if units >= col {
			return i
		}
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		units += w
	}
	return len(line)
}

// UTF16Position converts a byte-based position within text to UTF-16 columns.
func UTF16Position(text string, idx *LineIndex, pos Position) Position {
	start := idx.LineStart(pos.Line)
	end := min(start+pos.Character, len(text))
	if start > end {
		return Position{Line: pos.Line}
	}
	return Position{Line: pos.Line, Character: UTF16Len(text[start:end])}
}
