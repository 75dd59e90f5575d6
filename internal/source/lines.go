package source

import "sort"

// LineIndex holds the offset at which each line starts. The first entry is
// always 0. It belongs to exactly one text and must be rebuilt when the text
// changes.
type LineIndex struct {
	starts []int
	size   int
}

// BuildLineIndex scans text once. "\r\n" counts as a single terminator; a lone
// '\r' or '\n' terminates a line as well.
func BuildLineIndex(text string) *LineIndex {
	starts := make([]int, 1, len(text)/32+1)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts, size: len(text)}
}

// LineCount returns the number of lines, counting a trailing empty line.
func (idx *LineIndex) LineCount() int {
	return len(idx.starts)
}

// LineStart returns the offset of the first byte of line, clamped to the text.
func (idx *LineIndex) LineStart(line int) int {
	if line <= 0 {
		return 0
	}
	if line >= len(idx.starts) {
		return idx.size
	}
	return idx.starts[line]
}

// PositionAt maps a byte offset to line/character. The offset is clamped into
// [0, len(text)] first.
func (idx *LineIndex) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > idx.size {
		offset = idx.size
	}
	// бинпоиск: наибольший start <= offset
	line := sort.Search(len(idx.starts), func(i int) bool { return idx.starts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line, Character: offset - idx.starts[line]}
}

// OffsetAt is the inverse of PositionAt; characters past the end of a line
// clamp to the start of the next line.
func (idx *LineIndex) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(idx.starts) {
		return idx.size
	}
	start := idx.starts[pos.Line]
	next := idx.size
	if pos.Line+1 < len(idx.starts) {
		next = idx.starts[pos.Line+1]
	}
	off := start + max(pos.Character, 0)
	if off > next {
		off = next
	}
	return off
}

// RangeAt maps [start, start+length) to a Range.
func (idx *LineIndex) RangeAt(start, length int) Range {
	return Range{
		Start: idx.PositionAt(start),
		End:   idx.PositionAt(start + max(length, 0)),
	}
}

// PositionAt builds a throwaway index for text. Callers mapping many offsets
// against one text should build the index once.
func PositionAt(offset int, text string) Position {
	return BuildLineIndex(text).PositionAt(offset)
}
