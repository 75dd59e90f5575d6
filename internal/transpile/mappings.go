package transpile

import (
	"sort"
	"strings"
)

// Segment maps Len bytes of generated text starting at Gen to the source
// text starting at Src.
type Segment struct {
	Gen int
	Src int
	Len int
}

// Mappings is an ordered, non-overlapping list of segments. Generated bytes
// not covered by any segment were synthesized.
type Mappings struct {
	segs []Segment
}

// Segments returns a copy of the segments.
func (m Mappings) Segments() []Segment {
	return append([]Segment(nil), m.segs...)
}

// SourceOffset returns the source offset for gen, or -1 for synthesized text.
// The end of a segment maps to the end of its source span so half-open range
// ends translate cleanly.
func (m Mappings) SourceOffset(gen int) int {
	if gen < 0 {
		return -1
	}
	i := sort.Search(len(m.segs), func(i int) bool { return m.segs[i].Gen+m.segs[i].Len > gen })
	if i < len(m.segs) && m.segs[i].Gen <= gen {
		s := m.segs[i]
		return s.Src + (gen - s.Gen)
	}
	if i > 0 {
		if prev := m.segs[i-1]; prev.Gen+prev.Len == gen {
			return prev.Src + prev.Len
		}
	}
	return -1
}

// GeneratedOffset is the inverse of SourceOffset. Source offsets that were
// dropped from the output return -1.
func (m Mappings) GeneratedOffset(src int) int {
	for _, s := range m.segs {
		if src >= s.Src && src <= s.Src+s.Len {
			return s.Gen + (src - s.Src)
		}
	}
	return -1
}

// builder writes generated text and records mappings as it goes.
type builder struct {
	src  string
	out  strings.Builder
	segs []Segment
}

func newBuilder(src string) *builder {
	b := &builder{src: src}
	b.out.Grow(len(src) + 16)
	return b
}

func (b *builder) pos() int { return b.out.Len() }

// copy emits src[from:to] verbatim.
func (b *builder) copy(from, to int) {
	if to <= from {
		return
	}
	b.mapSpan(from, to-from)
	b.out.WriteString(b.src[from:to])
}

// subst emits text in place of src[at:at+len(text)]; the lengths match so the
// span stays mapped byte for byte.
func (b *builder) subst(text string, at int) {
	if text == "" {
		return
	}
	b.mapSpan(at, len(text))
	b.out.WriteString(text)
}

// synth emits text with no source counterpart.
func (b *builder) synth(text string) {
	b.out.WriteString(text)
}

func (b *builder) mapSpan(src, n int) {
	gen := b.out.Len()
	if k := len(b.segs); k > 0 {
		last := &b.segs[k-1]
		if last.Gen+last.Len == gen && last.Src+last.Len == src {
			last.Len += n
			return
		}
	}
	b.segs = append(b.segs, Segment{Gen: gen, Src: src, Len: n})
}

func (b *builder) result() (string, Mappings) {
	return b.out.String(), Mappings{segs: b.segs}
}
