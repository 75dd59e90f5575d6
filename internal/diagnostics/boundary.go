package diagnostics

import (
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind classifies a boundary span of the virtual text.
type Kind uint8

const (
	// ForeignScript spans are embedded script the engine must not validate.
	ForeignScript Kind = iota + 1
	// OpaqueBlock spans hold prose where some codes are expected.
	OpaqueBlock
)

func (k Kind) String() string {
	switch k {
	case ForeignScript:
		return "foreign-script"
	case OpaqueBlock:
		return "opaque-block"
	}
	return "unknown"
}

// Boundary is a half-open [Start, End) span of virtual-text offsets.
type Boundary struct {
	Kind  Kind
	Start int
	End   int
}

// Boundaries are the spans found in one version of a virtual file. Each
// list is ordered by Start.
type Boundaries struct {
	Script []Boundary
	Opaque []Boundary
}

// Tags maps element names to boundary kinds.
type Tags struct {
	Script []string
	Opaque []string
}

// DefaultTags marks <script> as foreign and <Markdown> as opaque.
var DefaultTags = Tags{Script: []string{"script"}, Opaque: []string{"Markdown"}}

func (t Tags) kindOf(name string) (Kind, bool) {
	switch {
	case slices.Contains(t.Script, name):
		return ForeignScript, true
	case slices.Contains(t.Opaque, name):
		return OpaqueBlock, true
	}
	return 0, false
}

// FindBoundaries collects boundary spans from a TSX syntax tree. The walk
// uses an explicit stack, so nesting depth never grows the Go stack.
// Matching elements are still descended into; a <script> nested in a
// <Markdown> produces both spans.
func FindBoundaries(root *sitter.Node, src []byte, tags Tags) Boundaries {
	var b Boundaries
	if root == nil {
		return b
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type() == "jsx_element" {
			if kind, ok := tags.kindOf(elementName(n, src)); ok {
				span := Boundary{Kind: kind, Start: int(n.StartByte()), End: int(n.EndByte())}
				if kind == ForeignScript {
					b.Script = append(b.Script, span)
				} else {
					b.Opaque = append(b.Opaque, span)
				}
			}
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return b
}

// elementName returns the tag name of a jsx_element from its opening tag.
func elementName(el *sitter.Node, src []byte) string {
	if el.ChildCount() == 0 {
		return ""
	}
	open := el.Child(0)
	if open.Type() != "jsx_opening_element" || open.NamedChildCount() == 0 {
		return ""
	}
	return open.NamedChild(0).Content(src)
}

// Within reports whether pos lies strictly inside any of bounds. Boundary
// edges are not inside.
func Within(bounds []Boundary, pos int) bool {
	for _, b := range bounds {
		if pos > b.Start && pos < b.End {
			return true
		}
	}
	return false
}
