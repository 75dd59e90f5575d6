package tsxengine

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"astrols/internal/diag"
	"astrols/internal/engine"
)

type local struct {
	name  string
	start int
	end   int
}

type importRef struct {
	spec   string
	start  int
	end    int
	locals []local
	// sideEffect imports (import './x.css') are never reported unresolved
	sideEffect bool
}

// facts is everything one walk over a tree collects. None of it depends on
// other files; resolution happens later against the host.
type facts struct {
	syntactic []engine.Diagnostic
	attrs     []engine.Diagnostic
	imports   []importRef
	usage     map[string]int
}

type frame struct {
	node  *sitter.Node
	inJSX bool
}

var usageTypes = map[string]bool{
	"identifier":                            true,
	"type_identifier":                       true,
	"shorthand_property_identifier":         true,
	"shorthand_property_identifier_pattern": true,
}

func collect(root *sitter.Node, src []byte) facts {
	f := facts{usage: make(map[string]int)}
	if root == nil {
		return f
	}
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := top.node

		if n.IsMissing() {
			f.syntactic = append(f.syntactic, engine.Diagnostic{
				Start:    int(n.StartByte()),
				Category: engine.CategoryError,
				Message:  fmt.Sprintf("'%s' expected.", n.Type()),
				Code:     int(diag.DeclarationExpected),
			})
			continue
		}

		switch n.Type() {
		case "ERROR":
			f.syntactic = append(f.syntactic, errorNode(n, src, top.inJSX))
			continue
		case "import_statement":
			f.imports = append(f.imports, readImport(n, src))
			continue
		case "export_statement":
			if ref, ok := reexport(n, src); ok {
				f.imports = append(f.imports, ref)
			}
		case "jsx_text":
			text := n.Content(src)
			if i := strings.IndexByte(text, '>'); i >= 0 {
				f.syntactic = append(f.syntactic, greaterThan(int(n.StartByte())+i))
			}
		case "jsx_opening_element", "jsx_self_closing_element":
			f.attrs = append(f.attrs, duplicateAttributes(n, src)...)
		}
		if usageTypes[n.Type()] {
			f.usage[n.Content(src)]++
		}

		inJSX := top.inJSX || strings.HasPrefix(n.Type(), "jsx_")
		// дети в обратном порядке, чтобы обход шёл слева направо
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, frame{node: c, inJSX: inJSX})
			}
		}
	}
	return f
}

func errorNode(n *sitter.Node, src []byte, inJSX bool) engine.Diagnostic {
	content := n.Content(src)
	trimmed := strings.TrimLeft(content, " \t\r\n")
	if inJSX && strings.HasPrefix(trimmed, ">") {
		return greaterThan(int(n.StartByte()) + len(content) - len(trimmed))
	}
	length := int(n.EndByte() - n.StartByte())
	if length == 0 {
		length = 1
	}
	return engine.Diagnostic{
		Start:    int(n.StartByte()),
		Length:   length,
		Category: engine.CategoryError,
		Message:  "Expression expected.",
		Code:     int(diag.ExpressionExpected),
	}
}

func greaterThan(at int) engine.Diagnostic {
	return engine.Diagnostic{
		Start:    at,
		Length:   1,
		Category: engine.CategoryError,
		Message:  "Unexpected token. Did you mean `{'>'}` or `&gt;`?",
		Code:     int(diag.UnexpectedGreaterThan),
	}
}

func duplicateAttributes(n *sitter.Node, src []byte) []engine.Diagnostic {
	var out []engine.Diagnostic
	seen := make(map[string]bool)
	for i := 0; i < int(n.ChildCount()); i++ {
		attr := n.Child(i)
		if attr == nil || attr.Type() != "jsx_attribute" || attr.ChildCount() == 0 {
			continue
		}
		name := attr.Child(0)
		key := name.Content(src)
		if !seen[key] {
			seen[key] = true
			continue
		}
		out = append(out, engine.Diagnostic{
			Start:    int(name.StartByte()),
			Length:   len(key),
			Category: engine.CategoryError,
			Message:  "JSX elements cannot have multiple attributes with the same name.",
			Code:     int(diag.DuplicateJSXAttribute),
		})
	}
	return out
}

func readImport(n *sitter.Node, src []byte) importRef {
	ref := importRef{sideEffect: true}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "string":
			setSource(&ref, c, src)
		case "from_clause":
			for j := 0; j < int(c.ChildCount()); j++ {
				if s := c.Child(j); s.Type() == "string" {
					setSource(&ref, s, src)
				}
			}
		case "import_clause":
			ref.locals = importLocals(c, src)
			ref.sideEffect = false
		}
	}
	return ref
}

// reexport reads `export ... from 'spec'`; `export default "x"` has no
// from keyword and is skipped.
func reexport(n *sitter.Node, src []byte) (importRef, bool) {
	from := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "from" {
			from = true
		}
		if from && c.Type() == "string" {
			var ref importRef
			setSource(&ref, c, src)
			return ref, true
		}
	}

	return importRef{}, false
}

func setSource(ref *importRef, s *sitter.Node, src []byte) {
	text := s.Content(src)
	if len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	ref.spec = text
	ref.start = int(s.StartByte())
	ref.end = int(s.EndByte())
}

func importLocals(clause *sitter.Node, src []byte) []local {
	var out []local
	add := func(id *sitter.Node) {
		out = append(out, local{name: id.Content(src), start: int(id.StartByte()), end: int(id.EndByte())})
	}
	for i := 0; i < int(clause.ChildCount()); i++ {
		c := clause.Child(i)
		switch c.Type() {
		case "identifier":
			add(c)
		case "namespace_import":
			if id := lastChild(c, "identifier"); id != nil {
				add(id)
			}
		case "named_imports":
			for j := 0; j < int(c.ChildCount()); j++ {
				spec := c.Child(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				if id := lastChild(spec, "identifier"); id != nil {
					add(id)
				}
			}
		}
	}
	return out
}

func lastChild(n *sitter.Node, typ string) *sitter.Node {
	var found *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == typ {
			found = c
		}
	}
	return found
}
