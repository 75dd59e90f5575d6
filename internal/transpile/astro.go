package transpile

import (
	"regexp"
	"strings"
)

// Astro is the default component transpiler. The generated text is a TSX
// module: the frontmatter stays as statements and the template becomes one
// JSX fragment expression after it.
type Astro struct{}

// NewAstro returns the default transpiler.
func NewAstro() *Astro {
	return &Astro{}
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var shorthandIdent = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)\s*$`)

// frame is one open construct while walking the token stream.
type frame struct {
	kind   tokenKind
	offset int
	length int
	name   string
	close  bool
}

// Transpile implements Transpiler.
func (a *Astro) Transpile(src string) Result {
	b := newBuilder(src)
	body := 0

	open, closeAt, ok := findFrontmatter(src)
	switch {
	case open < 0:
		b.synth("<>")
	case !ok:
		b.copy(0, len(src))
		gen, maps := b.result()
		return Result{
			Generated:   gen,
			Mappings:    maps,
			ParserError: newParserError(src, open, 3, CodeUnterminatedFrontmatter, "Unterminated frontmatter: missing closing '---'"),
		}
	default:
		b.copy(0, open)
		b.subst("   ", open)
		b.copy(open+3, closeAt)
		b.subst(";<>", closeAt)
		body = closeAt + 3
	}

	toks, err := lexTemplate(src, body)
	if err != nil {
		// все состояния лексера имеют catch-all правило, так что сюда попадать не должны
		b.copy(body, len(src))
		b.synth("</>")
		gen, maps := b.result()
		return Result{Generated: gen, Mappings: maps, ParserError: newParserError(src, body, 0, CodeUnterminatedExpression, err.Error())}
	}

	perr := a.emit(b, src, toks)
	b.synth("</>")
	gen, maps := b.result()
	return Result{Generated: gen, Mappings: maps, ParserError: perr}
}

func (a *Astro) emit(b *builder, src string, toks []token) *ParserError {
	var (
		stack   []frame
		prevTag tokenKind
	)
	push := func(t token, name string, closing bool) {
		stack = append(stack, frame{kind: t.kind, offset: t.offset, length: len(t.value), name: name, close: closing})
	}
	pop := func() frame {
		if len(stack) == 0 {
			return frame{}
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return f
	}

	for i, t := range toks {
		end := t.offset + len(t.value)
		switch t.kind {
		case "Comment":
			inner := t.value[4 : len(t.value)-3]
			b.subst("{/**", t.offset)
			b.subst(neutralizeCommentEnd(inner), t.offset+4)
			b.subst("*/}", end-3)
		case "UnclosedComment":
			b.copy(t.offset, end)
			return newParserError(src, t.offset, 4, CodeUnterminatedComment, "Unterminated comment: missing '-->'")
		case "Doctype":
			b.subst(strings.Repeat(" ", len(t.value)), t.offset)
		case "RawSelfClosing":
			b.copy(t.offset, end)
		case "ScriptOpen", "StyleOpen":
			b.copy(t.offset, end)
			b.synth("{`")
			push(t, "", false)
		case "ScriptText", "StyleText", "ScriptLT", "StyleLT":
			emitTemplateBody(b, t)
		case "ScriptClose", "StyleClose":
			pop()
			b.synth("`}")
			b.copy(t.offset, end)
		case "TagOpen":
			closing := strings.HasPrefix(t.value, "</")
			name := strings.TrimPrefix(strings.TrimPrefix(t.value, "<"), "/")
			push(t, name, closing)
			prevTag = t.kind
			b.copy(t.offset, end)
		case "TagEnd":
			f := pop()
			if t.value == ">" && !f.close && voidElements[f.name] {
				b.synth("/")
			}
			b.copy(t.offset, end)
		case "AttrExprOpen":
			if prevTag != "AttrEq" {
				if name := shorthandName(toks, i); name != "" {
					b.synth(name + "=")
				}
			}
			push(t, "", false)
			b.copy(t.offset, end)
		case "ExprOpen", "ExprNest":
			push(t, "", false)
			b.copy(t.offset, end)
		case "ExprClose":
			pop()
			b.copy(t.offset, end)
		case "StrayLT":
			b.synth("{'")
			b.copy(t.offset, end)
			b.synth("'}")
		default:
			b.copy(t.offset, end)
		}
		switch t.kind {
		case "TagSpace", "TagOpen":
		case "AttrName", "AttrEq", "AttrString", "AttrExprOpen", "TagStray":
			prevTag = t.kind
		}
	}

	if len(stack) == 0 {
		return nil
	}
	// незакрытая конструкция: закрываем её в сгенерированном тексте и сообщаем о самой внутренней
	f := stack[len(stack)-1]
	for j := len(stack) - 1; j >= 0; j-- {
		switch stack[j].kind {
		case "ScriptOpen", "StyleOpen":
			b.synth("`}")
		case "TagOpen":
			b.synth(">")
		default:
			b.synth("}")
		}
	}
	switch f.kind {
	case "ScriptOpen", "StyleOpen":
		return newParserError(src, f.offset, f.length, CodeUnterminatedRawElement, "Unterminated raw element: missing closing tag")
	case "TagOpen":
		return newParserError(src, f.offset, f.length, CodeUnterminatedTag, "Unterminated tag: missing '>'")
	default:
		return newParserError(src, f.offset, f.length, CodeUnterminatedExpression, "Unterminated expression: missing '}'")
	}
}

// emitTemplateBody writes raw script/style text as the contents of a
// template literal, escaping the characters that would end it early.
func emitTemplateBody(b *builder, t token) {
	start := t.offset
	for j := 0; j < len(t.value); j++ {
		c := t.value[j]
		if c == '`' || c == '\\' || (c == '$' && j+1 < len(t.value) && t.value[j+1] == '{') {
			b.copy(start, t.offset+j)
			b.synth(`\`)
			start = t.offset + j
		}
	}
	b.copy(start, t.offset+len(t.value))
}

// shorthandName returns the identifier of an attribute written as {name}.
func shorthandName(toks []token, i int) string {
	if i+2 >= len(toks) || toks[i+1].kind != "ExprText" || toks[i+2].kind != "ExprClose" {
		return ""
	}
	m := shorthandIdent.FindStringSubmatch(toks[i+1].value)
	if m == nil {
		return ""
	}
	return m[1]
}

// neutralizeCommentEnd keeps the comment body from closing the generated
// block comment early. The result has the same length as s.
func neutralizeCommentEnd(s string) string {
	if strings.HasPrefix(s, "/") {
		s = " " + s[1:]
	}
	return strings.ReplaceAll(s, "*/", "* ")
}

// findFrontmatter locates the opening and closing fences. open is -1 when
// the source has no frontmatter; ok is false when the closing fence is
// missing.
func findFrontmatter(src string) (open, closeAt int, ok bool) {
	i := 0
	for i < len(src) && isBlank(src[i]) {
		i++
	}
	if !strings.HasPrefix(src[i:], "---") {
		return -1, -1, false
	}
	open = i
	lineEnd := strings.IndexByte(src[open:], '\n')
	if lineEnd < 0 {
		return open, -1, false
	}
	pos := open + lineEnd + 1
	for pos <= len(src) {
		next := strings.IndexByte(src[pos:], '\n')
		line := src[pos:]
		if next >= 0 {
			line = src[pos : pos+next]
		}
		if strings.TrimRight(line, " \t\r") == "---" {
			return open, pos, true
		}
		if next < 0 {
			break
		}
		pos += next + 1
	}
	return open, -1, false
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
