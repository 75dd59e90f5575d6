package transpile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// templateLexer tokenizes the markup part of a component (everything after
// the frontmatter). States mirror the nesting the generator has to track:
// tags, expressions and raw script/style bodies.
var templateLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `<!--[\s\S]*?-->`},
		{Name: "UnclosedComment", Pattern: `<!--[\s\S]*`},
		{Name: "Doctype", Pattern: `<!(?i:doctype)[^>]*>`},
		{Name: "RawSelfClosing", Pattern: `<(?i:script|style)\b[^>]*/>`},
		{Name: "ScriptOpen", Pattern: `<(?i:script)\b[^>]*>`, Action: lexer.Push("ScriptBody")},
		{Name: "StyleOpen", Pattern: `<(?i:style)\b[^>]*>`, Action: lexer.Push("StyleBody")},
		{Name: "Fragment", Pattern: `</?>`},
		{Name: "TagOpen", Pattern: `</?[A-Za-z][\w.:-]*`, Action: lexer.Push("Tag")},
		{Name: "ExprOpen", Pattern: `\{`, Action: lexer.Push("Expr")},
		{Name: "Text", Pattern: `[^<{]+`},
		{Name: "StrayLT", Pattern: `<`},
	},
	"Tag": {
		{Name: "TagEnd", Pattern: `/?>`, Action: lexer.Pop()},
		{Name: "TagSpace", Pattern: `\s+`},
		{Name: "AttrExprOpen", Pattern: `\{`, Action: lexer.Push("Expr")},
		{Name: "AttrString", Pattern: `"[^"]*"|'[^']*'|` + "`[^`]*`"},
		{Name: "AttrEq", Pattern: `=`},
		{Name: "AttrName", Pattern: "[^\\s\"'`{}/>=]+"},
		{Name: "TagStray", Pattern: `[\s\S]`},
	},
	"Expr": {
		{Name: "ExprNest", Pattern: `\{`, Action: lexer.Push("Expr")},
		{Name: "ExprClose", Pattern: `\}`, Action: lexer.Pop()},
		{Name: "ExprString", Pattern: `"(?:\\.|[^"\\\n])*"|'(?:\\.|[^'\\\n])*'`},
		{Name: "ExprTemplate", Pattern: "`(?:\\\\[\\s\\S]|[^`\\\\])*`"},
		{Name: "ExprComment", Pattern: `/\*[\s\S]*?\*/`},
		{Name: "ExprText", Pattern: "[^{}\"'`/]+"},
		{Name: "ExprStray", Pattern: `[\s\S]`},
	},
	"ScriptBody": {
		{Name: "ScriptClose", Pattern: `</(?i:script)\s*>`, Action: lexer.Pop()},
		{Name: "ScriptText", Pattern: `[^<]+`},
		{Name: "ScriptLT", Pattern: `<`},
	},
	"StyleBody": {
		{Name: "StyleClose", Pattern: `</(?i:style)\s*>`, Action: lexer.Pop()},
		{Name: "StyleText", Pattern: `[^<]+`},
		{Name: "StyleLT", Pattern: `<`},
	},
})

// tokenKind is the symbolic form of a lexer token type.
type tokenKind string

var symbolNames = func() map[lexer.TokenType]tokenKind {
	out := make(map[lexer.TokenType]tokenKind)
	for name, typ := range templateLexer.Symbols() {
		out[typ] = tokenKind(name)
	}
	return out
}()

type token struct {
	kind   tokenKind
	value  string
	offset int
}

// lexTemplate tokenizes src[base:]; offsets in the returned tokens are
// absolute within src.
func lexTemplate(src string, base int) ([]token, error) {
	lex, err := templateLexer.LexString("", src[base:])
	if err != nil {
		return nil, err
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}
	out := make([]token, 0, len(raw))
	for _, t := range raw {
		if t.EOF() {
			break
		}
		out = append(out, token{kind: symbolNames[t.Type], value: t.Value, offset: base + t.Pos.Offset})
	}
	return out, nil
}
