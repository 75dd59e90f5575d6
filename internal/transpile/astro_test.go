package transpile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transpile(t *testing.T, src string) Result {
	t.Helper()
	res := NewAstro().Transpile(src)
	require.Nil(t, res.ParserError, "unexpected parser error for %q", src)
	return res
}

func TestFrontmatterFences(t *testing.T) {
	src := "---\nconst a = 1;\n---\n<div>{a}</div>\n"
	res := transpile(t, src)
	assert.Equal(t, "   \nconst a = 1;\n;<>\n<div>{a}</div>\n</>", res.Generated)

	// the fences are replaced in place, so every source byte keeps its offset
	for off := 0; off <= len(src); off++ {
		assert.Equal(t, off, res.SourceOffset(off), "offset %d", off)
	}
	assert.Equal(t, -1, res.SourceOffset(len(src)+1))
}

func TestTemplateWithoutFrontmatter(t *testing.T) {
	res := transpile(t, "<p>hi</p>")
	assert.Equal(t, "<><p>hi</p></>", res.Generated)
	assert.Equal(t, -1, res.SourceOffset(1))
	assert.Equal(t, 0, res.SourceOffset(2))
	assert.Equal(t, 3, res.SourceOffset(5))
}

func TestHTMLCommentBecomesJSXComment(t *testing.T) {
	res := transpile(t, "<!-- hi -->")
	assert.Equal(t, "<>{/** hi */}</>", res.Generated)

	src := "<!--/ a */ b-->"
	res = transpile(t, src)
	assert.Equal(t, "<>{/**  a *  b*/}</>", res.Generated)
	assert.Len(t, res.Generated, len(src)+len("<></>"))
}

func TestDoctypeBlanked(t *testing.T) {
	res := transpile(t, "<!DOCTYPE html>\n<p/>")
	assert.Equal(t, "<>"+strings.Repeat(" ", 15)+"\n<p/></>", res.Generated)
}

func TestScriptBodyBecomesTemplateLiteral(t *testing.T) {
	res := transpile(t, "<script>let a = `x${1}`;</script>")
	assert.Equal(t, "<><script>{`let a = \\`x\\${1}\\`;`}</script></>", res.Generated)

	bodyStart := strings.Index(res.Generated, "let")
	assert.Equal(t, len("<script>"), res.SourceOffset(bodyStart))
	assert.Equal(t, -1, res.SourceOffset(bodyStart-1), "opening backtick is synthesized")
}

func TestStyleBodyIsOpaque(t *testing.T) {
	res := transpile(t, "<style>a { color: red }</style>")
	assert.Equal(t, "<><style>{`a { color: red }`}</style></>", res.Generated)
}

func TestVoidElementsSelfClosed(t *testing.T) {
	res := transpile(t, `<br><img src="a.png"><input/>`)
	assert.Equal(t, `<><br/><img src="a.png"/><input/></>`, res.Generated)
}

func TestStrayLessThanEscaped(t *testing.T) {
	res := transpile(t, "a < b")
	assert.Equal(t, "<>a {'<'} b</>", res.Generated)
}

func TestShorthandAttribute(t *testing.T) {
	res := transpile(t, `<Card {title} /><a href={x}>y</a>`)
	assert.Equal(t, `<><Card title={title} /><a href={x}>y</a></>`, res.Generated)
}

func TestTemplateLiteralBracesInExpression(t *testing.T) {
	res := transpile(t, "<p>{`${a}}`}</p>")
	assert.Equal(t, "<><p>{`${a}}`}</p></>", res.Generated)
}

func TestParserErrors(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		code  int
		start int
	}{
		{"frontmatter", "---\nconst a = 1;\n", CodeUnterminatedFrontmatter, 0},
		{"expression", "<div>{a</div>", CodeUnterminatedExpression, 5},
		{"comment", "<p/><!-- x", CodeUnterminatedComment, 4},
		{"raw element", "<script>let a", CodeUnterminatedRawElement, 0},
		{"tag", "<p></p><div", CodeUnterminatedTag, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := NewAstro().Transpile(tc.src)
			require.NotNil(t, res.ParserError)
			assert.Equal(t, tc.code, res.ParserError.Code)
			assert.Equal(t, tc.start, res.ParserError.Start)
			assert.NotEmpty(t, res.ParserError.Message)
		})
	}
}

func TestParserErrorRange(t *testing.T) {
	res := NewAstro().Transpile("<p>\n  {oops")
	require.NotNil(t, res.ParserError)
	assert.Equal(t, 1, res.ParserError.Range.Start.Line)
	assert.Equal(t, 2, res.ParserError.Range.Start.Character)
}

func TestIdentity(t *testing.T) {
	res := Func(Identity).Transpile("export const a = 1;")
	assert.Equal(t, "export const a = 1;", res.Generated)
	assert.Equal(t, 7, res.SourceOffset(7))
	assert.Nil(t, res.ParserError)
}
