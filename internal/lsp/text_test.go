package lsp

import (
	"math"
	"testing"

	"github.com/sourcegraph/go-lsp"

	"astrols/internal/diag"
	"astrols/internal/diagnostics"
	"astrols/internal/source"
)

func TestApplyIncrementalChanges(t *testing.T) {
	text := "a🙂b\nsecond\n"
	got := applyChanges(text, []lsp.TextDocumentContentChangeEvent{
		// символ после эмодзи: 1 + 2 UTF-16 единицы
		{Range: &lsp.Range{Start: lsp.Position{Line: 0, Character: 3}, End: lsp.Position{Line: 0, Character: 4}}, Text: "B"},
		{Range: &lsp.Range{Start: lsp.Position{Line: 1, Character: 0}, End: lsp.Position{Line: 1, Character: 6}}, Text: "2nd"},
	})
	if want := "a🙂B\n2nd\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = applyChanges(got, []lsp.TextDocumentContentChangeEvent{{Text: "full"}})
	if got != "full" {
		t.Fatalf("full replacement: %q", got)
	}
}

func TestOffsetForPositionClamps(t *testing.T) {
	text := "ab\r\ncd"
	cases := []struct {
		pos  lsp.Position
		want int
	}{
		{lsp.Position{Line: 0, Character: 99}, 2},
		{lsp.Position{Line: 1, Character: 1}, 5},
		{lsp.Position{Line: 7, Character: 0}, len(text)},
		{lsp.Position{Line: -1, Character: 0}, 0},
	}
	for _, tc := range cases {
		if got := offsetForPosition(text, tc.pos); got != tc.want {
			t.Errorf("offsetForPosition(%+v) = %d, want %d", tc.pos, got, tc.want)
		}
	}
}

func TestCanonicalURI(t *testing.T) {
	if got := canonicalURI("file:///proj/src/%62.astro"); got != "file:///proj/src/b.astro" {
		t.Errorf("canonicalURI = %q", got)
	}
	if got := canonicalURI("untitled:Untitled-1"); got != "untitled:Untitled-1" {
		t.Errorf("non-file URIs are kept: %q", got)
	}
	if got := uriToPath(pathToURI("/proj/a b.astro")); got != "/proj/a b.astro" {
		t.Errorf("round trip with space: %q", got)
	}
}

func TestRecordToWireDiagnostic(t *testing.T) {
	text := "const 🙂 = x;\n"
	m := newUTF16Mapper(text)
	r := diag.Record{
		Range: source.Range{
			Start: source.Position{Line: 0, Character: len("const 🙂 = ")},
			End:   source.Position{Line: 0, Character: len("const 🙂 = x")},
		},
		Severity: diag.SevHint,
		Source:   "ts",
		Message:  "unused",
		Code:     diag.DeclaredButNeverRead,
		Tags:     []diag.Tag{diag.TagUnnecessary},
	}
	d := m.diagnostic(r)
	if d.Range.Start.Character != 11 || d.Range.End.Character != 12 {
		t.Errorf("range = %+v", d.Range)
	}
	if d.Severity != lsp.Hint || d.Code != 6133 || len(d.Tags) != 1 || d.Tags[0] != 1 {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if toUInteger(-3) != 0 || toUInteger(math.MaxInt64) != math.MaxInt32 {
		t.Error("toUInteger must clamp into the protocol range")
	}
}

func TestParseSettings(t *testing.T) {
	raw := map[string]any{"astrols": map[string]any{
		"render":         "generated",
		"trace":          "true",
		"maxDiagnostics": "20",
		"suppress":       []any{map[string]any{"code": 2304.0, "when": `path endsWith ".astro"`}},
	}}
	st, err := parseSettings(raw)
	if err != nil {
		t.Fatalf("parseSettings: %v", err)
	}
	if st.render == nil || *st.render != diagnostics.RenderGenerated {
		t.Errorf("render = %v", st.render)
	}
	if st.traceLSP == nil || !*st.traceLSP || st.maxDiagnostics == nil || *st.maxDiagnostics != 20 {
		t.Errorf("loose values not decoded: %+v", st)
	}
	if !st.hasRules || len(st.rules) != 1 || st.rules[0].Code != 2304 {
		t.Errorf("rules = %+v", st.rules)
	}

	if _, err := parseSettings(map[string]any{"render": "sideways"}); err == nil {
		t.Error("expected error for bad render")
	}
	st, err = parseSettings(nil)
	if err != nil || st.render != nil || st.hasRules {
		t.Errorf("nil settings: %+v, %v", st, err)
	}
}
