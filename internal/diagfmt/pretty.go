package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"astrols/internal/diag"
	"astrols/internal/source"
)

type palette struct {
	path, code, caret, dim *color.Color
	sev                    map[diag.Severity]*color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		path:  color.New(color.Bold),
		code:  color.New(color.FgMagenta),
		caret: color.New(color.FgGreen, color.Bold),
		dim:   color.New(color.Faint),
		sev: map[diag.Severity]*color.Color{
			diag.SevError:       color.New(color.FgRed, color.Bold),
			diag.SevWarning:     color.New(color.FgYellow, color.Bold),
			diag.SevInformation: color.New(color.FgBlue, color.Bold),
			diag.SevHint:        color.New(color.FgCyan),
		},
	}
	all := []*color.Color{p.path, p.code, p.caret, p.dim}
	for _, c := range p.sev {
		all = append(all, c)
	}
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждой диагностики печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем строку исходника с подчёркиванием ^~~~ по Range.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	p := newPalette(opts.Color)
	lines := map[string]*sourceLines{}
	for _, r := range bag.Items() {
		path := formatPath(r.Path, opts.PathMode, opts.BaseDir)
		sev, ok := p.sev[r.Severity]
		if !ok {
			sev = p.dim
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			p.path.Sprintf("%s:%s", path, r.Range.Start),
			sev.Sprint(r.Severity),
			p.code.Sprint(r.Code.ID()),
			r.Message,
		)
		if opts.Texts == nil {
			continue
		}
		sl, ok := lines[r.Path]
		if !ok {
			if text, found := opts.Texts(r.Path); found {
				sl = newSourceLines(text)
			}
			lines[r.Path] = sl
		}
		if sl != nil {
			sl.excerpt(w, p, r.Range, opts)
		}
	}
}

type sourceLines struct {
	text string
	idx  *source.LineIndex
}

func newSourceLines(text string) *sourceLines {
	return &sourceLines{text: text, idx: source.BuildLineIndex(text)}
}

func (s *sourceLines) line(n int) string {
	start := s.idx.LineStart(n)
	end := s.idx.LineStart(n + 1)
	return strings.TrimRight(s.text[start:end], "\r\n")
}

func (s *sourceLines) excerpt(w io.Writer, p palette, rng source.Range, opts PrettyOpts) {
	line := rng.Start.Line
	if line < 0 || line >= s.idx.LineCount() {
		return
	}
	gutter := len(fmt.Sprint(line + 1))
	for n := max(line-opts.Context, 0); n <= line; n++ {
		fmt.Fprintf(w, " %s %s\n", p.dim.Sprintf("%*d |", gutter, n+1), clip(s.line(n), opts.Width))
	}

	text := s.line(line)
	from := min(rng.Start.Character, len(text))
	to := min(from+1, len(text))
	if rng.End.Line == line && rng.End.Character > from {
		to = min(rng.End.Character, len(text))
	} else if rng.End.Line > line {
		to = len(text)
	}
	// ширина в колонках терминала, а не в байтах
	pad := runewidth.StringWidth(expandTabs(text[:from]))
	width := max(runewidth.StringWidth(expandTabs(text[from:to])), 1)
	underline := "^" + strings.Repeat("~", width-1)
	fmt.Fprintf(w, " %s %s%s\n", p.dim.Sprintf("%*s |", gutter, ""), strings.Repeat(" ", pad), p.caret.Sprint(underline))
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

func clip(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// Short prints one line per record: <path>:<line>:<col>: <SEV> <CODE>: <Message>.
func Short(w io.Writer, bag *diag.Bag, mode PathMode, base string) {
	for _, r := range bag.Items() {
		fmt.Fprintf(w, "%s:%s: %s %s: %s\n", formatPath(r.Path, mode, base), r.Range.Start, r.Severity, r.Code.ID(), r.Message)
	}
}

// Summary prints the per-severity totals, e.g. "2 errors, 1 warning".
func Summary(w io.Writer, bag *diag.Bag, files int) {
	plural := func(n int, word string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word)
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	parts := []string{
		plural(bag.Count(diag.SevError), "error"),
		plural(bag.Count(diag.SevWarning), "warning"),
		plural(bag.Count(diag.SevInformation)+bag.Count(diag.SevHint), "hint"),
	}
	fmt.Fprintf(w, "%s in %s\n", strings.Join(parts, ", "), plural(files, "file"))
}
