package diagfmt

import (
	"io"

	"github.com/goccy/go-json"

	"astrols/internal/diag"
	"astrols/internal/source"
)

// DiagnosticJSON представляет диагностику в JSON формате
type DiagnosticJSON struct {
	File     string       `json:"file"`
	Range    source.Range `json:"range"`
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Number   int          `json:"number"`
	Source   string       `json:"source"`
	Message  string       `json:"message"`
	Tags     []string     `json:"tags,omitempty"`
}

// DiagnosticsOutput представляет корневую структуру JSON вывода
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

// BuildDiagnosticsOutput формирует структуру JSON-вывода без сериализации.
func BuildDiagnosticsOutput(bag *diag.Bag, opts JSONOpts) DiagnosticsOutput {
	items := bag.Items()
	maxItems := len(items)
	if opts.Max > 0 && opts.Max < maxItems {
		maxItems = opts.Max
	}

	diagnostics := make([]DiagnosticJSON, 0, maxItems)
	for _, r := range items[:maxItems] {
		d := DiagnosticJSON{
			File:     formatPath(r.Path, opts.PathMode, opts.BaseDir),
			Range:    r.Range,
			Severity: r.Severity.String(),
			Code:     r.Code.ID(),
			Number:   int(r.Code),
			Source:   r.Source,
			Message:  r.Message,
		}
		for _, t := range r.Tags {
			d.Tags = append(d.Tags, t.String())
		}
		diagnostics = append(diagnostics, d)
	}

	return DiagnosticsOutput{
		Diagnostics: diagnostics,
		Count:       len(diagnostics),
	}
}

// JSON форматирует диагностики в JSON формат.
func JSON(w io.Writer, bag *diag.Bag, opts JSONOpts) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDiagnosticsOutput(bag, opts))
}
