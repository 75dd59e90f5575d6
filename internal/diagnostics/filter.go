// Package diagnostics turns raw engine results for a virtual file into
// records for the real file.
//
// A pass finds the boundary spans of the virtual text, drops results that
// come from embedded script, from known translation artifacts or from user
// rules, and maps what is left to line/character positions of the text the
// caller renders.
package diagnostics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"astrols/internal/diag"
	"astrols/internal/engine"
	"astrols/internal/metrics"
	"astrols/internal/snapshot"
	"astrols/internal/source"
	"astrols/internal/trace"
	"astrols/internal/vpath"
)

// Render selects the text positions are reported against.
type Render uint8

const (
	// RenderOriginal maps positions back to the component source.
	RenderOriginal Render = iota
	// RenderGenerated reports positions in the virtual text.
	RenderGenerated
)

func (r Render) String() string {
	if r == RenderGenerated {
		return "generated"
	}
	return "original"
}

// ParseRender parses "original" or "generated".
func ParseRender(s string) (Render, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "original":
		return RenderOriginal, nil
	case "generated":
		return RenderGenerated, nil
	}
	return RenderOriginal, fmt.Errorf("unknown render mode %q (want original or generated)", s)
}

// Options configures a Filter.
type Options struct {
	Render Render
	// Tags overrides DefaultTags when either list is non-empty.
	Tags   Tags
	Rules  []Rule
	Tracer trace.Tracer
}

// Filter is immutable after New and safe for concurrent passes.
type Filter struct {
	render Render
	tags   Tags
	rules  []compiledRule
	tracer trace.Tracer
}

// New compiles the user rules and returns a Filter.
func New(opts Options) (*Filter, error) {
	rules, err := compileRules(opts.Rules)
	if err != nil {
		return nil, err
	}
	tags := opts.Tags
	if len(tags.Script) == 0 && len(tags.Opaque) == 0 {
		tags = DefaultTags
	}
	return &Filter{render: opts.Render, tags: tags, rules: rules, tracer: opts.Tracer}, nil
}

// Input is everything one pass needs. All offsets refer to Snapshot.Text;
// the caller guarantees the engine results were computed on that version.
type Input struct {
	Path     string
	Snapshot *snapshot.Snapshot
	// Tree is the syntax tree of Snapshot.Text, nil to parse it here.
	Tree *sitter.Node
	// Bounds are precomputed spans; nil to find them in Tree.
	Bounds     *Boundaries
	Syntactic  []engine.Diagnostic
	Semantic   []engine.Diagnostic
	Suggestion []engine.Diagnostic
}

// SourceTag returns the source field for records of kind.
func SourceTag(kind vpath.ScriptKind) string {
	if kind == vpath.ScriptTSX || kind == vpath.ScriptTS {
		return "ts"
	}
	return "js"
}

// Severity maps an engine category onto a record severity.
func Severity(c engine.Category) diag.Severity {
	switch c {
	case engine.CategoryError:
		return diag.SevError
	case engine.CategoryWarning:
		return diag.SevWarning
	case engine.CategorySuggestion:
		return diag.SevHint
	default:
		return diag.SevInformation
	}
}

func tagsOf(f engine.Flags) []diag.Tag {
	var tags []diag.Tag
	if f&engine.ReportsUnnecessary != 0 {
		tags = append(tags, diag.TagUnnecessary)
	}
	if f&engine.ReportsDeprecated != 0 {
		tags = append(tags, diag.TagDeprecated)
	}
	return tags
}

// Boundaries computes the spans of in, parsing the text if no tree was given.
func (f *Filter) Boundaries(in Input) Boundaries {
	if in.Bounds != nil {
		return *in.Bounds
	}
	root := in.Tree
	if root == nil {
		p := sitter.NewParser()
		p.SetLanguage(tsx.GetLanguage())
		root = p.Parse(nil, []byte(in.Snapshot.Text)).RootNode()
	}
	return FindBoundaries(root, []byte(in.Snapshot.Text), f.tags)
}

// Run executes one pass. It never fails: results that cannot be placed are
// dropped one by one.
func (f *Filter) Run(ctx context.Context, in Input) []diag.Record {
	snap := in.Snapshot
	if snap == nil {
		return nil
	}
	tracer := f.tracer
	if tracer == nil {
		tracer = trace.FromContext(ctx)
	}
	started := time.Now()
	span := trace.Begin(tracer, trace.ScopePass, "diagnostics", trace.CurrentSpan(ctx).SpanID).
		WithExtra("path", in.Path).
		WithExtra("version", snap.VersionString())
	defer func() {
		metrics.PassDone(time.Since(started))
	}()

	srcTag := SourceTag(snap.Kind)
	if pe := snap.ParserError; pe != nil {
		metrics.Diagnostic(metrics.OutcomeParserError)
		span.End("parser error")
		return []diag.Record{{
			Path:     in.Path,
			Range:    pe.Range,
			Severity: diag.SevError,
			Source:   srcTag,
			Message:  pe.Message,
			Code:     diag.Code(pe.Code),
		}}
	}

	bounds := f.Boundaries(in)
	raw := make([]engine.Diagnostic, 0, len(in.Syntactic)+len(in.Semantic)+len(in.Suggestion))
	raw = append(raw, in.Syntactic...)
	raw = append(raw, in.Suggestion...)
	raw = append(raw, in.Semantic...)

	out := make([]diag.Record, 0, len(raw))
	for _, d := range raw {
		if err := ctx.Err(); err != nil {
			span.End("canceled")
			return out
		}
		code := diag.Code(d.Code)
		inScript := d.HasStart() && Within(bounds.Script, d.Start)
		inOpaque := d.HasStart() && Within(bounds.Opaque, d.Start)

		outcome := f.judge(code, d, inScript, inOpaque, in.Path)
		if outcome != metrics.OutcomeKept {
			metrics.Diagnostic(outcome)
			continue
		}

		rng, ok := f.placement(snap, d)
		if !ok {
			metrics.Diagnostic(metrics.OutcomeNegative)
			trace.Point(tracer, trace.ScopeNode, "diagnostic:dropped", code.ID(),
				"path", in.Path, "offset", strconv.Itoa(d.Start))
			continue
		}
		metrics.Diagnostic(metrics.OutcomeKept)
		out = append(out, diag.Record{
			Path:     in.Path,
			Range:    rng,
			Severity: Severity(d.Category),
			Source:   srcTag,
			Message:  d.Message,
			Code:     code,
			Tags:     tagsOf(d.Flags),
		})
	}
	span.WithExtra("kept", strconv.Itoa(len(out))).End("")
	return out
}

// judge applies the drop rules in order: foreign script first, since it is
// the broadest, then the code table, the opaque-only codes and user rules.
func (f *Filter) judge(code diag.Code, d engine.Diagnostic, inScript, inOpaque bool, path string) string {
	switch {
	case inScript:
		return metrics.OutcomeScript
	case Suppressed(code):
		return metrics.OutcomeSuppressed
	case opaqueOnly[code] && inOpaque:
		return metrics.OutcomeOpaque
	}
	if len(f.rules) > 0 {
		env := ruleEnv(code, d.Message, d.Category.String(), inScript, inOpaque, path)
		for _, r := range f.rules {
			if r.match(code, env) {
				return metrics.OutcomeRule
			}
		}
	}
	return metrics.OutcomeKept
}

// placement maps d to a range in the rendered text. It reports false when
// the start lands on a negative line, i.e. in text with no source.
func (f *Filter) placement(snap *snapshot.Snapshot, d engine.Diagnostic) (source.Range, bool) {
	if !d.HasStart() {
		return source.Range{}, true
	}
	start := f.position(snap, d.Start)
	if start.Line < 0 {
		return source.Range{}, false
	}
	end := f.position(snap, d.Start+d.Length)
	if end.Line < 0 || end.Less(start) {
		end = start
	}
	return source.Range{Start: start, End: end}, true
}

func (f *Filter) position(snap *snapshot.Snapshot, gen int) source.Position {
	if f.render == RenderGenerated || !snap.IsComponent() {
		return snap.TextLines().PositionAt(gen)
	}
	off := snap.SourceOffset(gen)
	if off < 0 {
		return source.Position{Line: -1, Character: -1}
	}
	return snap.SourceLines().PositionAt(off)
}
