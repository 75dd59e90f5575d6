package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"astrols/internal/bridge"
	"astrols/internal/diag"
	"astrols/internal/diagfmt"
	"astrols/internal/diagnostics"
	"astrols/internal/observ"
	"astrols/internal/trace"
	"astrols/internal/version"
)

// errDiagnosticsFound makes the process exit with 1 without printing.
var errDiagnosticsFound = errors.New("diagnostics contain errors")

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Report diagnostics for components and scripts",
	Long: `Check collects diagnostics for the given files and directories,
or for the whole project root when none are given.`,
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|short|json|sarif|msgpack)")
	checkCmd.Flags().String("path-mode", "auto", "path display (auto|absolute|relative|basename)")
	checkCmd.Flags().Int("context", 1, "lines of context above each diagnostic")
	checkCmd.Flags().Int("width", 0, "clip context lines to this width (0 = unlimited)")
	checkCmd.Flags().Int("jobs", 0, "files checked in parallel (0 = GOMAXPROCS)")
	checkCmd.Flags().Bool("timings", false, "print how long the check took")
}

func runCheck(cmd *cobra.Command, args []string) error {
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	pathModeStr, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	contextLines, err := cmd.Flags().GetInt("context")
	if err != nil {
		return fmt.Errorf("failed to get context flag: %w", err)
	}
	width, err := cmd.Flags().GetInt("width")
	if err != nil {
		return fmt.Errorf("failed to get width flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	timings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	format, err := diagfmt.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	pathMode, err := diagfmt.ParsePathMode(pathModeStr)
	if err != nil {
		return err
	}
	if format.Binary() && isTerminal(os.Stdout) {
		return fmt.Errorf("refusing to write %s to a terminal, redirect the output", format)
	}
	colorOn, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	timer := observ.NewTimer()
	endPhase := timer.Begin("load")
	cfg, err := loadProject(cmd)
	if err != nil {
		return err
	}
	tracer, cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	b, err := bridge.New(cfg.BridgeOptions(tracer))
	if err != nil {
		return fmt.Errorf("failed to start project %s: %w", cfg.Root, err)
	}
	defer func() { _ = b.Close() }()
	endPhase(cfg.Path)

	endPhase = timer.Begin("discover")
	files, err := collectTargets(b, args)
	if err != nil {
		return err
	}
	endPhase(fmt.Sprintf("%d files", len(files)))

	endPhase = timer.Begin("diagnose")
	bag, err := checkFiles(cmd.Context(), b, files, jobs, maxDiagnostics)
	if err != nil {
		return err
	}
	endPhase(fmt.Sprintf("%d records", bag.Len()))

	base := filepath.FromSlash(cfg.Root)
	opts := diagfmt.Options{
		Pretty: diagfmt.PrettyOpts{
			Color:    colorOn,
			Context:  contextLines,
			PathMode: pathMode,
			BaseDir:  base,
			Width:    width,
			Texts:    renderedTexts(b, cfg.Render()),
		},
		JSON: diagfmt.JSONOpts{PathMode: pathMode, BaseDir: base, Max: maxDiagnostics},
		Sarif: diagfmt.SarifRunMeta{
			ToolName:       "astrols",
			ToolVersion:    version.Version,
			InvocationArgs: os.Args,
			BaseDir:        base,
		},
	}
	out := cmd.OutOrStdout()
	endPhase = timer.Begin("render")
	if err := diagfmt.Write(out, format, bag, opts); err != nil {
		return fmt.Errorf("failed to write diagnostics: %w", err)
	}
	if !quiet && (format == diagfmt.FormatPretty || format == diagfmt.FormatShort) {
		diagfmt.Summary(out, bag, len(files))
	}
	endPhase(format.String())
	if timings {
		timer.WriteSummary(cmd.ErrOrStderr())
	}

	if bag.HasErrors() {
		return errDiagnosticsFound
	}
	return nil
}

// collectTargets registers the files named by args, expanding directories,
// or every project file when args is empty.
func collectTargets(b *bridge.Bridge, args []string) ([]string, error) {
	var candidates []string
	if len(args) == 0 {
		candidates = b.DiscoverFiles("")
	}
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		st, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if st.IsDir() {
			candidates = append(candidates, b.DiscoverFiles(filepath.ToSlash(abs))...)
			continue
		}
		candidates = append(candidates, filepath.ToSlash(abs))
	}

	seen := make(map[string]struct{}, len(candidates))
	files := make([]string, 0, len(candidates))
	for _, p := range candidates {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if _, ok := b.OpenFile(p); !ok {
			return nil, fmt.Errorf("failed to read %s", p)
		}
		files = append(files, p)
	}
	sort.Strings(files)
	return files, nil
}

// checkFiles runs a diagnostic pass for every file and collects the records
// in a sorted bag.
func checkFiles(ctx context.Context, b *bridge.Bridge, files []string, jobs, limit int) (*diag.Bag, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([][]diag.Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range files {
		g.Go(func() error {
			fctx, span := trace.Start(gctx, nil, trace.ScopePass, "check:file")
			span.WithExtra("path", path)
			defer span.End("")
			records, ok := b.GetDiagnostics(fctx, path)
			if !ok {
				if err := gctx.Err(); err != nil {
					return err
				}
				return fmt.Errorf("no consistent diagnostics for %s", path)
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bag := diag.NewBag(limit)
	report := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	for _, records := range results {
		for _, r := range records {
			report.Report(r)
		}
	}
	bag.Sort()
	return bag, nil
}

// renderedTexts returns the text record positions refer to in render mode.
func renderedTexts(b *bridge.Bridge, render diagnostics.Render) diagfmt.Texts {
	return func(path string) (string, bool) {
		if render == diagnostics.RenderGenerated {
			return b.VirtualText(path)
		}
		snap, ok := b.Snapshot(path)
		if !ok {
			return "", false
		}
		return snap.Source, true
	}
}
