package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"astrols/internal/bridge"
	"astrols/internal/vpath"
)

var virtualCmd = &cobra.Command{
	Use:          "virtual <file>",
	Short:        "Print the script the type checker sees for a file",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runVirtual,
}

var resolveCmd = &cobra.Command{
	Use:          "resolve <specifier> [from]",
	Short:        "Resolve an import specifier the way the type checker does",
	Args:         cobra.RangeArgs(1, 2),
	SilenceUsage: true,
	RunE:         runResolve,
}

func init() {
	virtualCmd.Flags().Bool("paths", false, "print the virtual path instead of the text")
	resolveCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

// openBridge loads the project and starts a bridge; done releases both.
func openBridge(cmd *cobra.Command) (*bridge.Bridge, string, func(), error) {
	cfg, err := loadProject(cmd)
	if err != nil {
		return nil, "", nil, err
	}
	tracer, cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return nil, "", nil, err
	}
	b, err := bridge.New(cfg.BridgeOptions(tracer))
	if err != nil {
		cleanup()
		return nil, "", nil, fmt.Errorf("failed to start project %s: %w", cfg.Root, err)
	}
	return b, cfg.Root, func() {
		_ = b.Close()
		cleanup()
	}, nil
}

func absSlash(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	return filepath.ToSlash(abs), nil
}

func runVirtual(cmd *cobra.Command, args []string) error {
	onlyPaths, err := cmd.Flags().GetBool("paths")
	if err != nil {
		return fmt.Errorf("failed to get paths flag: %w", err)
	}
	path, err := absSlash(args[0])
	if err != nil {
		return err
	}
	b, _, done, err := openBridge(cmd)
	if err != nil {
		return err
	}
	defer done()

	if _, ok := b.OpenFile(path); !ok {
		return fmt.Errorf("failed to read %s", args[0])
	}
	return writeVirtual(cmd.OutOrStdout(), b, path, onlyPaths)
}

func writeVirtual(out io.Writer, b *bridge.Bridge, path string, onlyPaths bool) error {
	if onlyPaths {
		fmt.Fprintln(out, vpath.ToVirtual(path))
		return nil
	}
	text, ok := b.VirtualText(path)
	if !ok {
		return fmt.Errorf("%s is not registered", path)
	}
	fmt.Fprint(out, text)
	return nil
}

type resolvePayload struct {
	Specifier string `json:"specifier"`
	From      string `json:"from"`
	Resolved  bool   `json:"resolved"`
	Path      string `json:"path,omitempty"`
	Extension string `json:"extension,omitempty"`
	External  bool   `json:"external,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	b, root, done, err := openBridge(cmd)
	if err != nil {
		return err
	}
	defer done()

	// без второго аргумента резолвим от корня проекта
	from := root + "/index.ts"
	if len(args) == 2 {
		if from, err = absSlash(args[1]); err != nil {
			return err
		}
	}
	return writeResolution(cmd.OutOrStdout(), b, args[0], from, format)
}

func writeResolution(out io.Writer, b *bridge.Bridge, spec, from, format string) error {
	payload := resolvePayload{Specifier: spec, From: from}
	if mod, ok := b.ResolveModule(spec, from); ok {
		payload.Resolved = true
		payload.Path = mod.ResolvedPath
		payload.Extension = string(mod.Extension)
		payload.External = mod.IsExternalLibrary
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	if !payload.Resolved {
		fmt.Fprintf(out, "%s: not resolved from %s\n", spec, from)
		return nil
	}
	fmt.Fprintf(out, "%s -> %s (%s)", spec, payload.Path, payload.Extension)
	if payload.External {
		fmt.Fprint(out, " external")
	}
	fmt.Fprintln(out)
	return nil
}
