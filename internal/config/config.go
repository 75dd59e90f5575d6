// Package config loads astrols.toml, the project .env file and the
// environment overrides into one Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"astrols/internal/bridge"
	"astrols/internal/diag"
	"astrols/internal/diagnostics"
	"astrols/internal/trace"
	"astrols/internal/vfs"
)

// FileName is the manifest searched for upward from the start directory.
const FileName = "astrols.toml"

// Environment overrides. They win over both the manifest and .env.
const (
	EnvTraceLevel  = "ASTROLS_TRACE_LEVEL"
	EnvTraceOutput = "ASTROLS_TRACE_OUTPUT"
	EnvRender      = "ASTROLS_RENDER"
)

type File struct {
	Project ProjectConfig `toml:"project"`
	Filter  FilterConfig  `toml:"filter"`
	FS      FSConfig      `toml:"fs"`
	Cache   CacheConfig   `toml:"cache"`
	Trace   TraceConfig   `toml:"trace"`
	Engine  EngineConfig  `toml:"engine"`
}

type ProjectConfig struct {
	Root     string `toml:"root"`
	TSConfig string `toml:"tsconfig"`
}

type FilterConfig struct {
	Render     string         `toml:"render"`
	ScriptTags []string       `toml:"script-tags"`
	OpaqueTags []string       `toml:"opaque-tags"`
	Suppress   []SuppressRule `toml:"suppress"`
}

// SuppressRule drops results with Code (0 = any) for which When holds.
type SuppressRule struct {
	Code int    `toml:"code"`
	When string `toml:"when"`
}

type FSConfig struct {
	DenyDirs        []string `toml:"deny-dirs"`
	ExtraExtensions []string `toml:"extra-extensions"`
}

type CacheConfig struct {
	TranspileEntries int `toml:"transpile-entries"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Mode   string `toml:"mode"`
}

type EngineConfig struct {
	ResolveJSONModule bool `toml:"resolve-json-module"`
}

// Config is a loaded and validated configuration.
type Config struct {
	// Path is the manifest path, empty when none was found.
	Path string
	// Root is the absolute project root in slash form.
	Root string
	File File

	render diagnostics.Render
	level  trace.Level
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds the manifest above startDir and applies .env and environment
// overrides. Without a manifest startDir itself is the project root.
func Load(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	base := startDir
	if ok {
		if cfg.File, err = decode(path); err != nil {
			return nil, err
		}
		cfg.Path = path
		base = filepath.Dir(path)
	}
	if base == "" {
		base = "."
	}
	if base, err = filepath.Abs(base); err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	root := base
	if r := strings.TrimSpace(cfg.File.Project.Root); r != "" {
		if !filepath.IsAbs(r) {
			r = filepath.Join(base, filepath.FromSlash(r))
		}
		root = filepath.Clean(r)
	}
	cfg.Root = filepath.ToSlash(root)

	env, err := readDotenv(filepath.Join(base, ".env"))
	if err != nil {
		return nil, err
	}
	cfg.override(env)
	if err := cfg.validate(); err != nil {
		if cfg.Path != "" {
			return nil, fmt.Errorf("%s: %w", cfg.Path, err)
		}
		return nil, err
	}
	return cfg, nil
}

func decode(path string) (File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return File{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return File{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0].String())
	}
	for i, r := range f.Filter.Suppress {
		if r.Code == 0 && strings.TrimSpace(r.When) == "" {
			return File{}, fmt.Errorf("%s: [[filter.suppress]] #%d needs code or when", path, i+1)
		}
	}
	if meta.IsDefined("cache", "transpile-entries") && f.Cache.TranspileEntries <= 0 {
		return File{}, fmt.Errorf("%s: [cache].transpile-entries must be positive", path)
	}
	return f, nil
}

// readDotenv returns the variables of a .env file, or nothing when it is
// absent. The process environment is left untouched.
func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

func (c *Config) override(dotenv map[string]string) {
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}
	if v, ok := lookup(EnvTraceLevel); ok {
		c.File.Trace.Level = v
	}
	if v, ok := lookup(EnvTraceOutput); ok {
		c.File.Trace.Output = v
	}
	if v, ok := lookup(EnvRender); ok {
		c.File.Filter.Render = v
	}
}

func (c *Config) validate() error {
	var err error
	if c.render, err = diagnostics.ParseRender(c.File.Filter.Render); err != nil {
		return fmt.Errorf("[filter].render: %w", err)
	}
	level := c.File.Trace.Level
	if level == "" {
		level = "off"
	}
	if c.level, err = trace.ParseLevel(strings.ToLower(level)); err != nil {
		return fmt.Errorf("[trace].level: %w", err)
	}
	if c.File.Trace.Mode != "" {
		if _, err := trace.ParseMode(c.File.Trace.Mode); err != nil {
			return fmt.Errorf("[trace].mode: %w", err)
		}
	}
	return nil
}

// Render is the validated render mode.
func (c *Config) Render() diagnostics.Render { return c.render }

// TraceLevel is the validated trace level.
func (c *Config) TraceLevel() trace.Level { return c.level }

// ProjectKey is the tsconfig path the engine is registered under.
func (c *Config) ProjectKey() string {
	ts := strings.TrimSpace(c.File.Project.TSConfig)
	if ts == "" {
		ts = "tsconfig.json"
	}
	if !filepath.IsAbs(ts) {
		ts = filepath.Join(filepath.FromSlash(c.Root), filepath.FromSlash(ts))
	}
	return filepath.ToSlash(filepath.Clean(ts))
}

// FilterOptions builds the diagnostic filter options.
func (c *Config) FilterOptions(tracer trace.Tracer) diagnostics.Options {
	opts := diagnostics.Options{
		Render: c.render,
		Tags:   diagnostics.Tags{Script: c.File.Filter.ScriptTags, Opaque: c.File.Filter.OpaqueTags},
		Tracer: tracer,
	}
	for _, r := range c.File.Filter.Suppress {
		opts.Rules = append(opts.Rules, diagnostics.Rule{Code: diag.Code(r.Code), When: r.When})
	}
	return opts
}

// BridgeOptions builds the options of a Bridge for this project.
func (c *Config) BridgeOptions(tracer trace.Tracer) bridge.Options {
	if tracer == nil {
		tracer = trace.Nop
	}
	return bridge.Options{
		Root:             c.Root,
		ProjectKey:       c.ProjectKey(),
		TranspileEntries: c.File.Cache.TranspileEntries,
		Shim: vfs.ShimOptions{
			DenyDirs:        c.File.FS.DenyDirs,
			ExtraExtensions: c.File.FS.ExtraExtensions,
		},
		ResolveJSONModule: c.File.Engine.ResolveJSONModule,
		Filter:            c.FilterOptions(tracer),
		Tracer:            tracer,
	}
}

// TraceConfig builds the tracer configuration.
func (c *Config) TraceConfig() trace.Config {
	mode := trace.ModeStream
	if c.File.Trace.Mode != "" {
		mode, _ = trace.ParseMode(c.File.Trace.Mode)
	}
	return trace.Config{Level: c.level, Mode: mode, OutputPath: c.File.Trace.Output}
}
