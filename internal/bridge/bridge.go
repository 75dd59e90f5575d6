// Package bridge is the caller-facing API of the virtual-file layer.
//
// A Bridge owns the snapshot store, the file-system shim, the module
// resolution cache and an engine handle. Callers speak in real paths only;
// virtual paths never leave this package except through the engine.Host
// methods the engine calls.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"astrols/internal/diag"
	"astrols/internal/diagnostics"
	"astrols/internal/engine"
	"astrols/internal/engine/tsxengine"
	"astrols/internal/metrics"
	"astrols/internal/modcache"
	"astrols/internal/snapshot"
	"astrols/internal/trace"
	"astrols/internal/transpile"
	"astrols/internal/vfs"
	"astrols/internal/vpath"
)

// DefaultPassRetries bounds how often a diagnostic pass restarts after a
// concurrent edit before giving up.
const DefaultPassRetries = 3

// DiscoverExclude is the default exclude set of DiscoverFiles.
var DiscoverExclude = []string{"dist", "node_modules"}

// discoverExtensions are the plain script extensions DiscoverFiles asks
// for; the shim adds the component ones.
var discoverExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs"}

// Options configures a Bridge. Zero values select the defaults.
type Options struct {
	// Root is the project root used for discovery and the default ProjectKey.
	Root string
	// ProjectKey identifies the engine in the registry, typically the
	// tsconfig path.
	ProjectKey string

	Transpiler       transpile.Transpiler
	TranspileEntries int
	// Disk provides source text for files the caller never registered.
	Disk snapshot.ContentProvider
	FS   vfs.FS
	Shim vfs.ShimOptions

	Resolver          modcache.Resolver
	ResolveJSONModule bool

	// Engines is shared with other bridges when set; otherwise the bridge
	// owns a registry backed by Factory.
	Engines *engine.Registry
	Factory engine.Factory

	Filter      diagnostics.Options
	PassRetries int
	Tracer      trace.Tracer
}

// Bridge is safe for concurrent use.
type Bridge struct {
	root    string
	key     string
	retries int
	tracer  trace.Tracer

	overlay *snapshot.Overlay
	store   *snapshot.Store
	native  vfs.FS
	shim    *vfs.Shim
	modules *modcache.Cache
	filter  atomic.Pointer[diagnostics.Filter]

	registry     *engine.Registry
	ownsRegistry bool
	handle       *engine.Handle
}

var _ engine.Host = (*Bridge)(nil)

// New wires the components together and acquires the project's engine.
func New(opts Options) (*Bridge, error) {
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	if opts.FS == nil {
		opts.FS = vfs.OS{}
	}
	if opts.Disk == nil {
		opts.Disk = snapshot.DiskProvider{}
	}
	if opts.Resolver == nil {
		opts.Resolver = modcache.NodeResolver{ResolveJSON: opts.ResolveJSONModule}
	}
	if opts.PassRetries <= 0 {
		opts.PassRetries = DefaultPassRetries
	}
	if opts.ProjectKey == "" {
		opts.ProjectKey = filepath.ToSlash(filepath.Join(opts.Root, "tsconfig.json"))
	}
	if opts.Filter.Tracer == nil {
		opts.Filter.Tracer = opts.Tracer
	}

	store, err := snapshot.New(snapshot.Options{
		Transpiler:       opts.Transpiler,
		TranspileEntries: opts.TranspileEntries,
		Tracer:           opts.Tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	overlay := snapshot.NewOverlay(opts.Disk)
	shim, err := vfs.NewShim(opts.FS, store, overlay, opts.Shim)
	if err != nil {
		return nil, err
	}
	filter, err := diagnostics.New(opts.Filter)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		root:    opts.Root,
		key:     opts.ProjectKey,
		retries: opts.PassRetries,
		tracer:  opts.Tracer,
		overlay: overlay,
		store:   store,
		native:  opts.FS,
		shim:    shim,
		modules: modcache.New(modcache.Options{
			Resolver: opts.Resolver,
			Native:   opts.FS,
			Shim:     shim,
			Tracer:   opts.Tracer,
		}),
		registry: opts.Engines,
	}
	b.filter.Store(filter)
	if b.registry == nil {
		factory := opts.Factory
		if factory == nil {
			factory = tsxengine.Factory
		}
		b.registry = engine.NewRegistry(factory)
		b.ownsRegistry = true
	}
	b.handle, err = b.registry.Acquire(b.key, b, engine.Options{ResolveJSONModule: opts.ResolveJSONModule})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SetFilter replaces the diagnostic filter; passes already running keep
// the old one.
func (b *Bridge) SetFilter(opts diagnostics.Options) error {
	if opts.Tracer == nil {
		opts.Tracer = b.tracer
	}
	f, err := diagnostics.New(opts)
	if err != nil {
		return err
	}
	b.filter.Store(f)
	return nil
}

func (b *Bridge) engine() (engine.Engine, error) {
	return b.handle.Engine()
}

func (b *Bridge) projectUpdated() {
	if eng, err := b.engine(); err == nil {
		eng.ProjectUpdated()
	}
}

// RegisterOrUpdateFile sets the caller-held text of realPath and returns
// the resulting snapshot version.
func (b *Bridge) RegisterOrUpdateFile(realPath, text string) int64 {
	realPath = vpath.ToReal(realPath)
	_, existed := b.store.Get(realPath)
	b.overlay.Put(realPath, text)
	snap := b.store.Set(realPath, text)
	if !existed {
		// новый файл может разрешить чужие импорты
		b.projectUpdated()
	}
	return snap.Version
}

// OpenFile makes realPath known from its on-disk contents, unless the
// caller already registered it.
func (b *Bridge) OpenFile(realPath string) (int64, bool) {
	realPath = vpath.ToReal(realPath)
	_, existed := b.store.Get(realPath)
	snap, ok := b.store.GetOrCreate(realPath, b.overlay)
	if !ok {
		return 0, false
	}
	if !existed {
		b.projectUpdated()
	}
	return snap.Version, true
}

// RemoveFile evicts realPath and every resolution entry that points at it.
func (b *Bridge) RemoveFile(realPath string) bool {
	realPath = vpath.ToReal(realPath)
	b.overlay.Drop(realPath)
	removed := b.store.Delete(realPath)
	n := b.modules.Invalidate(realPath)
	if eng, err := b.engine(); err == nil {
		if f, ok := eng.(interface{ Forget(string) }); ok {
			f.Forget(vpath.ToVirtual(realPath))
		}
		eng.ProjectUpdated()
	}
	trace.Point(b.tracer, trace.ScopeModule, "file:remove", realPath, "invalidated", strconv.Itoa(n))
	return removed
}

// Snapshot returns the current snapshot of a registered file.
func (b *Bridge) Snapshot(realPath string) (*snapshot.Snapshot, bool) {
	return b.store.Get(vpath.ToReal(realPath))
}

// VirtualText returns what the engine sees for realPath.
func (b *Bridge) VirtualText(realPath string) (string, bool) {
	snap, ok := b.store.GetOrCreate(vpath.ToReal(realPath), b.overlay)
	if !ok {
		return "", false
	}
	return snap.Text, true
}

// ResolveModule resolves spec imported from fromRealPath.
func (b *Bridge) ResolveModule(spec, fromRealPath string) (modcache.ResolvedModule, bool) {
	return b.modules.Resolve(spec, vpath.ToReal(fromRealPath))
}

// ProjectChanged drops every cached resolution and tells the engine to
// recompute cross-file results.
func (b *Bridge) ProjectChanged() {
	n := b.modules.InvalidateAll()
	b.projectUpdated()
	trace.Point(b.tracer, trace.ScopeModule, "project:changed", b.key, "invalidated", strconv.Itoa(n))
}

// DiscoverFiles lists component and script files under root, or under the
// bridge root when root is empty.
func (b *Bridge) DiscoverFiles(root string) []string {
	if root == "" {
		root = b.root
	}
	return b.shim.ReadDirectory(root, discoverExtensions, DiscoverExclude, nil, -1)
}

// Files returns the registered real paths.
func (b *Bridge) Files() []string {
	return b.store.Paths()
}

// Reset forgets every file and cached resolution.
func (b *Bridge) Reset() {
	b.overlay.Clear()
	b.store.Reset()
	b.modules.InvalidateAll()
	if eng, err := b.engine(); err == nil {
		if f, ok := eng.(interface{ Forget(string) }); ok {
			for _, p := range b.ScriptFileNames() {
				f.Forget(p)
			}
		}
		eng.ProjectUpdated()
	}
}

// Close releases the engine handle, and the registry when the bridge owns it.
func (b *Bridge) Close() error {
	err := b.registry.Dispose(b.key)
	if b.ownsRegistry {
		err = errors.Join(err, b.registry.Close())
	}
	return err
}

// GetDiagnostics runs one diagnostic pass for realPath. The bool is false
// when the file is not registered or no consistent pass could be made.
func (b *Bridge) GetDiagnostics(ctx context.Context, realPath string) ([]diag.Record, bool) {
	realPath = vpath.ToReal(realPath)
	virtual := vpath.ToVirtual(realPath)
	eng, err := b.engine()
	if err != nil {
		return nil, false
	}
	ctx, span := trace.Start(ctx, b.tracer, trace.ScopeDriver, "get-diagnostics")
	span.WithExtra("path", realPath)

	for attempt := 0; attempt <= b.retries; attempt++ {
		snap, ok := b.store.Get(realPath)
		if !ok {
			span.End("not registered")
			return nil, false
		}
		in := diagnostics.Input{Path: realPath, Snapshot: snap}
		if snap.ParserError == nil {
			if in, err = b.collect(ctx, eng, virtual, in); err != nil {
				trace.Point(b.tracer, trace.ScopePass, "engine:error", err.Error(), "path", realPath)
				span.End("engine error")
				return nil, false
			}
		}
		// версия не должна меняться между чтением снапшота и ответом движка
		cur, ok := b.store.Get(realPath)
		if !ok {
			span.End("removed")
			return nil, false
		}
		if cur.Version != snap.Version {
			metrics.PassRestarted()
			trace.Point(b.tracer, trace.ScopePass, "pass:restart", realPath,
				"from", snap.VersionString(), "to", cur.VersionString())
			continue
		}
		out := b.filter.Load().Run(ctx, in)
		span.WithExtra("version", snap.VersionString()).End("")
		return out, true
	}
	span.End("gave up")
	return nil, false
}

// collect asks the engine for every diagnostic kind and the syntax tree of
// the snapshot in in.
func (b *Bridge) collect(ctx context.Context, eng engine.Engine, virtual string, in diagnostics.Input) (diagnostics.Input, error) {
	var err error
	if in.Syntactic, err = eng.SyntacticDiagnostics(ctx, virtual); err != nil {
		return in, err
	}
	if in.Suggestion, err = eng.SuggestionDiagnostics(ctx, virtual); err != nil {
		return in, err
	}
	if in.Semantic, err = eng.SemanticDiagnostics(ctx, virtual); err != nil {
		return in, err
	}
	if tp, ok := eng.(engine.TreeProvider); ok {
		tree, ok := tp.SyntaxTree(ctx, virtual)
		if ok && tree.Version == in.Snapshot.VersionString() {
			in.Tree = tree.Root
		}
	}
	return in, nil
}
