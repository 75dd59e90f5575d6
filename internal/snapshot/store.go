package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"astrols/internal/metrics"
	"astrols/internal/source"
	"astrols/internal/trace"
	"astrols/internal/transpile"
	"astrols/internal/vpath"
)

// ErrNoSource is returned when neither a registered buffer nor the provider
// can supply text for a path.
var ErrNoSource = errors.New("no source for path")

// DefaultTranspileEntries bounds the transpile reuse cache when Options
// leaves it unset.
const DefaultTranspileEntries = 256

// Options configures a Store.
type Options struct {
	Transpiler       transpile.Transpiler
	TranspileEntries int
	Tracer           trace.Tracer
}

type entry struct {
	mu   sync.Mutex // один писатель на путь
	dead bool
	snap atomic.Pointer[Snapshot]
}

// Store is the single source of truth for engine-visible text.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	// last issued version of deleted paths, so a recreated path never
	// reuses a version the engine has already seen
	last map[string]int64

	transpiler transpile.Transpiler
	generated  *lru.Cache[source.Digest, transpile.Result]
	transpiles atomic.Int64
	tracer     trace.Tracer
}

// New creates an empty Store.
func New(opts Options) (*Store, error) {
	if opts.Transpiler == nil {
		opts.Transpiler = transpile.NewAstro()
	}
	if opts.TranspileEntries <= 0 {
		opts.TranspileEntries = DefaultTranspileEntries
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	cache, err := lru.New[source.Digest, transpile.Result](opts.TranspileEntries)
	if err != nil {
		return nil, fmt.Errorf("transpile cache: %w", err)
	}
	return &Store{
		entries:    make(map[string]*entry),
		last:       make(map[string]int64),
		transpiler: opts.Transpiler,
		generated:  cache,
		tracer:     opts.Tracer,
	}, nil
}

// Get returns the current snapshot of realPath. Absence is not an error.
func (s *Store) Get(realPath string) (*Snapshot, bool) {
	realPath = vpath.ToReal(realPath)
	s.mu.RLock()
	e := s.entries[realPath]
	s.mu.RUnlock()
	if e == nil {
		return nil, false
	}
	snap := e.snap.Load()
	return snap, snap != nil
}

// Set stores text as the source of realPath. Byte-identical text keeps the
// current snapshot and version; any other text bumps the version by one.
func (s *Store) Set(realPath, text string) *Snapshot {
	realPath = vpath.ToReal(realPath)
	for {
		e := s.entryFor(realPath)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		cur := e.snap.Load()
		if cur != nil && cur.Source == text {
			e.mu.Unlock()
			metrics.SnapshotWrite("unchanged")
			return cur
		}
		snap := s.build(realPath, text, s.nextVersion(realPath, cur))
		e.snap.Store(snap)
		e.mu.Unlock()

		kind := "update"
		if cur == nil {
			kind = "create"
		}
		metrics.SnapshotWrite(kind)
		trace.Point(s.tracer, trace.ScopeModule, "snapshot:"+kind, realPath, "version", snap.VersionString())
		return snap
	}
}

// GetOrCreate returns the current snapshot, creating it from provider on a
// miss. The bool is false when provider has no text for realPath.
func (s *Store) GetOrCreate(realPath string, provider ContentProvider) (*Snapshot, bool) {
	realPath = vpath.ToReal(realPath)
	if snap, ok := s.Get(realPath); ok {
		return snap, true
	}
	if provider == nil {
		return nil, false
	}
	text, ok := provider.Content(realPath)
	if !ok {
		return nil, false
	}
	for {
		e := s.entryFor(realPath)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		// другой писатель успел раньше
		if cur := e.snap.Load(); cur != nil {
			e.mu.Unlock()
			return cur, true
		}
		snap := s.build(realPath, text, s.nextVersion(realPath, nil))
		e.snap.Store(snap)
		e.mu.Unlock()
		metrics.SnapshotWrite("create")
		trace.Point(s.tracer, trace.ScopeModule, "snapshot:create", realPath, "version", snap.VersionString())
		return snap, true
	}
}

// Delete evicts realPath. Callers own invalidation of anything derived from
// it, such as resolution cache entries.
func (s *Store) Delete(realPath string) bool {
	realPath = vpath.ToReal(realPath)
	s.mu.RLock()
	e := s.entries[realPath]
	s.mu.RUnlock()
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return false
	}
	e.dead = true
	var version int64
	if snap := e.snap.Load(); snap != nil {
		version = snap.Version
	}

	s.mu.Lock()
	if s.entries[realPath] == e {
		delete(s.entries, realPath)
	}
	if version > s.last[realPath] {
		s.last[realPath] = version
	}
	s.mu.Unlock()

	metrics.SnapshotWrite("delete")
	trace.Point(s.tracer, trace.ScopeModule, "snapshot:delete", realPath, "version", strconv.FormatInt(version, 10))
	return true
}

// Paths returns the registered real paths in sorted order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for p, e := range s.entries {
		if e.snap.Load() != nil {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of registered paths.
func (s *Store) Len() int {
	return len(s.Paths())
}

// Reset evicts every entry. Version history is kept.
func (s *Store) Reset() {
	for _, p := range s.Paths() {
		s.Delete(p)
	}
}

// TranspileCount returns how many times the transpiler actually ran.
func (s *Store) TranspileCount() int64 {
	return s.transpiles.Load()
}

func (s *Store) entryFor(realPath string) *entry {
	s.mu.RLock()
	e := s.entries[realPath]
	s.mu.RUnlock()
	if e != nil {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.entries[realPath]; e == nil {
		e = &entry{}
		s.entries[realPath] = e
	}
	return e
}

// nextVersion must be called with the entry lock held.
func (s *Store) nextVersion(realPath string, cur *Snapshot) int64 {
	if cur != nil {
		return cur.Version + 1
	}
	s.mu.RLock()
	last := s.last[realPath]
	s.mu.RUnlock()
	return last + 1
}

func (s *Store) build(realPath, text string, version int64) *Snapshot {
	snap := &Snapshot{
		RealPath: realPath,
		Version:  version,
		Source:   text,
		Kind:     vpath.KindForPath(realPath),
	}
	if !vpath.IsComponentPath(realPath) {
		res := transpile.Identity(text)
		snap.Text = res.Generated
		snap.Mappings = res.Mappings
		return snap
	}

	digest := source.Hash(text)
	res, reused := s.generated.Get(digest)
	if !reused {
		res = s.transpiler.Transpile(text)
		s.transpiles.Add(1)
		s.generated.Add(digest, res)
	}
	metrics.Transpiled(reused)

	snap.Text = res.Generated
	snap.GeneratedFrom = &digest
	snap.ParserError = res.ParserError
	snap.Mappings = res.Mappings
	return snap
}
