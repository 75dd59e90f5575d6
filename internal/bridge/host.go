package bridge

import (
	"astrols/internal/modcache"
	"astrols/internal/snapshot"
	"astrols/internal/vfs"
	"astrols/internal/vpath"
)

// The methods below implement engine.Host. Paths are virtual.

// ScriptFileNames implements engine.Host.
func (b *Bridge) ScriptFileNames() []string {
	paths := b.store.Paths()
	for i, p := range paths {
		paths[i] = vpath.ToVirtual(p)
	}
	return paths
}

func (b *Bridge) hostSnapshot(path string) (*snapshot.Snapshot, bool) {
	return b.store.GetOrCreate(vpath.ToReal(path), b.overlay)
}

// ScriptVersion implements engine.Host.
func (b *Bridge) ScriptVersion(path string) string {
	snap, ok := b.hostSnapshot(path)
	if !ok {
		return ""
	}
	return snap.VersionString()
}

// ScriptSnapshot implements engine.Host.
func (b *Bridge) ScriptSnapshot(path string) (string, bool) {
	snap, ok := b.hostSnapshot(path)
	if !ok {
		return "", false
	}
	return snap.Text, true
}

// FS implements engine.Host.
func (b *Bridge) FS() vfs.FS {
	return b.shim
}

// Resolutions exposes the cache for diagnostics and tests.
func (b *Bridge) Resolutions() *modcache.Cache {
	return b.modules
}
