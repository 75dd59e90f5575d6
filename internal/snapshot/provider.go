package snapshot

import (
	"os"
	"sync"

	"astrols/internal/source"
)

// ContentProvider yields the real source text of a path.
type ContentProvider interface {
	Content(realPath string) (string, bool)
}

// ProviderFunc adapts a function to ContentProvider.
type ProviderFunc func(realPath string) (string, bool)

// Content implements ContentProvider.
func (f ProviderFunc) Content(realPath string) (string, bool) {
	return f(realPath)
}

// DiskProvider reads sources from the OS filesystem.
type DiskProvider struct{}

// Content implements ContentProvider.
func (DiskProvider) Content(realPath string) (string, bool) {
	raw, err := os.ReadFile(realPath)
	if err != nil {
		return "", false
	}
	text, err := source.Decode(raw)
	if err != nil {
		return "", false
	}
	return text, true
}

// Overlay serves editor-held buffers and falls back to another provider.
type Overlay struct {
	mu       sync.RWMutex
	buffers  map[string]string
	fallback ContentProvider
}

// NewOverlay creates an Overlay; a nil fallback means buffers only.
func NewOverlay(fallback ContentProvider) *Overlay {
	return &Overlay{buffers: make(map[string]string), fallback: fallback}
}

// Put stores the in-memory text of realPath.
func (o *Overlay) Put(realPath, text string) {
	o.mu.Lock()
	o.buffers[realPath] = text
	o.mu.Unlock()
}

// Drop forgets the buffer of realPath.
func (o *Overlay) Drop(realPath string) {
	o.mu.Lock()
	delete(o.buffers, realPath)
	o.mu.Unlock()
}

// Clear forgets every buffer.
func (o *Overlay) Clear() {
	o.mu.Lock()
	o.buffers = make(map[string]string)
	o.mu.Unlock()
}

// Has reports whether realPath has an in-memory buffer.
func (o *Overlay) Has(realPath string) bool {
	o.mu.RLock()
	_, ok := o.buffers[realPath]
	o.mu.RUnlock()
	return ok
}

// Content implements ContentProvider.
func (o *Overlay) Content(realPath string) (string, bool) {
	o.mu.RLock()
	text, ok := o.buffers[realPath]
	o.mu.RUnlock()
	if ok {
		return text, true
	}
	if o.fallback == nil {
		return "", false
	}
	return o.fallback.Content(realPath)
}
