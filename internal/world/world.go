// Package world holds the reference data of the currently loaded world.
package world

import (
	"sync"
	"time"

	"ambientsaga/internal/config"
	"ambientsaga/internal/sagaerr"
)

// Context is created when a world is loaded and discarded on unload.
type Context struct {
	Catalog  *config.Catalog
	LoadedAt time.Time
}

// Host owns the loaded-world Context. Commands resolve it per call instead
// of reaching for a global.
type Host struct {
	mu      sync.RWMutex
	current *Context
}

func NewHost() *Host {
	return &Host{}
}

// Load replaces any loaded world with catalog.
func (h *Host) Load(catalog *config.Catalog) *Context {
	ctx := &Context{Catalog: catalog, LoadedAt: time.Now().UTC()}
	h.mu.Lock()
	h.current = ctx
	h.mu.Unlock()
	return ctx
}

func (h *Host) Unload() {
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()
}

// Current returns the loaded world or a not-found error.
func (h *Host) Current() (*Context, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, sagaerr.New(sagaerr.CodeNotFound, "no world is loaded")
	}
	return h.current, nil
}
