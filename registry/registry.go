// Package registry provides the shared cross-panel file cache. Panels that
// never hold a live editor handle (search, cross-panel navigation) resolve
// files by id or name here instead of re-reading disk.
package registry

import (
	"strings"
	"sync"

	"github.com/halcyondev/parley/editor"
)

// InMemory is a best-effort, last-writer-wins cache keyed by file id. All
// methods are safe for concurrent use; no method holds the lock across
// another call, so registration races stay benign.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]editor.RegistryEntry
}

var _ editor.Registry = (*InMemory)(nil)

// New creates an empty registry.
func New() *InMemory {
	return &InMemory{entries: make(map[string]editor.RegistryEntry)}
}

// Register stores or overwrites the entry for id.
func (r *InMemory) Register(name, id, content, language string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	r.entries[id] = editor.RegistryEntry{ID: id, Name: name, Content: content, Language: language}
	r.mu.Unlock()
}

// Unregister removes the entry for id, if present.
func (r *InMemory) Unregister(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Get resolves an id or a name. Ids match directly; names match exactly
// first and case-insensitively second.
func (r *InMemory) Get(idOrName string) (editor.RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.entries[idOrName]; ok {
		return entry, true
	}
	for _, entry := range r.entries {
		if entry.Name == idOrName {
			return entry, true
		}
	}
	lower := strings.ToLower(idOrName)
	for id, entry := range r.entries {
		if strings.ToLower(entry.Name) == lower || strings.ToLower(id) == lower {
			return entry, true
		}
	}
	return editor.RegistryEntry{}, false
}

// RegisterBatch stores all entries in one lock acquisition.
func (r *InMemory) RegisterBatch(entries []editor.RegistryEntry) {
	r.mu.Lock()
	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}
		r.entries[entry.ID] = entry
	}
	r.mu.Unlock()
}

// Clear drops every entry.
func (r *InMemory) Clear() {
	r.mu.Lock()
	r.entries = make(map[string]editor.RegistryEntry)
	r.mu.Unlock()
}

// Len returns the number of cached entries.
func (r *InMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
