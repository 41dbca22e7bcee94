package watch

import "sync"

// Registry maps watch handles to absolute local directory paths.
// It only grows; handles of removed directories stay and are ignored by the
// source.
type Registry struct {
	mu     sync.RWMutex
	paths  map[Handle]string
	byPath map[string]Handle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		paths:  make(map[Handle]string),
		byPath: make(map[string]Handle),
	}
}

// Register records the directory watched under h
func (r *Registry) Register(h Handle, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[h] = path
	r.byPath[path] = h
}

// Lookup returns the directory of a handle
func (r *Registry) Lookup(h Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.paths[h]
	return p, ok
}

// HandleOf returns the most recent handle registered for path
func (r *Registry) HandleOf(path string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byPath[path]
	return h, ok
}

// Len returns the number of registered handles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}
