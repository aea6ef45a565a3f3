package session

import "sync"

// Registry is the process-wide set of DetailHolders, one per live or
// recently-ended session. Grounded on the teacher's Store: a map guarded
// by a single RWMutex, with reads returning the holder pointer itself
// (callers mutate through the holder's own locks, not the registry's).
type Registry struct {
	mu      sync.RWMutex
	holders map[ID]*DetailHolder
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{holders: make(map[ID]*DetailHolder)}
}

// Add registers a holder, replacing any existing holder for the same id.
func (r *Registry) Add(h *DetailHolder) {
	r.mu.Lock()
	r.holders[h.ID()] = h
	r.mu.Unlock()
}

// Get looks up a holder by session id.
func (r *Registry) Get(id ID) (*DetailHolder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.holders[id]
	return h, ok
}

// All returns every registered holder in no particular order.
func (r *Registry) All() []*DetailHolder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DetailHolder, 0, len(r.holders))
	for _, h := range r.holders {
		out = append(out, h)
	}
	return out
}

// Remove drops a holder from the registry. Safe to call even if id isn't
// currently registered.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	delete(r.holders, id)
	r.mu.Unlock()
}

// Count returns the number of registered holders.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.holders)
}
