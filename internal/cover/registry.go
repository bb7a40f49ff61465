package cover

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateCover is returned when a platform brings a unique id another entry already owns
var ErrDuplicateCover = errors.New("duplicate cover unique id")

// Registry indexes the covers of every loaded platform by unique id
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]*Platform
	listeners []Listener
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{platforms: make(map[string]*Platform)}
}

// Add registers a set-up platform under its entry id, replacing any previous one.
// A platform whose covers collide with another entry's is refused.
func (r *Registry) Add(p *Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owners := make(map[string]string)
	for entryID, other := range r.platforms {
		if entryID == p.EntryID() {
			continue
		}
		for _, c := range other.Covers() {
			owners[c.UniqueID()] = entryID
		}
	}
	for _, c := range p.Covers() {
		if owner, taken := owners[c.UniqueID()]; taken {
			return fmt.Errorf("%w: %s is owned by entry %s", ErrDuplicateCover, c.UniqueID(), owner)
		}
	}

	for _, l := range r.listeners {
		p.OnChange(l)
	}
	r.platforms[p.EntryID()] = p
	return nil
}

// Remove drops the platform for an entry
func (r *Registry) Remove(entryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.platforms, entryID)
}

// Platforms returns the registered platforms ordered by entry id
func (r *Registry) Platforms() []*Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.platforms))
	for id := range r.platforms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Platform, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.platforms[id])
	}
	return out
}

// Covers returns every cover across platforms
func (r *Registry) Covers() []*Cover {
	var out []*Cover
	for _, p := range r.Platforms() {
		out = append(out, p.Covers()...)
	}
	return out
}

// Get finds a cover by unique id
func (r *Registry) Get(uniqueID string) (*Cover, error) {
	for _, c := range r.Covers() {
		if c.UniqueID() == uniqueID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCover, uniqueID)
}

// OnChange registers a listener on every platform, including ones added later
func (r *Registry) OnChange(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
	for _, p := range r.platforms {
		p.OnChange(l)
	}
}
