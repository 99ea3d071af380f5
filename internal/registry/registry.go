// Package registry keeps the latest Spec reported by each connector.
package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/smsctl/internal/connector"
)

var ErrEmptyID = errors.New("registry: connector id is empty")

// Entry is a registered Spec plus the time it was last reported.
type Entry struct {
	Spec      connector.Spec
	UpdatedAt time.Time
}

// Registry maps connector identity to its most recent Spec. Writes replace an
// entry wholesale; readers always see a complete Spec.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Entry
	now   func() time.Time
}

func New() *Registry {
	return &Registry{items: make(map[string]Entry), now: time.Now}
}

// Put stores spec under its id. The last write wins.
func (r *Registry) Put(spec connector.Spec) error {
	id := strings.TrimSpace(spec.ID())
	if id == "" {
		return ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = Entry{Spec: spec, UpdatedAt: r.now()}
	return nil
}

func (r *Registry) Get(id string) (connector.Spec, bool) {
	e, ok := r.Lookup(id)
	return e.Spec, ok
}

// Lookup returns the full entry for id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	return e, ok
}

// List returns every entry ordered by connector id.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	list := make([]Entry, 0, len(r.items))
	for _, e := range r.items {
		list = append(list, e)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Spec.ID() < list[j].Spec.ID()
	})
	return list
}

// Supporting returns the ids of connectors whose capabilities include c.
func (r *Registry) Supporting(c connector.Capability) []string {
	out := []string{}
	for _, e := range r.List() {
		if e.Spec.Supports(c) {
			out = append(out, e.Spec.ID())
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Remove forgets id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	delete(r.items, id)
	return ok
}
