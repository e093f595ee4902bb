// Package registry implements the per config entry update delegator registry.
package registry

import (
	"sync"

	"github.com/tejusbharadwaj/energosync/internal/entity"
)

// Delegator is what a sub-platform contributes: its entity sink and the classes it hosts.
type Delegator struct {
	Platform string
	Sink     entity.AddEntitiesFunc
	Classes  []entity.Class
}

// Registry maps sub-platform names to delegators. It keeps registration order so that
// refresh fan-out is deterministic.
type Registry struct {
	mu         sync.RWMutex
	expected   []string
	delegators map[string]Delegator
	order      []string
}

// New creates a registry that considers itself complete once every expected platform
// has registered.
func New(expected ...string) *Registry {
	return &Registry{
		expected:   expected,
		delegators: make(map[string]Delegator),
	}
}

// Register inserts or overwrites the delegator of platform (last write wins) and
// reports whether every expected platform is now present.
func (r *Registry) Register(platform string, sink entity.AddEntitiesFunc, classes ...entity.Class) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.delegators[platform]; !exists {
		r.order = append(r.order, platform)
	}
	r.delegators[platform] = Delegator{
		Platform: platform,
		Sink:     sink,
		Classes:  append([]entity.Class(nil), classes...),
	}

	return r.readyLocked()
}

// Ready reports whether all expected platforms have registered.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readyLocked()
}

func (r *Registry) readyLocked() bool {
	for _, platform := range r.expected {
		if _, ok := r.delegators[platform]; !ok {
			return false
		}
	}
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.delegators)
}

// Delegators returns a snapshot in registration order.
func (r *Registry) Delegators() []Delegator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Delegator, 0, len(r.order))
	for _, platform := range r.order {
		result = append(result, r.delegators[platform])
	}
	return result
}

// Missing lists expected platforms that have not registered yet.
func (r *Registry) Missing() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, platform := range r.expected {
		if _, ok := r.delegators[platform]; !ok {
			missing = append(missing, platform)
		}
	}
	return missing
}
