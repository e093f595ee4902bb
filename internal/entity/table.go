package entity

import (
	"strings"
	"sync"
)

// Key joins the parts identifying one data point into an index key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Index holds the live entities of one class, keyed by data point.
type Index struct {
	mu    sync.RWMutex
	items map[string]Entity
	order []string
}

func NewIndex() *Index {
	return &Index{items: make(map[string]Entity)}
}

func (i *Index) Get(key string) (Entity, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.items[key]
	return e, ok
}

// PutIfAbsent stores e under key unless the key is taken; it returns the stored entity
// and whether e was inserted.
func (i *Index) PutIfAbsent(key string, e Entity) (Entity, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if existing, ok := i.items[key]; ok {
		return existing, false
	}
	i.items[key] = e
	i.order = append(i.order, key)
	return e, true
}

// Remove deletes e by identity and reports whether it was present.
func (i *Index) Remove(e Entity) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for pos, key := range i.order {
		if i.items[key] == e {
			delete(i.items, key)
			i.order = append(i.order[:pos], i.order[pos+1:]...)
			return true
		}
	}
	return false
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.items)
}

// Entities returns the entities in insertion order.
func (i *Index) Entities() []Entity {
	i.mu.RLock()
	defer i.mu.RUnlock()
	result := make([]Entity, 0, len(i.order))
	for _, key := range i.order {
		result = append(result, i.items[key])
	}
	return result
}

// Table maps entity classes to their index of live entities.
type Table struct {
	mu      sync.Mutex
	classes map[ClassToken]*Index
}

func NewTable() *Table {
	return &Table{classes: make(map[ClassToken]*Index)}
}

// Index returns the index for token, creating it on first use.
func (t *Table) Index(token ClassToken) *Index {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.classes[token]
	if !ok {
		idx = NewIndex()
		t.classes[token] = idx
	}
	return idx
}

// Remove deletes e from its class index.
func (t *Table) Remove(e Entity) bool {
	t.mu.Lock()
	idx, ok := t.classes[e.Core().Class().Token()]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return idx.Remove(e)
}

// Len counts live entities across all classes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, idx := range t.classes {
		total += idx.Len()
	}
	return total
}

// All returns every live entity.
func (t *Table) All() []Entity {
	t.mu.Lock()
	indexes := make([]*Index, 0, len(t.classes))
	for _, idx := range t.classes {
		indexes = append(indexes, idx)
	}
	t.mu.Unlock()

	var result []Entity
	for _, idx := range indexes {
		result = append(result, idx.Entities()...)
	}
	return result
}
