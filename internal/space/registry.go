// Package space holds the replicated record store: named bags of tuples
// plus the registry that maps space names to their local replicas. All
// mutations arrive through the replicated log; the registry itself knows
// nothing about replication.
package space

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"tuplespace/internal/metrics"
	"tuplespace/internal/tuple"
)

var (
	ErrSpaceExists = errors.New("space already exists")
	ErrNoSuchSpace = errors.New("no such space")
)

type Registry struct {
	mu     sync.RWMutex
	spaces map[string]*Bag
}

func NewRegistry() *Registry {
	return &Registry{spaces: make(map[string]*Bag)}
}

// Create provisions a new named bag. With recreate set, an existing bag
// is discarded and replaced empty.
func (r *Registry) Create(name string, recreate bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spaces[name]; ok && !recreate {
		return fmt.Errorf("%w: %q", ErrSpaceExists, name)
	}
	r.spaces[name] = NewBag()
	r.updateGaugesLocked()
	return nil
}

func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spaces[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchSpace, name)
	}
	delete(r.spaces, name)
	r.updateGaugesLocked()
	return nil
}

func (r *Registry) Get(name string) (*Bag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.spaces[name]
	return b, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.spaces))
	for name := range r.spaces {
		names = append(names, name)
	}
	return names
}

// TupleCount is the total across all bags; used for metrics and for the
// join readiness check.
func (r *Registry) TupleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, b := range r.spaces {
		n += b.Len()
	}
	return n
}

type snapshotSpace struct {
	Name   string        `json:"name"`
	Tuples []tuple.Tuple `json:"tuples"`
}

type snapshot struct {
	Spaces []snapshotSpace `json:"spaces"`
}

// Snapshot serializes every space with its full bag contents in insertion
// order, so a restored replica takes tuples in the same order as the rest
// of the cluster.
func (r *Registry) Snapshot() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := snapshot{Spaces: make([]snapshotSpace, 0, len(r.spaces))}
	for name, bag := range r.spaces {
		snap.Spaces = append(snap.Spaces, snapshotSpace{
			Name:   name,
			Tuples: bag.All(),
		})
	}

	return json.Marshal(&snap)
}

// Reset discards every space, returning the registry to its initial
// empty state. Used when a node's replicated state is wiped.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spaces = make(map[string]*Bag)
	r.updateGaugesLocked()
}

// Restore replaces the whole registry with the snapshot contents.
func (r *Registry) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal registry snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.spaces = make(map[string]*Bag, len(snap.Spaces))
	for _, s := range snap.Spaces {
		bag := NewBag()
		bag.replace(s.Tuples)
		r.spaces[s.Name] = bag
	}
	r.updateGaugesLocked()
	return nil
}

func (r *Registry) updateGaugesLocked() {
	metrics.SpacesTotal.Set(float64(len(r.spaces)))
	n := 0
	for _, b := range r.spaces {
		n += b.Len()
	}
	metrics.TuplesTotal.Set(float64(n))
}
