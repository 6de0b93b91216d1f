package space

import (
	"sync"

	"tuplespace/internal/tuple"
)

// Bag is one space's local replica: a FIFO multiset of tuples. Duplicates
// are legal and meaningful. Take removes the oldest match, which is
// deterministic across replicas because all mutations arrive in log order.
type Bag struct {
	mu     sync.RWMutex
	tuples []tuple.Tuple
	wave   chan struct{}
}

func NewBag() *Bag {
	return &Bag{wave: make(chan struct{})}
}

// Add appends t and wakes everything blocked on the current insert wave.
func (b *Bag) Add(t tuple.Tuple) {
	b.mu.Lock()
	b.tuples = append(b.tuples, t.Clone())
	close(b.wave)
	b.wave = make(chan struct{})
	b.mu.Unlock()
}

// InsertWave returns a channel closed on the next insert. Callers must
// obtain the wave before their match attempt to avoid missed wakeups.
func (b *Bag) InsertWave() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.wave
}

// Take removes and returns the first tuple matching p.
func (b *Bag) Take(p tuple.Pattern) (tuple.Tuple, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, t := range b.tuples {
		if p.Matches(t) {
			b.tuples = append(b.tuples[:i], b.tuples[i+1:]...)
			return t, true
		}
	}
	return nil, false
}

// Read returns the first tuple matching p without removing it.
func (b *Bag) Read(p tuple.Pattern) (tuple.Tuple, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, t := range b.tuples {
		if p.Matches(t) {
			return t.Clone(), true
		}
	}
	return nil, false
}

func (b *Bag) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tuples)
}

// All returns a copy of the bag contents in insertion order.
func (b *Bag) All() []tuple.Tuple {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]tuple.Tuple, len(b.tuples))
	for i, t := range b.tuples {
		out[i] = t.Clone()
	}
	return out
}

func (b *Bag) replace(tuples []tuple.Tuple) {
	b.mu.Lock()
	b.tuples = tuples
	close(b.wave)
	b.wave = make(chan struct{})
	b.mu.Unlock()
}
