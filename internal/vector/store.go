// Package vector provides the in-memory store of normalized image embeddings.
package vector

import (
	"fmt"
	"sync"
)

// Store maps image identifiers (absolute paths) to unit-normalized embeddings.
// One writer (the embedding job) and any number of readers may use it concurrently;
// readers take a Snapshot and never observe a partially written entry.
type Store struct {
	mu         sync.RWMutex
	fixed      int
	dimensions int
	index      map[string]int
	ids        []string
	vectors    [][]float32
	generation uint64
}

// NewStore creates an empty store. When dimensions is positive, Put rejects vectors
// of any other length; zero accepts the length of the first vector stored.
func NewStore(dimensions int) *Store {
	if dimensions < 0 {
		dimensions = 0
	}
	return &Store{
		fixed:      dimensions,
		dimensions: dimensions,
		index:      make(map[string]int),
	}
}

// Put stores a copy of vec under id. Re-putting an id replaces its vector and keeps
// its original position.
func (s *Store) Put(id string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector for %s", id)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions == 0 {
		s.dimensions = len(cp)
	} else if len(cp) != s.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(cp), s.dimensions)
	}
	if i, ok := s.index[id]; ok {
		s.vectors[i] = cp
		return nil
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
	s.vectors = append(s.vectors, cp)
	return nil
}

// Get returns the vector stored under id.
func (s *Store) Get(id string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.vectors[i], true
}

// All returns a copy of the id -> vector mapping. The vectors themselves are shared
// and must not be modified.
func (s *Store) All() map[string][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]float32, len(s.ids))
	for i, id := range s.ids {
		out[id] = s.vectors[i]
	}
	return out
}

// Snapshot returns an immutable view of the current contents in insertion order.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		IDs:        make([]string, len(s.ids)),
		Vectors:    make([][]float32, len(s.vectors)),
		Generation: s.generation,
	}
	copy(snap.IDs, s.ids)
	copy(snap.Vectors, s.vectors)
	return snap
}

// Clear removes every entry and starts a new generation. When the store was created
// without fixed dimensions, the next Put chooses them again.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimensions = s.fixed
	s.index = make(map[string]int)
	s.ids = nil
	s.vectors = nil
	s.generation++
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Dimensions returns the vector length accepted by Put (0 if not yet fixed).
func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Generation returns how many times the store has been cleared.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot is a point-in-time view of a Store. IDs[i] owns Vectors[i].
type Snapshot struct {
	IDs        []string
	Vectors    [][]float32
	Generation uint64
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.IDs)
}
