package formation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Store holds live formations. All methods are safe for concurrent use and
// return copies.
type Store struct {
	mu         sync.RWMutex
	formations map[types.ID]*entry
}

type entry struct {
	formation Formation

	// cancel stops the rollout goroutine; done is closed when it exits.
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{formations: make(map[types.ID]*entry)}
}

// Add stores f. Adding an id that is already present fails with ALREADY_EXISTS.
func (s *Store) Add(f Formation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.formations[f.ID]; ok {
		return types.NewError(types.ALREADY_EXISTS, fmt.Sprintf("formation already exists: %s", f.ID))
	}
	s.formations[f.ID] = &entry{formation: f.Clone()}
	return nil
}

// Get returns the formation with id.
func (s *Store) Get(id types.ID) (Formation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.formations[id]
	if !ok {
		return Formation{}, types.NotFound("formation", id.String())
	}
	return e.formation.Clone(), nil
}

// List returns every formation ordered by creation time, then id.
func (s *Store) List() []Formation {
	s.mu.RLock()
	out := make([]Formation, 0, len(s.formations))
	for _, e := range s.formations {
		out = append(out, e.formation.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the ids of every formation in List order.
func (s *Store) IDs() []types.ID {
	list := s.List()
	ids := make([]types.ID, len(list))
	for i, f := range list {
		ids[i] = f.ID
	}
	return ids
}

// Len returns the number of live formations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.formations)
}

// Update applies fn to the stored formation under the store lock. fn must not
// call back into the Store. The formation id cannot be changed.
func (s *Store) Update(id types.ID, fn func(*Formation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.formations[id]
	if !ok {
		return types.NotFound("formation", id.String())
	}
	fn(&e.formation)
	e.formation.ID = id
	return nil
}

// Remove deletes the formation and returns its last state.
func (s *Store) Remove(id types.ID) (Formation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.formations[id]
	if !ok {
		return Formation{}, types.NotFound("formation", id.String())
	}
	delete(s.formations, id)
	return e.formation, nil
}

func (s *Store) attachRollout(id types.ID, cancel context.CancelFunc, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.formations[id]; ok {
		e.cancel, e.done = cancel, done
	}
}

// rolloutHandle returns the cancel function and done channel of the
// formation's rollout goroutine, if one was started.
func (s *Store) rolloutHandle(id types.ID) (context.CancelFunc, <-chan struct{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.formations[id]
	if !ok || e.done == nil {
		return nil, nil, false
	}
	return e.cancel, e.done, true
}
