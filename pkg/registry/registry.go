package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Registry keeps sessions open until their result ID is released.
// A single mutex makes Register and Release atomic per ID.
type Registry struct {
	mu       sync.Mutex
	sessions map[domain.ResultID]ports.Session
}

var _ ports.Registry = (*Registry)(nil)

// New creates an empty registry. Each service owns its own instance.
func New() *Registry {
	return &Registry{
		sessions: make(map[domain.ResultID]ports.Session),
	}
}

// Register stores session under id.
// Returns domain.ErrDuplicateResultID if the id is taken; the existing entry is kept.
func (r *Registry) Register(id domain.ResultID, session ports.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateResultID, id)
	}
	r.sessions[id] = session
	return nil
}

// Release removes the session for id and returns it for closing.
// A concurrent second Release for the same id observes domain.ErrResultNotFound.
func (r *Registry) Release(id domain.ResultID) (ports.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrResultNotFound, id)
	}
	delete(r.sessions, id)
	return session, nil
}

// IDs returns the pending result IDs, sorted.
func (r *Registry) IDs() []domain.ResultID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]domain.ResultID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of pending sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Drain removes every entry and returns them. The session service drains on shutdown.
func (r *Registry) Drain() map[domain.ResultID]ports.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.sessions
	r.sessions = make(map[domain.ResultID]ports.Session)
	return out
}
