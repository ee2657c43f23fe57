package grid

import (
	"sync"

	"github.com/google/uuid"
)

// Registry resolves account ids to their live grid session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]Session)}
}

func (r *Registry) Get(accountID uuid.UUID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[accountID]
	return s, ok
}

// Add registers a session, replacing and returning any previous one for the
// same account.
func (r *Registry) Add(s Session) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.sessions[s.AccountID()]
	r.sessions[s.AccountID()] = s
	return prev, ok
}

func (r *Registry) Remove(accountID uuid.UUID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[accountID]
	if ok {
		delete(r.sessions, accountID)
	}
	return s, ok
}

func (r *Registry) IDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// IsConnected reports whether the account has a connected session.
func (r *Registry) IsConnected(accountID uuid.UUID) bool {
	s, ok := r.Get(accountID)
	return ok && s.IsConnected()
}
