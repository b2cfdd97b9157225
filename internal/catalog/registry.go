package catalog

import (
	"errors"
	"sync"
)

var ErrSessionNotFound = errors.New("discovery session not found")

// Registry keeps discovery sessions by id for the HTTP layer.
// When full, the oldest session is evicted.
type Registry struct {
	fetcher  PageFetcher
	pageSize int
	ceiling  int
	limit    int

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
}

// NewRegistry creates a registry that builds sessions from fetcher
func NewRegistry(fetcher PageFetcher, pageSize, ceiling, maxSessions int) *Registry {
	if maxSessions <= 0 {
		maxSessions = 256
	}
	return &Registry{
		fetcher:  fetcher,
		pageSize: pageSize,
		ceiling:  ceiling,
		limit:    maxSessions,
		sessions: make(map[string]*Session),
	}
}

// Create starts and registers a new session
func (r *Registry) Create() *Session {
	s := NewSession(r.fetcher, r.pageSize, r.ceiling)

	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.sessions, oldest)
	}
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	return s
}

// Get returns the session with id
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete forgets the session with id
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
