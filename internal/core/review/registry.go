package review

import (
	"sync"
	"time"
)

// Registry is the process's addressable collection of live sessions. It is
// the only shared mutable structure touched by concurrent requests, so every
// mutation runs under the registry mutex. It is constructed explicitly and
// passed by reference rather than living as a package-level singleton, which
// keeps tests isolated and allows independent instances.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Set inserts or overwrites a session by id.
func (r *Registry) Set(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get returns the session for id, or false when absent.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes a session by id and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// All returns a snapshot of every registered session. Enumeration order is
// not significant.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear cancels every still-pending session with a shutdown reason, then
// removes all entries. Called on process shutdown so blocked waiters are
// released rather than abandoned.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		s.Cancel("Server shutting down")
		delete(r.sessions, id)
	}
}

// CleanupOld removes sessions that are both terminal and older than maxAge,
// measured from creation. A pending session is never removed regardless of
// age: an agent may legitimately stay blocked for a long time, and the
// session timeout is the only mechanism that retires a stale pending
// session. Returns the number of sessions removed.
func (r *Registry) CleanupOld(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.Status().Terminal() && s.CreatedAt().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
