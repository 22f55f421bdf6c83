package security

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionNotFound is returned by SessionStore lookups for unknown or
// already-removed sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the injectable registry of active sessions. The default is
// the in-process MemorySessionStore; a Redis-backed implementation lets
// multi-process deployments share the registry without touching validator
// logic.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, sessionID string) error
	// ByUser returns all live sessions belonging to a user.
	ByUser(ctx context.Context, userID string) ([]*Session, error)
	// All returns every stored session. Used by the cleanup sweep.
	All(ctx context.Context) ([]*Session, error)
	Len(ctx context.Context) (int, error)
}

// MemorySessionStore is a mutex-guarded in-process session registry.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemorySessionStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.SessionID] = &cp
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessionStore) ByUser(_ context.Context, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemorySessionStore) All(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemorySessionStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
