package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ashureev/stresssense/internal/domain"
)

// MemoryStore implements Repository with process-local maps.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	order    []domain.SessionID // insertion order
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

// CreateSession inserts a new session.
func (s *MemoryStore) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return duplicate(session.ID)
	}

	s.sessions[session.ID] = session.Clone()
	s.order = append(s.order, session.ID)
	return nil
}

// GetSession returns a copy of the session.
func (s *MemoryStore) GetSession(_ context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return sess.Clone(), nil
}

// ListSessions returns all sessions in display order.
func (s *MemoryStore) ListSessions(_ context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id].Clone())
	}

	// order is insertion order, so a stable sort keeps ties in creation order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out, nil
}

// AppendMessage adds msg to the session's log.
func (s *MemoryStore) AppendMessage(_ context.Context, id domain.SessionID, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return notFound(id)
	}
	sess.Messages = append(sess.Messages, msg)
	return nil
}

// SetStressLevel overwrites the session's stress label.
func (s *MemoryStore) SetStressLevel(_ context.Context, id domain.SessionID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return notFound(id)
	}
	sess.StressLevel = label
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
