// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/stresssense/internal/domain"
)

// Repository defines the interface for holding check-in sessions and their messages.
type Repository interface {
	// CreateSession inserts a new session. It fails if the id is already taken.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession returns a copy of the session, or an error wrapping domain.ErrNotFound.
	GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error)

	// ListSessions returns copies of all sessions, newest date first.
	// Sessions sharing a date keep their insertion order.
	ListSessions(ctx context.Context) ([]*domain.Session, error)

	// AppendMessage adds msg to the end of the session's log.
	AppendMessage(ctx context.Context, id domain.SessionID, msg domain.Message) error

	// SetStressLevel overwrites the session's stress label.
	SetStressLevel(ctx context.Context, id domain.SessionID, label string) error

	// Ping verifies the backend is usable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrDuplicateSession is returned by CreateSession when the id is taken.
var ErrDuplicateSession = errors.New("session already exists")

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// New builds the repository named by backend.
func New(backend string) (Repository, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return NewSQLite()
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func duplicate(id domain.SessionID) error {
	return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
}

func notFound(id domain.SessionID) error {
	return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
}
