// Package session owns the set of check-in sessions and the current-session pointer.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/stresssense/internal/domain"
	"github.com/ashureev/stresssense/internal/store"
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Now   func() time.Time
	NewID func() domain.SessionID
	Bus   *Bus
}

// Store is the session store shared by the turn controller and the view layer.
// On first access it makes sure a current session exists.
type Store struct {
	repo  store.Repository
	now   func() time.Time
	newID func() domain.SessionID
	bus   *Bus

	mu      sync.Mutex
	current domain.SessionID
}

// NewStore wraps repo. No session is created until the store is first used.
func NewStore(repo store.Repository, opts Options) *Store {
	s := &Store{
		repo:  repo,
		now:   opts.Now,
		newID: opts.NewID,
		bus:   opts.Bus,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = domain.NewSessionID
	}
	if s.bus == nil {
		s.bus = NewBus()
	}
	return s
}

// Bus returns the bus the store publishes on.
func (s *Store) Bus() *Bus {
	return s.bus
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// ensureInit creates the first session when none is current.
// It returns the events to publish once s.mu has been released.
func (s *Store) ensureInit(ctx context.Context) ([]Event, error) {
	if s.current != "" {
		return nil, nil
	}
	id, err := s.createLocked(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Initialized session store", "session_id", id)
	return []Event{{Type: EventSessionCreated, SessionID: id}}, nil
}

func (s *Store) createLocked(ctx context.Context) (domain.SessionID, error) {
	sess := domain.NewSession(s.newID(), s.now())
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	s.current = sess.ID
	return sess.ID, nil
}

// lock acquires s.mu and runs the lazy initialization.
func (s *Store) lock(ctx context.Context) ([]Event, error) {
	s.mu.Lock()
	events, err := s.ensureInit(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return events, nil
}

func (s *Store) unlockAndPublish(events []Event) {
	s.mu.Unlock()
	for _, ev := range events {
		s.bus.Publish(ev)
	}
}

// Init runs the first-access policy explicitly.
func (s *Store) Init(ctx context.Context) error {
	events, err := s.lock(ctx)
	if err != nil {
		return err
	}
	s.unlockAndPublish(events)
	return nil
}

// CreateSession starts a new check-in and makes it current.
func (s *Store) CreateSession(ctx context.Context) (domain.SessionID, error) {
	events, err := s.lock(ctx)
	if err != nil {
		return "", err
	}

	id, err := s.createLocked(ctx)
	if err != nil {
		s.unlockAndPublish(events)
		return "", err
	}
	events = append(events, Event{Type: EventSessionCreated, SessionID: id})
	s.unlockAndPublish(events)

	slog.Info("Session created", "session_id", id)
	return id, nil
}

// CurrentID returns the id of the current session.
func (s *Store) CurrentID(ctx context.Context) (domain.SessionID, error) {
	events, err := s.lock(ctx)
	if err != nil {
		return "", err
	}
	id := s.current
	s.unlockAndPublish(events)
	return id, nil
}

// Current returns a snapshot of the current session.
func (s *Store) Current(ctx context.Context) (*domain.Session, error) {
	id, err := s.CurrentID(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: current session %s has no backing record: %v", domain.ErrInvariantViolation, id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get current session %s: %w", id, err)
	}
	return sess, nil
}

// SetCurrent switches the current session. Message data is not touched.
func (s *Store) SetCurrent(ctx context.Context, id domain.SessionID) error {
	events, err := s.lock(ctx)
	if err != nil {
		return err
	}

	if _, err := s.repo.GetSession(ctx, id); err != nil {
		s.unlockAndPublish(events)
		return err
	}

	changed := s.current != id
	s.current = id
	if changed {
		events = append(events, Event{Type: EventCurrentChanged, SessionID: id})
	}
	s.unlockAndPublish(events)
	return nil
}

// Get returns a snapshot of any session.
func (s *Store) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetSession(ctx, id)
}

// Sessions yields sessions newest date first, ties in creation order.
// Each range over the returned sequence reads the backend afresh.
func (s *Store) Sessions(ctx context.Context) iter.Seq2[domain.Session, error] {
	return func(yield func(domain.Session, error) bool) {
		if err := s.Init(ctx); err != nil {
			yield(domain.Session{}, err)
			return
		}

		list, err := s.repo.ListSessions(ctx)
		if err != nil {
			yield(domain.Session{}, fmt.Errorf("list sessions: %w", err))
			return
		}
		for _, sess := range list {
			if !yield(*sess, nil) {
				return
			}
		}
	}
}

// AppendMessage adds msg to the session's log. It is the only way messages are written.
func (s *Store) AppendMessage(ctx context.Context, id domain.SessionID, msg domain.Message) error {
	events, err := s.lock(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.AppendMessage(ctx, id, msg); err != nil {
		s.unlockAndPublish(events)
		return err
	}
	events = append(events, Event{Type: EventMessageAppended, SessionID: id, Message: &msg})
	s.unlockAndPublish(events)
	return nil
}

// SetStressLevel overwrites the session's stress label.
func (s *Store) SetStressLevel(ctx context.Context, id domain.SessionID, label string) error {
	events, err := s.lock(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.SetStressLevel(ctx, id, label); err != nil {
		s.unlockAndPublish(events)
		return err
	}
	events = append(events, Event{Type: EventStressUpdated, SessionID: id, StressLevel: label})
	s.unlockAndPublish(events)
	return nil
}
