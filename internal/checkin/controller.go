// Package checkin drives one user turn: record the message, ask the agent,
// record the reply.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/stresssense/internal/agent"
	"github.com/ashureev/stresssense/internal/domain"
	"github.com/ashureev/stresssense/internal/session"
)

var (
	// ErrEmptyMessage is returned for blank submissions.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTurnInProgress is returned when the session is still waiting for a reply.
	ErrTurnInProgress = errors.New("a reply is still pending for this session")
)

// State is the turn state of one session.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
)

// Turn is the result of a completed Submit.
type Turn struct {
	SessionID domain.SessionID `json:"session_id"`
	User      domain.Message   `json:"user"`
	Reply     domain.Message   `json:"reply"`
	Outcome   agent.Kind       `json:"outcome"`
	// StressLevel is the label stored by this turn, empty when unchanged.
	StressLevel string `json:"stress_level,omitempty"`
}

// Controller runs check-in turns against a session store.
type Controller struct {
	store    *session.Store
	assessor agent.Assessor
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[domain.SessionID]struct{}
}

// NewController creates a controller.
func NewController(store *session.Store, assessor agent.Assessor, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    store,
		assessor: assessor,
		logger:   logger,
		pending:  make(map[domain.SessionID]struct{}),
	}
}

// State reports whether id has a turn awaiting the agent.
func (c *Controller) State(id domain.SessionID) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; ok {
		return StateAwaitingReply
	}
	return StateIdle
}

func (c *Controller) begin(id domain.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; ok {
		return false
	}
	c.pending[id] = struct{}{}
	return true
}

func (c *Controller) finish(id domain.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Submit appends text as a user message to the current session and blocks
// until the agent's reply (or a diagnostic) has been appended after it.
//
// The turn stays bound to the session that was current when Submit was called.
func (c *Controller) Submit(ctx context.Context, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	id, err := c.store.CurrentID(ctx)
	if err != nil {
		return nil, err
	}
	if !c.begin(id) {
		return nil, fmt.Errorf("session %s: %w", id, ErrTurnInProgress)
	}

	turn, err := func() (*Turn, error) {
		defer c.finish(id)
		return c.run(ctx, id, text)
	}()
	if err != nil {
		c.logger.Error("Check-in turn failed", "session_id", id, "error", err)
		return nil, err
	}

	// Published once the session is idle again so observers see the final state.
	c.store.Bus().Publish(session.Event{Type: session.EventTurnCompleted, SessionID: id, Outcome: string(turn.Outcome)})
	c.logger.Info("Check-in turn completed", "session_id", id, "outcome", turn.Outcome)
	return turn, nil
}

func (c *Controller) run(ctx context.Context, id domain.SessionID, text string) (*Turn, error) {
	if err := c.answerStranded(ctx, id); err != nil {
		return nil, err
	}

	user := domain.NewMessage(domain.SenderUser, text, c.store.Now())
	if err := c.store.AppendMessage(ctx, id, user); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	c.store.Bus().Publish(session.Event{Type: session.EventTurnStarted, SessionID: id})
	c.logger.Info("Check-in turn started", "session_id", id, "message_length", len(text))

	turn, err := c.reply(ctx, id)
	if err != nil {
		return nil, err
	}
	turn.User = user
	return turn, nil
}

// answerStranded replies to a user message left unanswered by an earlier
// turn whose assistant append failed, so user and assistant keep alternating.
func (c *Controller) answerStranded(ctx context.Context, id domain.SessionID) error {
	sess, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	last := sess.LastMessage()
	if last == nil || last.Sender != domain.SenderUser {
		return nil
	}

	c.logger.Warn("Answering unanswered message", "session_id", id)
	if _, err := c.reply(ctx, id); err != nil {
		return fmt.Errorf("answer unanswered message: %w", err)
	}
	return nil
}

// reply answers the session's trailing user message.
func (c *Controller) reply(ctx context.Context, id domain.SessionID) (*Turn, error) {
	sess, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	last := sess.LastMessage()
	if last == nil || last.Sender != domain.SenderUser {
		return nil, fmt.Errorf("%w: session %s has no user message awaiting a reply", domain.ErrInvariantViolation, id)
	}

	res := c.assessor.Assess(ctx, id, last.Text)

	// The gateway is detached from ctx; finish recording even if the caller left.
	ctx = context.WithoutCancel(ctx)

	msg := domain.NewMessage(domain.SenderAssistant, res.AssistantText, c.store.Now())
	if err := c.store.AppendMessage(ctx, id, msg); err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	turn := &Turn{SessionID: id, Reply: msg, Outcome: res.Kind}
	if res.OK() {
		if err := c.store.SetStressLevel(ctx, id, res.StressLabel); err != nil {
			return nil, fmt.Errorf("set stress level: %w", err)
		}
		turn.StressLevel = res.StressLabel
	}
	return turn, nil
}
