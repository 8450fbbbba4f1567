package agent

import (
	"context"
	"time"

	"github.com/ashureev/stresssense/internal/domain"
)

// Service wraps an Assessor and records each exchange in the conversation log.
type Service struct {
	assessor Assessor
	log      ConversationLogger
}

// NewService creates a service over assessor. A nil log discards transcripts.
func NewService(assessor Assessor, log ConversationLogger) *Service {
	if log == nil {
		log = noopConversationLogger{}
	}
	return &Service{assessor: assessor, log: log}
}

// Assess forwards to the wrapped assessor, logging the user text before the
// call and the assistant text after it.
func (s *Service) Assess(ctx context.Context, sessionID domain.SessionID, text string) Result {
	s.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		SessionID:  string(sessionID),
		Channel:    "agent_http",
		Direction:  "outbound",
		EventType:  "checkin_user_message",
		ContentRaw: text,
	})

	res := s.assessor.Assess(ctx, sessionID, text)

	meta := map[string]any{"outcome": string(res.Kind)}
	if res.Status != 0 {
		meta["status"] = res.Status
	}
	if res.OK() {
		meta["stress_level"] = res.StressLabel
	}
	s.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		SessionID:  string(sessionID),
		Channel:    "agent_http",
		Direction:  "inbound",
		EventType:  "checkin_assistant_reply",
		ContentRaw: res.AssistantText,
		Meta:       meta,
	})
	return res
}

// Close releases the conversation log.
func (s *Service) Close() error {
	return s.log.Close()
}
