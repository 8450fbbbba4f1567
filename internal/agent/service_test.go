package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/ashureev/stresssense/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAssessor struct {
	res Result
}

func (s stubAssessor) Assess(context.Context, domain.SessionID, string) Result { return s.res }

type memoryConversationLogger struct {
	mu     sync.Mutex
	events []ConversationLogEvent
}

func (m *memoryConversationLogger) Log(event ConversationLogEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *memoryConversationLogger) Close() error { return nil }

func TestServiceLogsBothDirections(t *testing.T) {
	t.Parallel()

	log := &memoryConversationLogger{}
	svc := NewService(stubAssessor{res: Result{
		Kind:          KindSuccess,
		AssistantText: "That sounds hard.",
		StressLabel:   "High",
		Status:        200,
	}}, log)

	res := svc.Assess(context.Background(), "sess-1", "I feel overwhelmed today")
	assert.Equal(t, "High", res.StressLabel)

	require.Len(t, log.events, 2)
	out, in := log.events[0], log.events[1]
	assert.Equal(t, "outbound", out.Direction)
	assert.Equal(t, "I feel overwhelmed today", out.ContentRaw)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Equal(t, "inbound", in.Direction)
	assert.Equal(t, "That sounds hard.", in.ContentRaw)
	assert.Equal(t, "success", in.Meta["outcome"])
	assert.Equal(t, "High", in.Meta["stress_level"])
	assert.Equal(t, 200, in.Meta["status"])
}

func TestServiceFailureOmitsStress(t *testing.T) {
	t.Parallel()

	log := &memoryConversationLogger{}
	svc := NewService(stubAssessor{res: Result{Kind: KindTransportFailure, AssistantText: "Network error"}}, log)

	res := svc.Assess(context.Background(), "sess-1", "hi")
	assert.Equal(t, KindTransportFailure, res.Kind)

	require.Len(t, log.events, 2)
	assert.NotContains(t, log.events[1].Meta, "stress_level")
	assert.NotContains(t, log.events[1].Meta, "status")
	require.NoError(t, svc.Close())
}

func TestNewServiceDefaultsToNoopLog(t *testing.T) {
	t.Parallel()

	svc := NewService(stubAssessor{res: Result{Kind: KindSuccess, AssistantText: "ok"}}, nil)
	assert.Equal(t, "ok", svc.Assess(context.Background(), "s", "x").AssistantText)
	assert.NoError(t, svc.Close())
}
