package agent

import (
	"context"

	"github.com/ashureev/stresssense/internal/domain"
)

// Assessor sends one user message to the agent and classifies the outcome.
// Implementations never return Go errors; failures are Result kinds.
type Assessor interface {
	Assess(ctx context.Context, sessionID domain.SessionID, text string) Result
}

// Ensure Client and Service implement Assessor.
var (
	_ Assessor = (*Client)(nil)
	_ Assessor = (*Service)(nil)
)
