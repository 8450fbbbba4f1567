// Package agent talks to the external stress-assessment agent.
package agent

import (
	"time"
)

// Kind classifies the outcome of one gateway call.
type Kind string

const (
	// KindSuccess is a 200 response carrying a usable reply.
	KindSuccess Kind = "success"
	// KindMalformedResponse is a 200 response whose body could not be used.
	KindMalformedResponse Kind = "malformed_response"
	// KindRemoteError is any non-200 response.
	KindRemoteError Kind = "remote_error"
	// KindTransportFailure means the request never completed.
	KindTransportFailure Kind = "transport_failure"
)

// NotAssessed is the label used when the agent does not report a stress level.
const NotAssessed = "Not assessed"

// Diagnostic texts shown to the user in place of an agent reply.
const (
	msgNonJSON        = "The agent sent back a non-JSON response. Check the agent's production settings."
	msgMissingMessage = "The agent response did not include a message."
	msgNetworkPrefix  = "Network error: Could not reach the agent."
	msgRemotePrefix   = "Connection error:"
)

// Result is the classified outcome of Assess. Every kind carries the text to
// append as the assistant message.
type Result struct {
	Kind          Kind
	AssistantText string
	// StressLabel is set for KindSuccess only.
	StressLabel string
	// Status is the HTTP status code when a response was received.
	Status int
	// Err is the underlying cause for KindTransportFailure and KindMalformedResponse.
	Err error
}

// OK reports whether the call produced a usable reply.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// requestMessage is one entry of the outbound messages array.
type requestMessage struct {
	Text string `json:"text"`
}

type requestBody struct {
	Messages []requestMessage `json:"messages"`
}

// request is the nested envelope the agent webhook expects.
type request struct {
	SessionID string      `json:"session_id"`
	Body      requestBody `json:"body"`
}

// Config holds gateway configuration.
type Config struct {
	URL          string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		URL:          "http://localhost:5678/webhook/digital-wellbeing",
		Timeout:      30 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
}
