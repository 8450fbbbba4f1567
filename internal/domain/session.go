// Package domain contains core domain types for the StressSense check-in service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Layouts used for the date and timestamp fields.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04"
)

// SessionID identifies a check-in session.
type SessionID string

// NewSessionID returns a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Session is one check-in conversation.
type Session struct {
	ID   SessionID `json:"session_id"`
	Date string    `json:"date"`
	// Messages is append-only and ordered chronologically.
	Messages []Message `json:"messages"`
	// StressLevel is empty until the agent reports a label.
	StressLevel string `json:"stress_level,omitempty"`
}

// NewSession returns an empty session dated at now.
func NewSession(id SessionID, now time.Time) *Session {
	return &Session{
		ID:       id,
		Date:     now.Format(DateLayout),
		Messages: []Message{},
	}
}

// LastMessage returns the trailing message of the log, or nil if the log is empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	m := s.Messages[len(s.Messages)-1]
	return &m
}

// HasStressLevel reports whether the agent has assessed this session.
func (s *Session) HasStressLevel() bool {
	return s.StressLevel != ""
}

// Clone returns a deep copy that shares no message storage with s.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}
