package domain

import (
	"time"
)

// Sender tags who wrote a message.
type Sender string

const (
	// SenderUser marks text submitted by the operator.
	SenderUser Sender = "user"
	// SenderAssistant marks replies and diagnostics produced for the agent.
	SenderAssistant Sender = "assistant"
)

// Valid reports whether s is one of the two known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Message is a single chat turn.
type Message struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewMessage builds a message stamped at minute granularity.
func NewMessage(sender Sender, text string, at time.Time) Message {
	return Message{
		Sender:    sender,
		Text:      text,
		Timestamp: at.Format(TimestampLayout),
	}
}
