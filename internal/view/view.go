// Package view turns session state into what the check-in screen shows.
package view

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ashureev/stresssense/internal/agent"
	"github.com/ashureev/stresssense/internal/checkin"
	"github.com/ashureev/stresssense/internal/domain"
	"github.com/ashureev/stresssense/internal/session"
)

const (
	previewLength = 40
	noMessages    = "No messages"
)

// SidebarEntry is one row of the session list.
type SidebarEntry struct {
	SessionID   domain.SessionID `json:"session_id"`
	Date        string           `json:"date"`
	Preview     string           `json:"preview"`
	StressLevel string           `json:"stress_level"`
	Label       string           `json:"label"`
	Current     bool             `json:"current"`
}

// MessageView is one transcript line.
type MessageView struct {
	Sender    domain.Sender `json:"sender"`
	Text      string        `json:"text"`
	Timestamp string        `json:"timestamp"`
	Time      string        `json:"time"`
}

// Snapshot is the full screen state.
type Snapshot struct {
	CurrentID   domain.SessionID `json:"current_id"`
	Date        string           `json:"date"`
	StressLevel string           `json:"stress_level"`
	Pending     bool             `json:"pending"`
	Transcript  []MessageView    `json:"transcript"`
	Sidebar     []SidebarEntry   `json:"sidebar"`
}

// TurnStates reports per-session turn state.
type TurnStates interface {
	State(id domain.SessionID) checkin.State
}

// Preview returns the first 40 characters of the latest message, with "..."
// appended when it was cut.
func Preview(sess *domain.Session) string {
	last := sess.LastMessage()
	if last == nil {
		return noMessages
	}
	if utf8.RuneCountInString(last.Text) <= previewLength {
		return last.Text
	}
	return string([]rune(last.Text)[:previewLength]) + "..."
}

// StressLabel returns the session's label or agent.NotAssessed.
func StressLabel(sess *domain.Session) string {
	if !sess.HasStressLevel() {
		return agent.NotAssessed
	}
	return sess.StressLevel
}

// TimeOfDay returns the HH:MM part of a message timestamp.
func TimeOfDay(timestamp string) string {
	if len(timestamp) <= 11 {
		return timestamp
	}
	return timestamp[11:]
}

// Entry builds the sidebar row for sess.
func Entry(sess *domain.Session, current bool) SidebarEntry {
	preview := Preview(sess)
	stress := StressLabel(sess)
	return SidebarEntry{
		SessionID:   sess.ID,
		Date:        sess.Date,
		Preview:     preview,
		StressLevel: stress,
		Label:       fmt.Sprintf("%s - %s (%s)", sess.Date, preview, stress),
		Current:     current,
	}
}

// Transcript renders the messages of sess.
func Transcript(sess *domain.Session) []MessageView {
	out := make([]MessageView, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		out = append(out, MessageView{
			Sender:    m.Sender,
			Text:      m.Text,
			Timestamp: m.Timestamp,
			Time:      TimeOfDay(m.Timestamp),
		})
	}
	return out
}

// Sidebar lists every session in store order.
func Sidebar(ctx context.Context, store *session.Store) ([]SidebarEntry, error) {
	currentID, err := store.CurrentID(ctx)
	if err != nil {
		return nil, err
	}

	entries := []SidebarEntry{}
	for sess, err := range store.Sessions(ctx) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry(&sess, sess.ID == currentID))
	}
	return entries, nil
}

// Build assembles a snapshot. turns may be nil.
func Build(ctx context.Context, store *session.Store, turns TurnStates) (*Snapshot, error) {
	cur, err := store.Current(ctx)
	if err != nil {
		return nil, err
	}
	sidebar, err := Sidebar(ctx, store)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		CurrentID:   cur.ID,
		Date:        cur.Date,
		StressLevel: StressLabel(cur),
		Transcript:  Transcript(cur),
		Sidebar:     sidebar,
	}
	if turns != nil {
		snap.Pending = turns.State(cur.ID) == checkin.StateAwaitingReply
	}
	return snap, nil
}
