// Package live pushes check-in state to browsers over WebSocket.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashureev/stresssense/internal/session"
	"github.com/ashureev/stresssense/internal/view"
)

// FrameSnapshot is the type of the frame sent when a client connects.
const FrameSnapshot = "snapshot"

// Frame is one server-to-client message.
type Frame struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	State     *view.Snapshot `json:"state,omitempty"`
}

// client is one connected browser. send is drained by the connection's writer.
type client struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(size int) *client {
	return &client{send: make(chan []byte, size), done: make(chan struct{})}
}

func (c *client) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub fans session events out to every connected client.
type Hub struct {
	store      *session.Store
	turns      view.TurnStates
	bufferSize int

	// notifyMu orders snapshot builds with their enqueueing, so frames
	// reach every client in the order the state they describe was read.
	notifyMu sync.Mutex

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub that renders snapshots from store.
func NewHub(store *session.Store, turns view.TurnStates, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		store:      store,
		turns:      turns,
		bufferSize: bufferSize,
		clients:    make(map[*client]struct{}),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register() *client {
	c := newClient(h.bufferSize)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("Live client registered", "clients", n)
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.stop()
	if ok {
		slog.Info("Live client unregistered", "clients", n)
	}
}

// attach registers a client and renders its initial snapshot. Events
// broadcast afterwards describe state at least as new as that snapshot.
func (h *Hub) attach(ctx context.Context) (*client, []byte, error) {
	if err := h.store.Init(ctx); err != nil {
		return nil, nil, err
	}

	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	data, err := h.snapshotFrame(ctx, FrameSnapshot, "", "")
	if err != nil {
		return nil, nil, err
	}
	return h.register(), data, nil
}

// snapshotFrame renders the current state as a frame of the given type.
func (h *Hub) snapshotFrame(ctx context.Context, frameType, sessionID, outcome string) ([]byte, error) {
	snap, err := view.Build(ctx, h.store, h.turns)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: frameType, SessionID: sessionID, Outcome: outcome, State: snap})
}

// Notify implements session.Observer. It never blocks: a client whose
// buffer is full is disconnected.
func (h *Hub) Notify(ev session.Event) {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	// Lazy initialization publishes too; run it before notifyMu is held.
	ctx := context.Background()
	if err := h.store.Init(ctx); err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		return
	}

	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	data, err := h.snapshotFrame(ctx, string(ev.Type), string(ev.SessionID), ev.Outcome)
	if err != nil {
		slog.Error("Failed to build live snapshot", "event", ev.Type, "error", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("Dropping slow live client")
		h.unregister(c)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.stop()
	}
}
