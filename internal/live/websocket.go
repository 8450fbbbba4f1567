package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// inbound is a client-to-server message.
type inbound struct {
	Type string `json:"type"`
}

// Handler upgrades requests to WebSocket and attaches them to a hub.
type Handler struct {
	hub            *Hub
	allowedOrigins []string
}

// NewHandler creates a handler. An origin list containing "*" allows any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{hub: hub, allowedOrigins: allowedOrigins}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "bye"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c, initial, err := h.hub.attach(ctx)
	if err != nil {
		slog.Error("Failed to build initial snapshot", "error", err)
		_ = ws.Close(websocket.StatusInternalError, "snapshot failed")
		return
	}
	defer h.hub.unregister(c)

	if err := write(ctx, ws, initial); err != nil {
		slog.Debug("Failed to send initial snapshot", "error", err)
		return
	}

	go func() {
		defer cancel()
		h.readLoop(ctx, ws, c)
	}()

	h.writeLoop(ctx, ws, c)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	if slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, c *client) {
	pong, _ := json.Marshal(Frame{Type: "pong"})
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Ignoring malformed live message", "error", err)
			continue
		}
		if msg.Type == "ping" {
			select {
			case c.send <- pong:
			default:
				h.hub.unregister(c)
				return
			}
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, ws *websocket.Conn, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = ws.Close(websocket.StatusPolicyViolation, "dropped by server")
			return
		case data := <-c.send:
			if err := write(ctx, ws, data); err != nil {
				slog.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
