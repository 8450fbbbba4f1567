package api

import (
	"net/http"

	"github.com/ashureev/stresssense/internal/checkin"
	"github.com/ashureev/stresssense/internal/domain"
	"github.com/ashureev/stresssense/internal/view"
	"github.com/go-chi/chi/v5"
)

// CheckinHandler serves the check-in screen.
type CheckinHandler struct {
	*Handler
}

// NewCheckinHandler creates a new check-in handler.
func NewCheckinHandler(base *Handler) *CheckinHandler {
	return &CheckinHandler{Handler: base}
}

// RegisterRoutes registers check-in routes.
func (h *CheckinHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/sessions", h.ListSessions)
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/current", h.GetCurrent)
		r.Put("/sessions/current", h.SelectSession)
		r.Post("/messages", h.SubmitMessage)
	})
}

type selectRequest struct {
	SessionID domain.SessionID `json:"session_id"`
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	Turn  *checkin.Turn  `json:"turn"`
	State *view.Snapshot `json:"state"`
}

// transcriptResponse is the current session without the sidebar.
type transcriptResponse struct {
	SessionID   domain.SessionID   `json:"session_id"`
	Date        string             `json:"date"`
	StressLevel string             `json:"stress_level"`
	Pending     bool               `json:"pending"`
	Transcript  []view.MessageView `json:"transcript"`
}

func (h *CheckinHandler) snapshot(w http.ResponseWriter, r *http.Request, status int) {
	snap, err := view.Build(r.Context(), h.store, h.controller)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, status, snap)
}

// GetState returns the full screen state.
func (h *CheckinHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, http.StatusOK)
}

// ListSessions returns the sidebar.
func (h *CheckinHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	entries, err := view.Sidebar(r.Context(), h.store)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": entries})
}

// CreateSession starts a new check-in.
func (h *CheckinHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CreateSession(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	h.snapshot(w, r, http.StatusCreated)
}

// GetCurrent returns the current transcript.
func (h *CheckinHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	cur, err := h.store.Current(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, transcriptResponse{
		SessionID:   cur.ID,
		Date:        cur.Date,
		StressLevel: view.StressLabel(cur),
		Pending:     h.controller.State(cur.ID) == checkin.StateAwaitingReply,
		Transcript:  view.Transcript(cur),
	})
}

// SelectSession switches the current session.
func (h *CheckinHandler) SelectSession(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.store.SetCurrent(r.Context(), req.SessionID); err != nil {
		fail(w, r, err)
		return
	}
	h.snapshot(w, r, http.StatusOK)
}

// SubmitMessage runs one check-in turn and returns once the reply is stored.
func (h *CheckinHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	turn, err := h.controller.Submit(r.Context(), req.Text)
	if err != nil {
		fail(w, r, err)
		return
	}

	snap, err := view.Build(r.Context(), h.store, h.controller)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, submitResponse{Turn: turn, State: snap})
}
