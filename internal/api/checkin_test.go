package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/stresssense/internal/agent"
	"github.com/ashureev/stresssense/internal/checkin"
	"github.com/ashureev/stresssense/internal/domain"
	"github.com/ashureev/stresssense/internal/session"
	"github.com/ashureev/stresssense/internal/store"
	"github.com/ashureev/stresssense/internal/view"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedAssessor agent.Result

func (f fixedAssessor) Assess(context.Context, domain.SessionID, string) agent.Result {
	return agent.Result(f)
}

func newRouter(t *testing.T, res agent.Result) (http.Handler, *session.Store) {
	t.Helper()
	s := session.NewStore(store.NewMemory(), session.Options{})
	ctrl := checkin.NewController(s, fixedAssessor(res), nil)

	r := chi.NewRouter()
	NewCheckinHandler(NewHandler(s, ctrl)).RegisterRoutes(r)
	return r, s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) view.Snapshot {
	t.Helper()
	var snap view.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

var highStress = agent.Result{
	Kind:          agent.KindSuccess,
	AssistantText: "That sounds hard, want to talk about it?",
	StressLabel:   "High",
	Status:        200,
}

func TestGetStateInitializesSession(t *testing.T) {
	h, _ := newRouter(t, highStress)

	w := do(t, h, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.NotEmpty(t, snap.CurrentID)
	assert.Equal(t, "Not assessed", snap.StressLevel)
	assert.Empty(t, snap.Transcript)
	require.Len(t, snap.Sidebar, 1)
	assert.Equal(t, "No messages", snap.Sidebar[0].Preview)
}

func TestSubmitMessage(t *testing.T) {
	h, _ := newRouter(t, highStress)

	w := do(t, h, http.MethodPost, "/api/messages", `{"text":"I feel overwhelmed today"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Turn  checkin.Turn  `json:"turn"`
		State view.Snapshot `json:"state"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, agent.KindSuccess, resp.Turn.Outcome)
	assert.Equal(t, "That sounds hard, want to talk about it?", resp.Turn.Reply.Text)
	assert.Equal(t, "High", resp.State.StressLevel)
	assert.False(t, resp.State.Pending)
	require.Len(t, resp.State.Transcript, 2)
	assert.Equal(t, domain.SenderAssistant, resp.State.Transcript[1].Sender)
	assert.Equal(t, "That sounds hard, want to talk about it?", resp.State.Sidebar[0].Preview)
}

func TestSubmitMessageValidation(t *testing.T) {
	h, _ := newRouter(t, highStress)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/messages", `{"text":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/messages", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/messages", `{"message":"hi"}`).Code)
}

func TestCreateAndSelectSession(t *testing.T) {
	h, s := newRouter(t, highStress)
	ctx := context.Background()

	first, err := s.CurrentID(ctx)
	require.NoError(t, err)

	w := do(t, h, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeSnapshot(t, w)
	assert.NotEqual(t, first, created.CurrentID)
	assert.Len(t, created.Sidebar, 2)

	w = do(t, h, http.MethodPut, "/api/sessions/current", `{"session_id":"`+string(first)+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decodeSnapshot(t, w).CurrentID)

	w = do(t, h, http.MethodGet, "/api/sessions/current", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cur transcriptResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cur))
	assert.Equal(t, first, cur.SessionID)
	assert.False(t, cur.Pending)

	w = do(t, h, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Sessions []view.SidebarEntry `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list.Sessions, 2)
}

func TestSelectUnknownSession(t *testing.T) {
	h, s := newRouter(t, highStress)
	ctx := context.Background()

	before, err := s.CurrentID(ctx)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/api/sessions/current", `{"session_id":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/sessions/current", `{}`).Code)

	after, err := s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
