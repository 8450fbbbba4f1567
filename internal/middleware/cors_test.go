package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(origins []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	called := false
	h := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/state", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, called
}

func TestCORSWildcardEchoesOriginWithoutCredentials(t *testing.T) {
	w, called := serve([]string{"*"}, http.MethodGet, "http://localhost:3000")
	if !called {
		t.Fatal("expected next handler to run")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("unexpected Allow-Origin %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("expected no credentials header for wildcard, got %q", got)
	}
}

func TestCORSExplicitOriginAllowsCredentials(t *testing.T) {
	w, _ := serve([]string{"https://checkin.example"}, http.MethodGet, "https://checkin.example")
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("expected credentials for explicit origin, got %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	w, called := serve([]string{"https://checkin.example"}, http.MethodGet, "https://evil.example")
	if !called {
		t.Fatal("expected next handler to run")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no Allow-Origin, got %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	w, called := serve([]string{"*"}, http.MethodOptions, "http://localhost:3000")
	if called {
		t.Fatal("preflight should not reach next handler")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("expected Allow-Methods header")
	}
}
