package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	patientapp "github.com/vinodyk/patient-appointments"
	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/security"
)

func newTestServer() *Server {
	return New(patientapp.New(patientapp.Options{}), nil, nil)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_ProcessesTurn(t *testing.T) {
	s := newTestServer()

	rec := doJSON(t, s, http.MethodPost, "/api/chat", `{"message": "I have a cough"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp patientapp.TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.SessionID == "" {
		t.Error("session_id empty")
	}
	if len(resp.AgentResponses) == 0 {
		t.Error("agent_responses empty")
	}
	if resp.Message == "" {
		t.Error("message empty")
	}
}

func TestChat_ValidationRejected(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message": ""}`},
		{"whitespace message", `{"message": "   "}`},
		{"malformed json", `{"message": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if body["error"] == "" {
				t.Error("error text empty")
			}
		})
	}
}

func TestChat_WrongMethod(t *testing.T) {
	s := newTestServer()

	rec := doJSON(t, s, http.MethodGet, "/api/chat", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	s := newTestServer()

	chat := doJSON(t, s, http.MethodPost, "/api/chat", `{"message": "I have a headache"}`)
	var resp patientapp.TurnResponse
	if err := json.Unmarshal(chat.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	get := doJSON(t, s, http.MethodGet, "/api/session/"+resp.SessionID, "")
	if get.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want %d", get.Code, http.StatusOK)
	}
	var snap map[string]any
	if err := json.Unmarshal(get.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if snap["id"] != resp.SessionID {
		t.Errorf("snapshot id = %v, want %s", snap["id"], resp.SessionID)
	}

	del := doJSON(t, s, http.MethodDelete, "/api/session/"+resp.SessionID, "")
	if del.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want %d", del.Code, http.StatusNoContent)
	}

	// Idempotent: deleting again succeeds.
	again := doJSON(t, s, http.MethodDelete, "/api/session/"+resp.SessionID, "")
	if again.Code != http.StatusNoContent {
		t.Errorf("second DELETE status = %d, want %d", again.Code, http.StatusNoContent)
	}

	missing := doJSON(t, s, http.MethodGet, "/api/session/"+resp.SessionID, "")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", missing.Code, http.StatusNotFound)
	}
	var errBody map[string]string
	if err := json.Unmarshal(missing.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if errBody["error"] != "session not found" {
		t.Errorf("error = %q, want %q", errBody["error"], "session not found")
	}
}

func TestAgentStatus(t *testing.T) {
	s := newTestServer()

	doJSON(t, s, http.MethodPost, "/api/chat", `{"message": "I have a cough"}`)

	rec := doJSON(t, s, http.MethodGet, "/api/agents/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Agents []struct {
			Name        string `json:"name"`
			Available   bool   `json:"available"`
			Invocations uint64 `json:"invocations"`
		} `json:"agents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(body.Agents) != 5 {
		t.Fatalf("len(agents) = %d, want 5", len(body.Agents))
	}
	if body.Agents[0].Name != "security" {
		t.Errorf("first agent = %s, want security", body.Agents[0].Name)
	}
	for _, a := range body.Agents {
		if !a.Available {
			t.Errorf("agent %s unavailable", a.Name)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer()

	rec := doJSON(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestRateLimit(t *testing.T) {
	engine := patientapp.New(patientapp.Options{})
	s := New(engine, security.NewRateLimiter(1, 1), nil)

	first := doJSON(t, s, http.MethodGet, "/api/health", "")
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", first.Code, http.StatusOK)
	}

	second := doJSON(t, s, http.MethodGet, "/api/health", "")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := withRecovery(panicking, logging.NoOp{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !strings.Contains(body["error"], "try again") {
		t.Errorf("error = %q, want an apology", body["error"])
	}
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "203.0.113.7:4411"
	if got := clientID(req); got != "203.0.113.7" {
		t.Errorf("clientID() = %q, want remote host", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := clientID(req); got != "198.51.100.4" {
		t.Errorf("clientID() = %q, want first forwarded hop", got)
	}
}
