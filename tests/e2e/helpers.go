package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	patientapp "github.com/vinodyk/patient-appointments"
	"github.com/vinodyk/patient-appointments/internal/server"
	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/security"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

// TestEnvironment runs the whole stack for one test: the engine over a
// Redis-backed session store, served through the real HTTP handler.
type TestEnvironment struct {
	t      *testing.T
	engine *patientapp.Engine
	srv    *httptest.Server
}

// SessionView is the shape tests care about from GET /api/session/{id}.
type SessionView struct {
	ID      string `json:"id"`
	Stage   string `json:"stage"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
	Booking *struct {
		AppointmentID string `json:"appointment_id"`
		Doctor        string `json:"doctor"`
	} `json:"booking"`
}

// NewTestEnvironment builds the engine against a miniredis instance so
// every turn round-trips sessions through the Redis codec.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := session.NewRedisBackendFromClient(client, "e2e:session:", time.Hour)

	engine := patientapp.New(patientapp.Options{
		Sessions: session.NewManager(backend, logging.NoOp{}),
	})
	api := server.New(engine, security.NewRateLimiter(1000, 1000), logging.NoOp{})

	return &TestEnvironment{
		t:      t,
		engine: engine,
		srv:    httptest.NewServer(api.Handler()),
	}
}

// Cleanup shuts down the HTTP server and the engine.
func (e *TestEnvironment) Cleanup() {
	e.srv.Close()
	_ = e.engine.Close()
}

// Chat posts one message to /api/chat and decodes the reply. Pass an empty
// sessionID to start a new conversation.
func (e *TestEnvironment) Chat(message, sessionID string) *patientapp.TurnResponse {
	e.t.Helper()

	body, err := json.Marshal(patientapp.TurnRequest{Message: message, SessionID: sessionID})
	AssertNoError(e.t, err, "marshal request")

	resp, err := http.Post(e.srv.URL+"/api/chat", "application/json", bytes.NewReader(body))
	AssertNoError(e.t, err, "POST /api/chat")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("POST /api/chat status = %d, want 200", resp.StatusCode)
	}

	var tr patientapp.TurnResponse
	AssertNoError(e.t, json.NewDecoder(resp.Body).Decode(&tr), "decode turn response")
	return &tr
}

// Session fetches the stored session over the API.
func (e *TestEnvironment) Session(id string) (*SessionView, int) {
	e.t.Helper()

	resp, err := http.Get(e.srv.URL + "/api/session/" + id)
	AssertNoError(e.t, err, "GET /api/session")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}
	var view SessionView
	AssertNoError(e.t, json.NewDecoder(resp.Body).Decode(&view), "decode session")
	return &view, resp.StatusCode
}

// DeleteSession removes the stored session over the API.
func (e *TestEnvironment) DeleteSession(id string) int {
	e.t.Helper()

	req, err := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/session/"+id, nil)
	AssertNoError(e.t, err, "build DELETE request")

	resp, err := http.DefaultClient.Do(req)
	AssertNoError(e.t, err, "DELETE /api/session")
	defer resp.Body.Close()
	return resp.StatusCode
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// AssertEqual fails if expected != actual.
func AssertEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertContains fails if substr is not in s.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: %q does not contain %q", msg, s, substr)
	}
}
