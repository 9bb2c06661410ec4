package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	patientapp "github.com/vinodyk/patient-appointments"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

// maxRequestBody caps the chat request body well above the 10KB message
// limit so oversized messages still reach the engine's own validation.
const maxRequestBody = 64 * 1024

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req patientapp.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.engine.ProcessTurn(r.Context(), req)
	if err != nil {
		var verr *patientapp.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		s.log.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snap, err := s.engine.SessionSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.log.Error("session fetch failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.engine.DeleteSession(r.Context(), id); err != nil {
		s.log.Error("session delete failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": s.engine.StageStatus(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.SessionCount(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "session backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": sessions,
		"uptime":   time.Since(s.start).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
