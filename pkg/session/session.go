// Package session provides keyed, concurrency-safe storage of per-conversation
// state. Sessions are owned by the store: callers work on deep clones and hand
// the result back through Manager.Commit, which replaces the stored session
// atomically.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

// MaxHistory is the number of turns retained per session. Older turns are
// dropped oldest-first.
const MaxHistory = 10

// Session holds all per-conversation state.
type Session struct {
	// ID uniquely identifies the conversation.
	ID string `json:"id"`
	// Stage tracks progress through the scheduling flow.
	Stage model.ConversationStage `json:"stage"`
	// History is the turn transcript, capped at MaxHistory.
	History []model.Turn `json:"history"`
	// Symptoms caches the most recent triage result.
	Symptoms *model.SymptomAnalysis `json:"symptoms,omitempty"`
	// Risk caches the most recent comorbidity assessment.
	Risk *model.ComorbidityRisk `json:"risk,omitempty"`
	// Slots caches the most recent slot search, in proposal order.
	Slots []model.AppointmentSlot `json:"slots,omitempty"`
	// Booking holds the confirmed appointment, if any.
	Booking *model.AppointmentBooking `json:"booking,omitempty"`
	// Patient carries the declared patient profile, if any.
	Patient *model.PatientProfile `json:"patient,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session in the INITIAL stage. An empty id is replaced with a
// generated UUID.
func New(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Stage:     model.StageInitial,
		History:   []model.Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy. Mutating the clone never affects the original;
// the orchestrator works on a clone and commits it at turn end.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s

	c.History = make([]model.Turn, len(s.History))
	copy(c.History, s.History)

	if s.Slots != nil {
		c.Slots = make([]model.AppointmentSlot, len(s.Slots))
		copy(c.Slots, s.Slots)
	}

	if s.Symptoms != nil {
		sym := *s.Symptoms
		sym.Symptoms = append([]string(nil), s.Symptoms.Symptoms...)
		c.Symptoms = &sym
	}

	if s.Risk != nil {
		r := *s.Risk
		r.Factors = append([]string(nil), s.Risk.Factors...)
		r.Recommendations = append([]string(nil), s.Risk.Recommendations...)
		r.Warnings = append([]string(nil), s.Risk.Warnings...)
		c.Risk = &r
	}

	if s.Booking != nil {
		b := *s.Booking
		c.Booking = &b
	}

	if s.Patient != nil {
		p := *s.Patient
		p.Conditions = append([]string(nil), s.Patient.Conditions...)
		p.Medications = append([]string(nil), s.Patient.Medications...)
		c.Patient = &p
	}

	return &c
}

// AppendTurn records a turn and truncates the history to the last MaxHistory
// entries.
func (s *Session) AppendTurn(role model.Role, content string) {
	s.History = append(s.History, model.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}
}

// Touch updates the last-modified timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// IdleSince reports how long the session has been untouched.
func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}
