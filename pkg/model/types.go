// Package model defines the shared data types of the patient appointment
// engine: triage priorities, conversation stages, symptom and risk analyses,
// appointment slots and bookings, and per-stage agent responses.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is the clinical urgency tier assigned by triage and risk stages.
type Priority string

const (
	PriorityLow       Priority = "LOW"
	PriorityMedium    Priority = "MEDIUM"
	PriorityHigh      Priority = "HIGH"
	PriorityEmergency Priority = "EMERGENCY"
)

// Rank orders priorities from least (0) to most (3) urgent.
// Unknown values rank below LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityEmergency:
		return 3
	default:
		return -1
	}
}

// Max returns the more urgent of two priorities.
func (p Priority) Max(other Priority) Priority {
	if other.Rank() > p.Rank() {
		return other
	}
	return p
}

// Verdict is the security screen outcome for a message.
type Verdict string

const (
	VerdictAllow  Verdict = "ALLOW"
	VerdictBlock  Verdict = "BLOCK"
	VerdictCrisis Verdict = "CRISIS"
)

// Intent classifies what the user is asking for on a given turn.
type Intent string

const (
	IntentNewComplaint    Intent = "NEW_COMPLAINT"
	IntentFollowUpBooking Intent = "FOLLOW_UP_BOOKING"
	IntentNonMedical      Intent = "NON_MEDICAL"
)

// ConversationStage tracks a session's progress toward a confirmed booking.
type ConversationStage string

const (
	StageInitial          ConversationStage = "INITIAL"
	StageSymptomsCaptured ConversationStage = "SYMPTOMS_CAPTURED"
	StageSlotsProposed    ConversationStage = "SLOTS_PROPOSED"
	StageBookingConfirmed ConversationStage = "BOOKING_CONFIRMED"
)

// Rank orders stages along the booking funnel.
func (s ConversationStage) Rank() int {
	switch s {
	case StageInitial:
		return 0
	case StageSymptomsCaptured:
		return 1
	case StageSlotsProposed:
		return 2
	case StageBookingConfirmed:
		return 3
	default:
		return -1
	}
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation history.
// Turns are immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SymptomAnalysis is the triage classifier's assessment of a complaint.
type SymptomAnalysis struct {
	// Symptoms are the extracted symptom tags, in message order.
	Symptoms []string `json:"symptoms"`
	// Priority is the triage urgency tier.
	Priority Priority `json:"priority"`
	// Urgent is true when the complaint needs same-day attention.
	Urgent bool `json:"urgent"`
	// Specialty is the recommended specialty, empty for none.
	Specialty string `json:"specialty,omitempty"`
	// Timeframe is the recommended time to be seen, e.g. "within 24 hours".
	Timeframe string `json:"timeframe,omitempty"`
}

// ComorbidityRisk layers patient risk factors on top of a triage result.
type ComorbidityRisk struct {
	// Factors are the detected risk-factor tags.
	Factors []string `json:"factors"`
	// Priority is the combined risk tier.
	Priority Priority `json:"priority"`
	// Recommendations are ordered guidance strings for the patient.
	Recommendations []string `json:"recommendations"`
	// Warnings carry drug-interaction and bleeding-risk notes.
	Warnings []string `json:"warnings,omitempty"`
}

// AppointmentSlot is one offered appointment time. Slots are value types
// with no identity of their own until booked.
type AppointmentSlot struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Doctor    string `json:"doctor"`
	Specialty string `json:"specialty"`
	Available bool   `json:"available"`
}

// AppointmentBooking is a confirmed appointment. Exactly one booking is
// created per successful commit-mode match.
type AppointmentBooking struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Doctor        string `json:"doctor"`
	Specialty     string `json:"specialty"`
	Type          string `json:"type"`
	Confirmed     bool   `json:"confirmed"`
}

// PatientProfile holds declared demographics and history used by the
// risk assessor.
type PatientProfile struct {
	PatientID   string   `json:"patient_id,omitempty"`
	Age         int      `json:"age,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty"`
}

// NewBookingID returns an appointment identifier of the form
// APT-XXXXXXXX where X is an uppercase hex digit.
func NewBookingID() string {
	hex := strings.ToUpper(uuid.New().String())
	hex = strings.ReplaceAll(hex, "-", "")
	return "APT-" + hex[:8]
}
