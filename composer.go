package patientapp

import (
	"strings"

	"github.com/vinodyk/patient-appointments/agents"
	"github.com/vinodyk/patient-appointments/pkg/model"
)

// TurnRequest is one inbound chat message. An absent SessionID starts a new
// conversation; PatientID is recorded on newly created sessions.
type TurnRequest struct {
	Message   string `json:"message"`
	PatientID string `json:"patient_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// TurnResponse is the structured outcome of one turn. It is always
// well-formed: slot and step lists are non-nil even when empty, and raw
// internal errors never appear in it.
type TurnResponse struct {
	Message           string                    `json:"message"`
	AgentResponses    []model.AgentResponse     `json:"agent_responses"`
	SymptomAnalysis   *model.SymptomAnalysis    `json:"symptom_analysis,omitempty"`
	ComorbidityRisk   *model.ComorbidityRisk    `json:"comorbidity_risk,omitempty"`
	AvailableSlots    []model.AppointmentSlot   `json:"available_slots"`
	Booking           *model.AppointmentBooking `json:"booking,omitempty"`
	NextSteps         []string                  `json:"next_steps"`
	RequiresEmergency bool                      `json:"requires_emergency"`
	SessionID         string                    `json:"session_id"`
}

const apologyMessage = "I'm sorry, something went wrong while processing your message. " +
	"Your conversation is unchanged. Please try again."

// compose renders the accumulated stage outputs into the external response
// shape.
func compose(tc *agents.TurnContext, responses []model.AgentResponse) *TurnResponse {
	if responses == nil {
		responses = []model.AgentResponse{}
	}

	out := &TurnResponse{
		Message:           primaryMessage(tc, responses),
		AgentResponses:    responses,
		AvailableSlots:    []model.AppointmentSlot{},
		NextSteps:         nextSteps(tc, responses),
		RequiresEmergency: requiresEmergency(tc),
		SessionID:         tc.Working.ID,
	}

	// Halted turns report nothing about prior medical state: a blocked or
	// off-topic message gets a minimal response.
	if tc.Halted {
		return out
	}

	out.SymptomAnalysis = tc.Working.Symptoms
	out.ComorbidityRisk = tc.Working.Risk
	if tc.Working.Slots != nil {
		out.AvailableSlots = tc.Working.Slots
	}
	if hasAction(responses, model.ActionBookingConfirmed) {
		out.Booking = tc.Working.Booking
	}
	return out
}

// primaryMessage assembles the turn narrative. A halting stage speaks
// alone; otherwise triage, risk (when factors were found), and scheduling
// contribute in pipeline order.
func primaryMessage(tc *agents.TurnContext, responses []model.AgentResponse) string {
	var parts []string
	for _, r := range responses {
		switch r.Agent {
		case agents.StageNameSecurity:
			if r.Action == model.ActionCrisisSupport || r.Action == model.ActionBlocked {
				return r.Message
			}
		case agents.StageNameIntake:
			if r.Action == model.ActionRedirect {
				return r.Message
			}
		case agents.StageNameTriage, agents.StageNameScheduling:
			if r.Message != "" {
				parts = append(parts, r.Message)
			}
		case agents.StageNameRisk:
			if risk := tc.Working.Risk; risk != nil && len(risk.Factors) > 0 {
				parts = append(parts, r.Message)
			}
		}
	}
	if len(parts) == 0 {
		return "How can I help with your health concern today?"
	}
	return strings.Join(parts, "\n\n")
}

// nextSteps derives the guidance list for the turn from the working session
// state and the decisive stage actions.
func nextSteps(tc *agents.TurnContext, responses []model.AgentResponse) []string {
	for _, r := range responses {
		switch r.Action {
		case model.ActionCrisisSupport:
			return []string{
				"Call or text 988 (Suicide & Crisis Lifeline).",
				"Text HOME to 741741 (Crisis Text Line).",
				"Call 911 if you are in immediate danger.",
			}
		case model.ActionBlocked:
			return []string{"Tell me about a symptom or an appointment I can help with."}
		case model.ActionRedirect:
			return []string{
				"Describe any symptoms you're experiencing.",
				"Ask to book an appointment with one of our providers.",
			}
		}
	}

	if hasAction(responses, model.ActionBookingConfirmed) {
		steps := []string{
			"Arrive 15 minutes early and bring a photo ID and your insurance card.",
			"Bring a list of your current medications.",
		}
		if risk := tc.Working.Risk; risk != nil {
			steps = append(steps, risk.Warnings...)
		}
		return steps
	}

	steps := []string{}
	if sym := tc.Working.Symptoms; sym != nil {
		if sym.Priority == model.PriorityEmergency {
			steps = append(steps, "Call 911 or go to the nearest emergency room now.")
		} else if sym.Timeframe != "" {
			steps = append(steps, "See a doctor "+sym.Timeframe+".")
		}
		if instr := agents.CareInstruction(sym.Priority); instr != "" {
			steps = append(steps, instr)
		}
	}
	if risk := tc.Working.Risk; risk != nil {
		steps = append(steps, risk.Warnings...)
		steps = append(steps, risk.Recommendations...)
	}
	if len(tc.Working.Slots) > 0 {
		steps = append(steps, "Reply with a doctor's name or an option number to book a slot.")
	}
	return steps
}

// requiresEmergency flags turns that need immediate escalation: a crisis
// verdict, or an EMERGENCY triage priority on a turn that reached triage.
func requiresEmergency(tc *agents.TurnContext) bool {
	if tc.Screen != nil && tc.Screen.Verdict == model.VerdictCrisis {
		return true
	}
	if tc.Halted {
		return false
	}
	return tc.Working.Symptoms != nil && tc.Working.Symptoms.Priority == model.PriorityEmergency
}

// failureResponse is the generic apology for turns that could not be
// processed. The stored session is untouched when it is returned.
func failureResponse(sessionID string) *TurnResponse {
	return &TurnResponse{
		Message:        apologyMessage,
		AgentResponses: []model.AgentResponse{},
		AvailableSlots: []model.AppointmentSlot{},
		NextSteps:      []string{"Please try sending your message again."},
		SessionID:      sessionID,
	}
}

func hasAction(responses []model.AgentResponse, action string) bool {
	for _, r := range responses {
		if r.Action == action {
			return true
		}
	}
	return false
}
