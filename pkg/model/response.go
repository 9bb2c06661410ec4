package model

// Action tags attached to agent responses. They describe the outcome of a
// stage without requiring callers to parse message text.
const (
	ActionBlocked          = "blocked"
	ActionCrisisSupport    = "crisis_support"
	ActionRedirect         = "redirect"
	ActionTriageComplete   = "triage_complete"
	ActionRiskAssessed     = "risk_assessed"
	ActionSlotsProposed    = "slots_proposed"
	ActionBookingConfirmed = "booking_confirmed"
	ActionDisambiguation   = "disambiguation"
)

// AgentResponse is the output of one pipeline stage for one turn.
type AgentResponse struct {
	// Agent is the stage name, e.g. "triage".
	Agent string `json:"agent"`
	// Message is the human-readable text produced by the stage.
	Message string `json:"message"`
	// Confidence is always within [0,1].
	Confidence float64 `json:"confidence"`
	// Action is an optional outcome tag, see the Action constants.
	Action string `json:"action,omitempty"`
	// Payload carries optional structured stage output.
	Payload map[string]any `json:"payload,omitempty"`
}

// NewAgentResponse builds an AgentResponse with the confidence clamped
// into [0,1]. NaN-safe: anything not comparable collapses to 0.
func NewAgentResponse(agent, message string, confidence float64) AgentResponse {
	return AgentResponse{
		Agent:      agent,
		Message:    message,
		Confidence: ClampConfidence(confidence),
	}
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	if c != c { // NaN
		return 0
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// WithAction returns a copy of the response with the action tag set.
func (r AgentResponse) WithAction(action string) AgentResponse {
	r.Action = action
	return r
}

// WithPayload returns a copy of the response with one payload entry added.
func (r AgentResponse) WithPayload(key string, value any) AgentResponse {
	if r.Payload == nil {
		r.Payload = make(map[string]any)
	}
	r.Payload[key] = value
	return r
}
