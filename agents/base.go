// Package agents implements the pipeline stages that process one patient
// turn: security screening, intake extraction, triage classification,
// comorbidity risk assessment, and appointment scheduling. Stages share a
// TurnContext and satisfy a uniform Stage interface; the engine runs them
// in order and applies the short-circuit rules between them.
package agents

import (
	"context"
	"strings"

	"github.com/vinodyk/patient-appointments/internal/reasoner"
	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/model"
	"github.com/vinodyk/patient-appointments/pkg/observability"
	"github.com/vinodyk/patient-appointments/pkg/security"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

// Stage names as they appear in responses, metrics, and the status registry.
const (
	StageNameSecurity   = "security"
	StageNameIntake     = "intake"
	StageNameTriage     = "triage"
	StageNameRisk       = "risk"
	StageNameScheduling = "scheduling"
)

// Phrasing limits for reasoner calls. Stages only ask the reasoner to
// reword rule-derived facts, so responses stay short.
const (
	phrasingMaxTokens   = 220
	phrasingTemperature = 0.4
)

// Stage is one step of the turn pipeline. Evaluate may mutate the working
// session on the context; it must never touch shared state.
type Stage interface {
	// Name identifies the stage in responses, metrics, and status reports.
	Name() string
	// Skip reports whether the stage has nothing to do for this turn.
	Skip(tc *TurnContext) bool
	// Evaluate runs the stage and returns its response for the turn.
	Evaluate(ctx context.Context, tc *TurnContext) (*model.AgentResponse, error)
}

// TurnContext carries one turn through the pipeline. The engine builds it
// around a working clone of the session; stages read the fields earlier
// stages produced and record their own results on it.
type TurnContext struct {
	// Message is the raw user message for this turn.
	Message string
	// Working is the turn-scoped session clone. Stages mutate it freely;
	// the engine commits it once the turn succeeds.
	Working *session.Session

	// Screen is set by the security stage.
	Screen *security.ScreenResult
	// Intent, Topic, Symptoms, and DoctorRef are set by the intake stage.
	Intent    model.Intent
	Topic     string
	Symptoms  []string
	DoctorRef string

	// Halted stops the pipeline after the current stage.
	Halted bool

	// Reasoner phrases patient-facing text; nil means rule-only templates.
	Reasoner reasoner.Completer
	Log      logging.Logger
}

// NewTurnContext builds a context for one turn. A nil logger is replaced
// with a no-op.
func NewTurnContext(message string, working *session.Session, completer reasoner.Completer, log logging.Logger) *TurnContext {
	if log == nil {
		log = logging.NoOp{}
	}
	return &TurnContext{
		Message:  message,
		Working:  working,
		Reasoner: completer,
		Log:      log,
	}
}

// Halt marks the pipeline as finished after the current stage.
func (tc *TurnContext) Halt() {
	tc.Halted = true
}

// phrase asks the reasoner to reword fallback text from rule-derived facts.
// Without a reasoner the fallback is used as-is at full confidence. A failed
// or empty completion falls back too, costs a fifth of the confidence, and
// counts against the stage's fallback metric.
func phrase(ctx context.Context, tc *TurnContext, stage, system, prompt, fallback string, confidence float64) (string, float64) {
	if tc.Reasoner == nil {
		return fallback, confidence
	}
	text, err := tc.Reasoner.Complete(ctx, reasoner.Request{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   phrasingMaxTokens,
		Temperature: phrasingTemperature,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		observability.RecordStageFallback(stage)
		tc.Log.Warn("reasoner unavailable, using rule fallback", "stage", stage, "error", err)
		return fallback, confidence * 0.8
	}
	return strings.TrimSpace(text), confidence
}
