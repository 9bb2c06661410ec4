package agents

import (
	"context"

	"github.com/vinodyk/patient-appointments/pkg/model"
	"github.com/vinodyk/patient-appointments/pkg/observability"
	"github.com/vinodyk/patient-appointments/pkg/security"
)

const crisisMessage = "I'm really sorry you're going through this. You don't have to face it alone. " +
	"Please reach out right now: call or text 988 (Suicide & Crisis Lifeline) or text HOME to 741741 " +
	"(Crisis Text Line). If you are in immediate danger, call 911. These services are free, " +
	"confidential, and available 24/7."

const blockedMessage = "I can't help with that request. I'm here to help with medical symptoms and " +
	"appointment scheduling, so let me know if there's a health concern I can assist with."

// SecurityStage screens every incoming message before any other stage sees
// it. A BLOCK or CRISIS verdict halts the pipeline; the conversation stage
// is left untouched either way.
type SecurityStage struct {
	screen *security.Screen
}

// NewSecurityStage wraps a screen; nil uses the default block threshold.
func NewSecurityStage(screen *security.Screen) *SecurityStage {
	if screen == nil {
		screen = security.NewScreen(0)
	}
	return &SecurityStage{screen: screen}
}

func (s *SecurityStage) Name() string { return StageNameSecurity }

// Skip never skips: every message is screened.
func (s *SecurityStage) Skip(tc *TurnContext) bool { return false }

func (s *SecurityStage) Evaluate(ctx context.Context, tc *TurnContext) (*model.AgentResponse, error) {
	res := s.screen.Evaluate(tc.Message)
	tc.Screen = &res
	observability.RecordSecurityVerdict(string(res.Verdict))

	switch res.Verdict {
	case model.VerdictCrisis:
		tc.Halt()
		resp := model.NewAgentResponse(StageNameSecurity, crisisMessage, 1.0).
			WithAction(model.ActionCrisisSupport)
		return &resp, nil
	case model.VerdictBlock:
		tc.Halt()
		tc.Log.Warn("message blocked",
			"session_id", tc.Working.ID,
			"category", string(res.Category),
			"score", res.Score,
		)
		resp := model.NewAgentResponse(StageNameSecurity, blockedMessage, res.Score).
			WithAction(model.ActionBlocked).
			WithPayload("category", string(res.Category))
		return &resp, nil
	default:
		resp := model.NewAgentResponse(StageNameSecurity, "Message passed security screening.", 1.0-res.Score)
		return &resp, nil
	}
}
