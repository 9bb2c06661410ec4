// Package patientapp turns one inbound chat message plus prior session
// context into one structured triage-and-scheduling response. The Engine
// sequences the pipeline stages against a working clone of the session and
// commits the clone atomically once the turn succeeds; failed turns leave
// the stored session untouched.
package patientapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vinodyk/patient-appointments/agents"
	tracing "github.com/vinodyk/patient-appointments/internal/observability"
	"github.com/vinodyk/patient-appointments/internal/reasoner"
	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/model"
	"github.com/vinodyk/patient-appointments/pkg/observability"
	"github.com/vinodyk/patient-appointments/pkg/security"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

// Options configures an Engine. Zero values select an in-memory session
// store, the default security screen, rule-only phrasing, and no-op logging.
type Options struct {
	// Sessions is the session manager. Nil creates one over a memory backend.
	Sessions *session.Manager
	// Reasoner phrases patient-facing text. Nil keeps rule templates only.
	Reasoner reasoner.Completer
	// Screen overrides the security screen, e.g. with a custom threshold.
	Screen *security.Screen
	// Log receives engine and stage logs.
	Log logging.Logger
}

// Engine is the conversation orchestrator. Safe for concurrent use; turns
// on the same session are serialized, turns on different sessions run in
// parallel.
type Engine struct {
	sessions *session.Manager
	stages   []agents.Stage
	reasoner reasoner.Completer
	registry *observability.StageRegistry
	log      logging.Logger
}

// New builds an engine with the fixed stage order: security, intake,
// triage, risk, scheduling.
func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = logging.NoOp{}
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewManager(session.NewMemoryBackend(), log)
	}

	e := &Engine{
		sessions: sessions,
		reasoner: opts.Reasoner,
		registry: observability.NewStageRegistry(),
		log:      log.With("component", "engine"),
		stages: []agents.Stage{
			agents.NewSecurityStage(opts.Screen),
			agents.NewIntakeStage(),
			agents.NewTriageStage(),
			agents.NewRiskStage(),
			agents.NewSchedulingStage(),
		},
	}
	for _, st := range e.stages {
		e.registry.Register(st.Name())
	}
	return e
}

// ProcessTurn runs one conversation turn. The only error it returns is
// *ValidationError for an empty or oversized message; every other failure
// is absorbed into a well-formed apology response so callers always have
// something to show the patient.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if err := validateMessage(req.Message); err != nil {
		observability.RecordTurn("rejected")
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	e.sessions.Lock(sessionID)
	defer e.sessions.Unlock(sessionID)

	stored, err := e.sessions.GetOrCreate(ctx, sessionID, req.PatientID)
	if err != nil {
		e.log.Error("session load failed", "session_id", sessionID, "error", err)
		observability.RecordTurn("error")
		return failureResponse(sessionID), nil
	}

	working := stored.Clone()
	tc := agents.NewTurnContext(req.Message, working, e.reasoner, e.log)

	ctx, span := tracing.StartSpan(ctx, "engine.turn", map[string]any{
		"session_id": working.ID,
	})
	defer span.End()

	responses, err := e.runStages(ctx, tc)
	if err != nil {
		span.SetError(err)
		e.log.Error("turn failed, session unchanged", "session_id", working.ID, "error", err)
		observability.RecordTurn("error")
		return failureResponse(working.ID), nil
	}

	out := compose(tc, responses)

	working.AppendTurn(model.RoleUser, req.Message)
	working.AppendTurn(model.RoleAssistant, out.Message)
	if err := e.sessions.Commit(ctx, working); err != nil {
		span.SetError(err)
		e.log.Error("commit failed, session unchanged", "session_id", working.ID, "error", err)
		observability.RecordTurn("error")
		return failureResponse(working.ID), nil
	}

	observability.RecordTurn(turnOutcome(tc))
	if n, err := e.sessions.Len(ctx); err == nil {
		observability.SetActiveSessions(n)
	}
	return out, nil
}

// runStages evaluates the pipeline in order, honoring per-stage skips and
// short-circuit halts. A panicking stage aborts the turn without touching
// the stored session.
func (e *Engine) runStages(ctx context.Context, tc *agents.TurnContext) (responses []model.AgentResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()

	for _, st := range e.stages {
		if tc.Halted {
			break
		}
		if st.Skip(tc) {
			continue
		}

		stageCtx, span := tracing.StartSpan(ctx, "stage."+st.Name(), map[string]any{
			"session_id": tc.Working.ID,
		})
		start := time.Now()
		resp, evalErr := st.Evaluate(stageCtx, tc)
		observability.RecordStageDuration(st.Name(), time.Since(start))

		if evalErr != nil {
			span.SetError(evalErr)
			span.End()
			e.registry.RecordInvocation(st.Name(), "error")
			return nil, fmt.Errorf("stage %s: %w", st.Name(), evalErr)
		}
		span.End()
		e.registry.RecordInvocation(st.Name(), "ok")

		if resp != nil {
			responses = append(responses, *resp)
		}
	}
	return responses, nil
}

// SessionSnapshot returns a deep copy of a stored session, or
// session.ErrSessionNotFound.
func (e *Engine) SessionSnapshot(ctx context.Context, id string) (*session.Session, error) {
	return e.sessions.Snapshot(ctx, id)
}

// DeleteSession removes a session. Unknown IDs are a no-op.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	e.sessions.Lock(id)
	defer e.sessions.Unlock(id)
	return e.sessions.Delete(ctx, id)
}

// SessionCount reports the number of stored sessions.
func (e *Engine) SessionCount(ctx context.Context) (int, error) {
	return e.sessions.Len(ctx)
}

// StageStatus reports per-stage invocation metadata in pipeline order.
func (e *Engine) StageStatus() []observability.StageInfo {
	return e.registry.Snapshot()
}

// Ping checks the session backend.
func (e *Engine) Ping(ctx context.Context) error {
	return e.sessions.Ping(ctx)
}

// Close releases the session backend.
func (e *Engine) Close() error {
	return e.sessions.Close()
}

// turnOutcome labels a completed turn for the turns_total metric.
func turnOutcome(tc *agents.TurnContext) string {
	if tc.Screen != nil {
		switch tc.Screen.Verdict {
		case model.VerdictCrisis:
			return "crisis"
		case model.VerdictBlock:
			return "blocked"
		}
	}
	if tc.Intent == model.IntentNonMedical {
		return "redirected"
	}
	return "completed"
}

// ValidationError rejects a turn before the pipeline runs. The session is
// never touched; Reason is safe to show the patient.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// validateMessage rejects empty and oversized messages before any session
// state is touched.
func validateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return &ValidationError{Reason: "Your message is empty. Please describe your symptoms or ask about an appointment."}
	}
	if len(message) > security.MaxMessageSize {
		return &ValidationError{Reason: "Your message is too long. Please shorten it and try again."}
	}
	return nil
}
