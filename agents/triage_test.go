package agents

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/vinodyk/patient-appointments/internal/reasoner"
	"github.com/vinodyk/patient-appointments/pkg/model"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		message       string
		wantPriority  model.Priority
		wantUrgent    bool
		wantSpecialty string
	}{
		{
			name:          "chest pain with breathing trouble",
			message:       "i have chest pain and can't breathe",
			wantPriority:  model.PriorityEmergency,
			wantUrgent:    true,
			wantSpecialty: "emergency",
		},
		{
			name:          "chest pain alone",
			message:       "crushing chest pain since this morning",
			wantPriority:  model.PriorityEmergency,
			wantUrgent:    true,
			wantSpecialty: "emergency",
		},
		{
			name:          "emergency wins over lower severity",
			message:       "a mild cough, a sprain, and chest pain with sweating",
			wantPriority:  model.PriorityEmergency,
			wantUrgent:    true,
			wantSpecialty: "emergency",
		},
		{
			name:          "broken bone is high",
			message:       "i think my arm is broken",
			wantPriority:  model.PriorityHigh,
			wantUrgent:    true,
			wantSpecialty: "general_practice",
		},
		{
			name:          "persistent cough is medium",
			message:       "a persistent cough for two weeks",
			wantPriority:  model.PriorityMedium,
			wantUrgent:    false,
			wantSpecialty: "general_practice",
		},
		{
			name:          "amplifier raises migraine to high",
			message:       "a severe migraine since yesterday",
			wantPriority:  model.PriorityHigh,
			wantUrgent:    true,
			wantSpecialty: "neurology",
		},
		{
			name:          "amplifier raises low to high",
			message:       "the worst headache of my life",
			wantPriority:  model.PriorityHigh,
			wantUrgent:    true,
			wantSpecialty: "neurology",
		},
		{
			name:          "runny nose is low",
			message:       "a runny nose and sneezing",
			wantPriority:  model.PriorityLow,
			wantUrgent:    false,
			wantSpecialty: "general_practice",
		},
		{
			name:          "wheezing goes to pulmonology",
			message:       "wheezing at night with my asthma",
			wantPriority:  model.PriorityLow,
			wantUrgent:    false,
			wantSpecialty: "pulmonology",
		},
		{
			name:          "palpitations go to cardiology",
			message:       "palpitations when climbing stairs",
			wantPriority:  model.PriorityLow,
			wantUrgent:    false,
			wantSpecialty: "cardiology",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower := strings.ToLower(tt.message)
			got := Classify(lower, ExtractSymptoms(lower))
			if got.Priority != tt.wantPriority {
				t.Errorf("Priority = %v, want %v", got.Priority, tt.wantPriority)
			}
			if got.Urgent != tt.wantUrgent {
				t.Errorf("Urgent = %v, want %v", got.Urgent, tt.wantUrgent)
			}
			if got.Specialty != tt.wantSpecialty {
				t.Errorf("Specialty = %q, want %q", got.Specialty, tt.wantSpecialty)
			}
			if got.Timeframe != Timeframe(tt.wantPriority) {
				t.Errorf("Timeframe = %q, want %q", got.Timeframe, Timeframe(tt.wantPriority))
			}
		})
	}
}

func TestTriage_Evaluate(t *testing.T) {
	tc := newTestContext("i have chest pain and can't breathe", nil)
	tc.Intent = model.IntentNewComplaint
	tc.Symptoms = ExtractSymptoms(tc.Message)
	tc.Working.Slots = testSlots()

	resp, err := NewTriageStage().Evaluate(context.Background(), tc)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if tc.Working.Symptoms == nil {
		t.Fatal("Working.Symptoms = nil, want cached analysis")
	}
	if tc.Working.Symptoms.Priority != model.PriorityEmergency {
		t.Errorf("Priority = %v, want EMERGENCY", tc.Working.Symptoms.Priority)
	}
	if tc.Working.Stage != model.StageSymptomsCaptured {
		t.Errorf("Stage = %v, want %v", tc.Working.Stage, model.StageSymptomsCaptured)
	}
	if tc.Working.Slots != nil {
		t.Error("Working.Slots not cleared for a new complaint")
	}
	if resp.Action != model.ActionTriageComplete {
		t.Errorf("Action = %q, want %q", resp.Action, model.ActionTriageComplete)
	}
	if resp.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", resp.Confidence)
	}
}

func TestTriage_ReasonerPhrasesMessage(t *testing.T) {
	mock := reasoner.NewMock()
	mock.QueueResponse("Here is a friendlier wording of your assessment.")

	tc := newTestContext("a severe migraine since yesterday", nil)
	tc.Intent = model.IntentNewComplaint
	tc.Symptoms = ExtractSymptoms(tc.Message)
	tc.Reasoner = mock

	resp, err := NewTriageStage().Evaluate(context.Background(), tc)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if resp.Message != "Here is a friendlier wording of your assessment." {
		t.Errorf("Message = %q, want the mocked phrasing", resp.Message)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", mock.CallCount())
	}
	if want := 0.8; math.Abs(resp.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", resp.Confidence, want)
	}
}

func TestTriage_ReasonerFailureFallsBack(t *testing.T) {
	mock := reasoner.NewMock()
	mock.QueueError(errors.New("provider down"))

	tc := newTestContext("a severe migraine since yesterday", nil)
	tc.Intent = model.IntentNewComplaint
	tc.Symptoms = ExtractSymptoms(tc.Message)
	tc.Reasoner = mock

	resp, err := NewTriageStage().Evaluate(context.Background(), tc)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !strings.Contains(resp.Message, "prompt attention") {
		t.Errorf("Message = %q, want rule fallback text", resp.Message)
	}
	if want := 0.8 * 0.8; math.Abs(resp.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", resp.Confidence, want)
	}
}

func TestTriage_SkipReusesCachedAnalysis(t *testing.T) {
	stage := NewTriageStage()

	tc := newTestContext("book dr chen", nil)
	tc.Intent = model.IntentFollowUpBooking
	tc.Working.Symptoms = &model.SymptomAnalysis{Priority: model.PriorityMedium}
	if !stage.Skip(tc) {
		t.Error("Skip() = false with cached analysis, want true")
	}

	tc.Working.Symptoms = nil
	if stage.Skip(tc) {
		t.Error("Skip() = true without cached analysis, want false")
	}

	tc.Intent = model.IntentNewComplaint
	tc.Working.Symptoms = &model.SymptomAnalysis{Priority: model.PriorityMedium}
	if stage.Skip(tc) {
		t.Error("Skip() = true for a new complaint, want false")
	}
}

func newSessionWithStage(stage model.ConversationStage) *session.Session {
	s := session.New("")
	s.Stage = stage
	return s
}

func TestTriage_ResetsStageAfterBooking(t *testing.T) {
	tc := NewTurnContext("i have a persistent cough", newSessionWithStage(model.StageBookingConfirmed), nil, nil)
	tc.Intent = model.IntentNewComplaint
	tc.Symptoms = ExtractSymptoms(tc.Message)

	if _, err := NewTriageStage().Evaluate(context.Background(), tc); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if tc.Working.Stage != model.StageSymptomsCaptured {
		t.Errorf("Stage = %v, want %v", tc.Working.Stage, model.StageSymptomsCaptured)
	}
}
