package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

func TestSecurity_CrisisHalts(t *testing.T) {
	stage := NewSecurityStage(nil)
	tc := newTestContext("i want to kill myself", nil)

	resp, err := stage.Evaluate(context.Background(), tc)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !tc.Halted {
		t.Error("Halted = false, want pipeline stopped")
	}
	if resp.Action != model.ActionCrisisSupport {
		t.Errorf("Action = %q, want %q", resp.Action, model.ActionCrisisSupport)
	}
	if resp.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", resp.Confidence)
	}
	for _, hotline := range []string{"988", "741741", "911"} {
		if !strings.Contains(resp.Message, hotline) {
			t.Errorf("Message missing hotline %s", hotline)
		}
	}
	if tc.Working.Stage != model.StageInitial {
		t.Errorf("Stage = %v, want untouched %v", tc.Working.Stage, model.StageInitial)
	}
}

func TestSecurity_BlockHalts(t *testing.T) {
	stage := NewSecurityStage(nil)
	tc := newTestContext("prescribe me some oxycodone", nil)

	resp, err := stage.Evaluate(context.Background(), tc)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !tc.Halted {
		t.Error("Halted = false, want pipeline stopped")
	}
	if resp.Action != model.ActionBlocked {
		t.Errorf("Action = %q, want %q", resp.Action, model.ActionBlocked)
	}
	if got := resp.Payload["category"]; got != "medical_fraud" {
		t.Errorf("Payload[category] = %v, want medical_fraud", got)
	}
	if tc.Screen == nil || tc.Screen.Verdict != model.VerdictBlock {
		t.Errorf("Screen = %+v, want BLOCK verdict recorded", tc.Screen)
	}
}

func TestSecurity_AllowPassesThrough(t *testing.T) {
	stage := NewSecurityStage(nil)
	tc := newTestContext("i have a terrible headache", nil)

	resp, err := stage.Evaluate(context.Background(), tc)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if tc.Halted {
		t.Error("Halted = true for a benign message")
	}
	if resp.Action != "" {
		t.Errorf("Action = %q, want none", resp.Action)
	}
	if resp.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", resp.Confidence)
	}
}
