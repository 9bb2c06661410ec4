package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinodyk/patient-appointments/pkg/model"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

func newTestContext(message string, slots []model.AppointmentSlot) *TurnContext {
	working := session.New("")
	working.Slots = slots
	return NewTurnContext(message, working, nil, nil)
}

func TestIntake_FollowUpBooking(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantRef string
	}{
		{"doctor title", "I'll take Dr Chen please", "dr chen"},
		{"dotted title", "book me with dr. chen", "dr. chen"},
		{"bare surname", "go with chen", "chen"},
		{"ordinal only", "I'll take the first option", ""},
		{"time only", "book the 10:00 slot", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestContext(tt.message, testSlots())
			stage := NewIntakeStage()

			resp, err := stage.Evaluate(context.Background(), tc)
			require.NoError(t, err)
			require.Equal(t, model.IntentFollowUpBooking, tc.Intent)
			assert.Equal(t, tt.wantRef, tc.DoctorRef)
			assert.False(t, tc.Halted)
			assert.Equal(t, StageNameIntake, resp.Agent)
		})
	}
}

func TestIntake_FollowUpNeedsCachedSlots(t *testing.T) {
	tc := newTestContext("I'll take Dr Chen please", nil)

	_, err := NewIntakeStage().Evaluate(context.Background(), tc)
	require.NoError(t, err)
	assert.NotEqual(t, model.IntentFollowUpBooking, tc.Intent)
}

func TestIntake_FollowUpWinsOverComplaint(t *testing.T) {
	tc := newTestContext("book dr chen for my back pain", testSlots())

	_, err := NewIntakeStage().Evaluate(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, model.IntentFollowUpBooking, tc.Intent)
}

func TestIntake_NewComplaint(t *testing.T) {
	tc := newTestContext("I have chest pain and a headache", nil)

	resp, err := NewIntakeStage().Evaluate(context.Background(), tc)
	require.NoError(t, err)
	require.Equal(t, model.IntentNewComplaint, tc.Intent)
	assert.Equal(t, []string{"chest", "pain", "headache"}, tc.Symptoms)
	assert.Greater(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
}

func TestIntake_NonMedical(t *testing.T) {
	tests := []struct {
		message   string
		wantTopic string
	}{
		{"Book movie tickets for tonight", "entertainment"},
		{"reserve a table for two at the restaurant", "dining"},
		{"find me a flight to Paris", "travel"},
		{"where can I buy new shoes", "shopping"},
		{"what's the weather this weekend", "weather"},
		{"tell me a joke", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.wantTopic, func(t *testing.T) {
			tc := newTestContext(tt.message, nil)

			resp, err := NewIntakeStage().Evaluate(context.Background(), tc)
			require.NoError(t, err)
			require.Equal(t, model.IntentNonMedical, tc.Intent)
			assert.Equal(t, tt.wantTopic, tc.Topic)
			assert.True(t, tc.Halted)
			assert.Equal(t, model.ActionRedirect, resp.Action)
		})
	}
}

func TestExtractSymptoms(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{
			name:    "message order",
			message: "my stomach hurts and i feel nauseous",
			want:    []string{"stomach", "hurt", "nausea"},
		},
		{
			name:    "deduplicated",
			message: "pain pain and more pain",
			want:    []string{"pain"},
		},
		{
			name:    "injury patterns",
			message: "i fell and cut my hand",
			want:    []string{"fall", "cut"},
		},
		{
			name:    "no false hit inside words",
			message: "i will call you backstage",
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSymptoms(tt.message))
		})
	}
}

func TestIsInjuryComplaint(t *testing.T) {
	assert.True(t, IsInjuryComplaint([]string{"pain", "cut"}))
	assert.True(t, IsInjuryComplaint([]string{"bleeding"}))
	assert.False(t, IsInjuryComplaint([]string{"cough", "fever"}))
}
