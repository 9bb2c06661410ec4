package agents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vinodyk/patient-appointments/pkg/model"
	"github.com/vinodyk/patient-appointments/pkg/observability"
)

// specialtyDoctors is the static provider roster.
var specialtyDoctors = map[string][]string{
	"general_practice": {"Dr. Sarah Johnson", "Dr. Michael Chen", "Dr. Emily Rodriguez"},
	"cardiology":       {"Dr. Robert Heart", "Dr. Lisa Cardiac"},
	"pulmonology":      {"Dr. David Lung"},
	"neurology":        {"Dr. Amanda Brain"},
	"emergency":        {"Dr. Emergency Smith", "Dr. Urgent Care"},
}

// rosterSurnameRef matches any roster surname; intake uses it to spot a
// doctor mention without a title.
var rosterSurnameRef = buildSurnameRef()

func buildSurnameRef() *regexp.Regexp {
	seen := map[string]bool{}
	var surnames []string
	for _, docs := range specialtyDoctors {
		for _, d := range docs {
			fields := strings.Fields(normalizeDoctorRef(d))
			s := fields[len(fields)-1]
			if !seen[s] {
				seen[s] = true
				surnames = append(surnames, regexp.QuoteMeta(s))
			}
		}
	}
	return regexp.MustCompile(`\b(` + strings.Join(surnames, "|") + `)\b`)
}

// DoctorsFor returns the roster for a specialty; unknown specialties fall
// back to general practice.
func DoctorsFor(specialty string) []string {
	if docs, ok := specialtyDoctors[specialty]; ok {
		return docs
	}
	return specialtyDoctors["general_practice"]
}

// Appointment hours. Emergency searches add the half hour to each.
var baseHours = []int{9, 10, 11, 14, 15, 16}

const maxProposedSlots = 5

// slotPrefs are the date and time preferences parsed from the message.
type slotPrefs struct {
	today     bool
	tomorrow  bool
	morning   bool
	afternoon bool
}

func parseSlotPrefs(lower string) slotPrefs {
	return slotPrefs{
		today:     strings.Contains(lower, "today"),
		tomorrow:  strings.Contains(lower, "tomorrow"),
		morning:   strings.Contains(lower, "morning"),
		afternoon: strings.Contains(lower, "afternoon"),
	}
}

// searchHorizon describes how far out to offer slots for a priority.
type searchHorizon struct {
	days         int
	includeToday bool
	weekdaysOnly bool
	halfHours    bool
}

func horizonFor(p model.Priority) searchHorizon {
	switch p {
	case model.PriorityEmergency:
		return searchHorizon{days: 2, includeToday: true, halfHours: true}
	case model.PriorityHigh:
		return searchHorizon{days: 3}
	case model.PriorityMedium:
		return searchHorizon{days: 7, weekdaysOnly: true}
	default:
		return searchHorizon{days: 14, weekdaysOnly: true}
	}
}

// SchedulingStage proposes appointment slots for a triaged complaint and
// confirms bookings against previously proposed slots.
type SchedulingStage struct {
	now func() time.Time
}

func NewSchedulingStage() *SchedulingStage {
	return &SchedulingStage{now: time.Now}
}

func (s *SchedulingStage) Name() string { return StageNameScheduling }

// Skip runs scheduling only when there is a triaged complaint to search
// for or cached slots to book against.
func (s *SchedulingStage) Skip(tc *TurnContext) bool {
	if tc.Intent == model.IntentFollowUpBooking && len(tc.Working.Slots) > 0 {
		return false
	}
	return tc.Working.Symptoms == nil
}

func (s *SchedulingStage) Evaluate(ctx context.Context, tc *TurnContext) (*model.AgentResponse, error) {
	if tc.Intent == model.IntentFollowUpBooking && len(tc.Working.Slots) > 0 {
		return s.commit(tc)
	}
	return s.search(tc)
}

// search proposes up to five soonest slots for the triaged specialty and
// urgency, honoring date and time preferences in the message.
func (s *SchedulingStage) search(tc *TurnContext) (*model.AgentResponse, error) {
	analysis := tc.Working.Symptoms
	specialty := analysis.Specialty
	if _, ok := specialtyDoctors[specialty]; !ok {
		specialty = "general_practice"
	}
	prefs := parseSlotPrefs(strings.ToLower(tc.Message))
	slots := s.generateSlots(specialty, analysis.Priority, prefs)

	tc.Working.Slots = slots
	if len(slots) == 0 {
		resp := model.NewAgentResponse(StageNameScheduling,
			"I couldn't find open slots matching your preferences. Try widening the time window, "+
				"and I'll search again.", 0.6)
		return &resp, nil
	}

	tc.Working.Stage = model.StageSlotsProposed
	resp := model.NewAgentResponse(StageNameScheduling,
		fmt.Sprintf("I found %d available appointment slots with %s providers. "+
			"Tell me the doctor and time you'd like and I'll book it.",
			len(slots), strings.ReplaceAll(specialty, "_", " ")), 0.9).
		WithAction(model.ActionSlotsProposed).
		WithPayload("slot_count", len(slots))
	return &resp, nil
}

func (s *SchedulingStage) generateSlots(specialty string, priority model.Priority, prefs slotPrefs) []model.AppointmentSlot {
	h := horizonFor(priority)
	doctors := DoctorsFor(specialty)
	now := s.now()

	start := 1
	if h.includeToday {
		start = 0
	}

	var slots []model.AppointmentSlot
	for d := start; d < start+h.days; d++ {
		day := now.AddDate(0, 0, d)
		if h.weekdaysOnly && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}
		if prefs.today && d != 0 {
			continue
		}
		if prefs.tomorrow && d != 1 {
			continue
		}
		date := day.Format(time.DateOnly)
		for _, hour := range baseHours {
			if prefs.morning && hour >= 12 {
				continue
			}
			if prefs.afternoon && (hour < 12 || hour >= 17) {
				continue
			}
			times := []string{fmt.Sprintf("%02d:00", hour)}
			if h.halfHours {
				times = append(times, fmt.Sprintf("%02d:30", hour))
			}
			for _, t := range times {
				for _, doctor := range doctors {
					slots = append(slots, model.AppointmentSlot{
						Date:      date,
						Time:      t,
						Doctor:    doctor,
						Specialty: specialty,
						Available: true,
					})
					if len(slots) == maxProposedSlots {
						return slots
					}
				}
			}
		}
	}
	return slots
}

// commit resolves the doctor reference against the cached slots and books
// exactly one appointment, or asks the patient to disambiguate.
func (s *SchedulingStage) commit(tc *TurnContext) (*model.AgentResponse, error) {
	cached := tc.Working.Slots
	candidates := distinctDoctors(cached)

	ref := tc.DoctorRef
	if ref == "" {
		ref = tc.Message
	}

	idx, score, err := matchDoctor(ref, candidates)
	if err != nil {
		var ambErr *AmbiguousMatchError
		if errors.As(err, &ambErr) && !ambErr.Tie {
			// No doctor named; an explicit ordinal or time can still pick
			// a slot directly.
			if i, ok := selectSlot(cached, tc.Message, s.now()); ok {
				return s.book(tc, cached[i], 0.85)
			}
		}
		tc.Log.Info("booking reference ambiguous",
			"session_id", tc.Working.ID, "reference", ref)
		resp := model.NewAgentResponse(StageNameScheduling, disambiguationMessage(cached), 0.5).
			WithAction(model.ActionDisambiguation)
		return &resp, nil
	}

	doctor := candidates[idx]
	doctorSlots := make([]model.AppointmentSlot, 0, len(cached))
	for _, slot := range cached {
		if slot.Doctor == doctor {
			doctorSlots = append(doctorSlots, slot)
		}
	}
	chosen := doctorSlots[0]
	if i, ok := selectSlot(doctorSlots, tc.Message, s.now()); ok {
		chosen = doctorSlots[i]
	}
	return s.book(tc, chosen, score)
}

func (s *SchedulingStage) book(tc *TurnContext, slot model.AppointmentSlot, confidence float64) (*model.AgentResponse, error) {
	apptType := "consultation"
	if slot.Specialty == "emergency" {
		apptType = "emergency"
	}
	patientID := ""
	if tc.Working.Patient != nil {
		patientID = tc.Working.Patient.PatientID
	}

	booking := &model.AppointmentBooking{
		AppointmentID: model.NewBookingID(),
		PatientID:     patientID,
		Date:          slot.Date,
		Time:          slot.Time,
		Doctor:        slot.Doctor,
		Specialty:     slot.Specialty,
		Type:          apptType,
		Confirmed:     true,
	}

	tc.Working.Booking = booking
	tc.Working.Slots = nil
	tc.Working.Stage = model.StageBookingConfirmed
	observability.RecordBooking()

	resp := model.NewAgentResponse(StageNameScheduling,
		fmt.Sprintf("Your appointment is confirmed: %s on %s at %s. Your confirmation number is %s.",
			booking.Doctor, booking.Date, booking.Time, booking.AppointmentID),
		model.ClampConfidence(confidence+0.1)).
		WithAction(model.ActionBookingConfirmed).
		WithPayload("appointment_id", booking.AppointmentID)
	return &resp, nil
}

func distinctDoctors(slots []model.AppointmentSlot) []string {
	seen := map[string]bool{}
	var doctors []string
	for _, s := range slots {
		if !seen[s.Doctor] {
			seen[s.Doctor] = true
			doctors = append(doctors, s.Doctor)
		}
	}
	return doctors
}

func disambiguationMessage(slots []model.AppointmentSlot) string {
	var b strings.Builder
	b.WriteString("I couldn't tell which appointment you meant. Your current options are:\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s on %s at %s\n", i+1, s.Doctor, s.Date, s.Time)
	}
	b.WriteString("Reply with the doctor's name or an option number.")
	return b.String()
}
