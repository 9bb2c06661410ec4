package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

// emergencyCombos are symptom combinations that always classify as an
// emergency, regardless of any other match. Every pattern in a combo must
// match the message.
var emergencyCombos = [][]*regexp.Regexp{
	{regexp.MustCompile(`chest\s+pain`), regexp.MustCompile(`breath\w*`)},
	{regexp.MustCompile(`chest\s+pain`), regexp.MustCompile(`arm\s+pain|left\s+arm|sweat\w*`)},
	{regexp.MustCompile(`face\s+droop\w*|slurred\s+speech|weak\w*\s+on\s+one\s+side|numb\w*\s+on\s+one\s+side`)},
	{regexp.MustCompile(`severe\s+bleeding|bleeding\s+(heavily|won'?t\s+stop)`)},
	{regexp.MustCompile(`unconscious|passed\s+out|fainted`)},
	{regexp.MustCompile(`seizure|convulsion`)},
	{regexp.MustCompile(`anaphyla(xis|ctic)|throat\s+(is\s+)?(closing|swelling)`)},
}

// severityRules map message phrasings to a priority tier. The highest
// matching tier wins.
var severityRules = []struct {
	pattern  *regexp.Regexp
	priority model.Priority
}{
	{regexp.MustCompile(`chest\s+pain`), model.PriorityEmergency},
	{regexp.MustCompile(`heart\s+attack`), model.PriorityEmergency},
	{regexp.MustCompile(`\bstroke\b`), model.PriorityEmergency},
	{regexp.MustCompile(`can'?t\s+breathe|cannot\s+breathe|difficulty\s+breathing`), model.PriorityEmergency},
	{regexp.MustCompile(`severe\s+bleeding`), model.PriorityEmergency},
	{regexp.MustCompile(`unconscious`), model.PriorityEmergency},
	{regexp.MustCompile(`seizure`), model.PriorityEmergency},
	{regexp.MustCompile(`anaphyla(xis|ctic)`), model.PriorityEmergency},
	{regexp.MustCompile(`\boverdose\b`), model.PriorityEmergency},
	{regexp.MustCompile(`severe\s+pain`), model.PriorityHigh},
	{regexp.MustCompile(`high\s+fever`), model.PriorityHigh},
	{regexp.MustCompile(`\bbroken?\b|\bfractur(e|ed)\b`), model.PriorityHigh},
	{regexp.MustCompile(`deep\s+cut`), model.PriorityHigh},
	{regexp.MustCompile(`head\s+injury`), model.PriorityHigh},
	{regexp.MustCompile(`blood\s+in\b`), model.PriorityHigh},
	{regexp.MustCompile(`vision\s+loss|losing\s+(my\s+)?vision`), model.PriorityHigh},
	{regexp.MustCompile(`severe\s+headache`), model.PriorityHigh},
	{regexp.MustCompile(`persistent\s+cough`), model.PriorityMedium},
	{regexp.MustCompile(`moderate\s+pain`), model.PriorityMedium},
	{regexp.MustCompile(`\bmigraines?\b`), model.PriorityMedium},
	{regexp.MustCompile(`\binfect(ion|ed)\b`), model.PriorityMedium},
	{regexp.MustCompile(`\bsprain(ed)?\b`), model.PriorityMedium},
	{regexp.MustCompile(`\bvomit(ing|ed)?\b`), model.PriorityMedium},
	{regexp.MustCompile(`\bdehydrat(ion|ed)\b`), model.PriorityMedium},
}

// amplifiers raise a LOW or MEDIUM result to HIGH.
var amplifiers = regexp.MustCompile(`\bsevere\b|\bunbearable\b|\bworst\b|\bextreme(ly)?\b|\bexcruciating\b`)

// specialtyRules map complaint wording to the specialty that should see
// the patient. First match wins; emergencies always go to emergency.
var specialtyRules = []struct {
	pattern   *regexp.Regexp
	specialty string
}{
	{regexp.MustCompile(`\bheart\b|\bcardiac\b|\bchest\b|\bpalpitations?\b`), "cardiology"},
	{regexp.MustCompile(`\bbreath\w*\b|\blungs?\b|\basthma\b|\bwheez\w*\b`), "pulmonology"},
	{regexp.MustCompile(`\bhead(ache)?s?\b|\bmigraines?\b|\bnumb\w*\b|\bseizures?\b|\bdizz\w*\b`), "neurology"},
}

// Recommended timeframes per priority tier.
var timeframes = map[model.Priority]string{
	model.PriorityEmergency: "immediately - call 911 or go to the nearest emergency room",
	model.PriorityHigh:      "within 24 hours",
	model.PriorityMedium:    "within 2-3 days",
	model.PriorityLow:       "within 1-2 weeks",
}

var careInstructions = map[model.Priority]string{
	model.PriorityEmergency: "Call 911 or go to the nearest emergency room now.",
	model.PriorityHigh:      "Seek urgent care or a same-day appointment.",
	model.PriorityMedium:    "Schedule an appointment in the next few days and monitor your symptoms.",
	model.PriorityLow:       "Practice self-care and schedule a routine visit if symptoms persist.",
}

// Timeframe returns the recommended time to be seen for a priority.
func Timeframe(p model.Priority) string { return timeframes[p] }

// CareInstruction returns the self-care guidance for a priority.
func CareInstruction(p model.Priority) string { return careInstructions[p] }

// TriageStage classifies a complaint into a priority tier and a specialty.
// Classification is entirely rule-driven; the reasoner only rephrases the
// patient-facing summary.
type TriageStage struct{}

func NewTriageStage() *TriageStage { return &TriageStage{} }

func (s *TriageStage) Name() string { return StageNameTriage }

// Skip reuses the cached analysis when the patient is only picking a slot.
func (s *TriageStage) Skip(tc *TurnContext) bool {
	return tc.Intent == model.IntentFollowUpBooking && tc.Working.Symptoms != nil
}

func (s *TriageStage) Evaluate(ctx context.Context, tc *TurnContext) (*model.AgentResponse, error) {
	lower := strings.ToLower(tc.Message)
	tags := tc.Symptoms
	if len(tags) == 0 {
		tags = ExtractSymptoms(lower)
	}

	analysis := Classify(lower, tags)
	tc.Working.Symptoms = analysis
	tc.Working.Slots = nil
	tc.Working.Stage = model.StageSymptomsCaptured

	confidence := 0.7
	if len(tags) >= 3 {
		confidence += 0.1
	}
	if analysis.Priority == model.PriorityEmergency {
		confidence += 0.2
	}
	if len(tags) > 0 {
		confidence += 0.1
	}
	confidence = model.ClampConfidence(confidence)

	fallback := triageSummary(analysis)
	prompt := fmt.Sprintf(
		"Symptoms: %s. Urgency: %s. The patient should be seen %s. Recommended specialty: %s.",
		strings.Join(analysis.Symptoms, ", "), analysis.Priority, analysis.Timeframe, analysis.Specialty)
	message, confidence := phrase(ctx, tc, StageNameTriage,
		"You are a medical triage assistant. Restate the assessment for the patient in two or three "+
			"short sentences. Keep the urgency and timeframe exactly as given. Do not diagnose and do "+
			"not add medical advice.",
		prompt, fallback, confidence)

	resp := model.NewAgentResponse(StageNameTriage, message, confidence).
		WithAction(model.ActionTriageComplete).
		WithPayload("priority", string(analysis.Priority)).
		WithPayload("specialty", analysis.Specialty)
	return &resp, nil
}

// Classify derives the symptom analysis for a lowercased complaint.
func Classify(lower string, tags []string) *model.SymptomAnalysis {
	priority := model.PriorityLow
	if comboMatches(lower) {
		priority = model.PriorityEmergency
	} else {
		for _, rule := range severityRules {
			if rule.pattern.MatchString(lower) {
				priority = priority.Max(rule.priority)
			}
		}
		if (priority == model.PriorityLow || priority == model.PriorityMedium) && amplifiers.MatchString(lower) {
			priority = model.PriorityHigh
		}
	}

	return &model.SymptomAnalysis{
		Symptoms:  tags,
		Priority:  priority,
		Urgent:    priority == model.PriorityEmergency || priority == model.PriorityHigh,
		Specialty: specialtyFor(lower, priority),
		Timeframe: timeframes[priority],
	}
}

func comboMatches(lower string) bool {
	for _, combo := range emergencyCombos {
		all := true
		for _, re := range combo {
			if !re.MatchString(lower) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func specialtyFor(lower string, priority model.Priority) string {
	if priority == model.PriorityEmergency {
		return "emergency"
	}
	for _, rule := range specialtyRules {
		if rule.pattern.MatchString(lower) {
			return rule.specialty
		}
	}
	return "general_practice"
}

func triageSummary(a *model.SymptomAnalysis) string {
	noted := ""
	if len(a.Symptoms) > 0 {
		noted = fmt.Sprintf("I've noted: %s. ", strings.Join(a.Symptoms, ", "))
	}
	switch a.Priority {
	case model.PriorityEmergency:
		return noted + "Your symptoms may indicate a medical emergency. Please call 911 or go to the " +
			"nearest emergency room immediately."
	case model.PriorityHigh:
		return noted + "Your symptoms need prompt attention. You should be seen within 24 hours."
	case model.PriorityMedium:
		return noted + "Your symptoms should be evaluated soon. Plan to be seen within 2-3 days."
	default:
		return noted + "Your symptoms look manageable. A routine visit within 1-2 weeks should be fine."
	}
}
