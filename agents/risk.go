package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

// riskFactors are the comorbidities the assessor recognizes, with the
// weight each contributes to the additive risk score.
var riskFactors = []struct {
	tag     string
	pattern *regexp.Regexp
	weight  int
}{
	{"immunocompromised", regexp.MustCompile(`immunocompromised|immunosuppress\w*|chemo(therapy)?\b|transplant|\bhiv\b|\baids\b`), 3},
	{"elderly", regexp.MustCompile(`\belderly\b`), 2},
	{"heart disease", regexp.MustCompile(`heart\s+(disease|condition|failure)|coronary\s+artery`), 2},
	{"copd", regexp.MustCompile(`\bcopd\b|emphysema|chronic\s+bronchitis`), 2},
	{"cancer", regexp.MustCompile(`\bcancer\b|\btumou?r\b|oncolog\w*`), 2},
	{"kidney disease", regexp.MustCompile(`kidney\s+disease|\brenal\b|dialysis`), 2},
	{"diabetes", regexp.MustCompile(`diabet(es|ic)`), 1},
	{"hypertension", regexp.MustCompile(`hypertension|high\s+blood\s+pressure`), 1},
	{"asthma", regexp.MustCompile(`\basthma\b`), 1},
	{"liver disease", regexp.MustCompile(`liver\s+disease|cirrhosis|hepatitis`), 1},
	{"pregnancy", regexp.MustCompile(`pregnan(t|cy)`), 1},
	{"obesity", regexp.MustCompile(`\bobese\b|\bobesity\b`), 1},
	{"anticoagulant use", regexp.MustCompile(`warfarin|coumadin|eliquis|xarelto|blood\s+thinner|anticoagulant`), 1},
}

const elderlyAge = 65

// factorRecommendations is the per-factor guidance appended to the risk
// assessment.
var factorRecommendations = map[string]string{
	"immunocompromised": "Avoid crowded waiting rooms and watch closely for fever; infections can escalate quickly for you.",
	"elderly":           "Arrange assistance for your visit if mobility is limited.",
	"heart disease":     "Report any chest pain, palpitations, or new shortness of breath immediately.",
	"copd":              "Watch for increased shortness of breath or changes in sputum.",
	"cancer":            "Coordinate this visit with your oncology team.",
	"kidney disease":    "Avoid NSAIDs and follow your fluid guidance.",
	"diabetes":          "Monitor your blood sugar more closely while unwell.",
	"hypertension":      "Keep track of your blood pressure readings.",
	"asthma":            "Keep your rescue inhaler within reach.",
	"liver disease":     "Avoid alcohol and acetaminophen-heavy products.",
	"pregnancy":         "Confirm any medication is pregnancy-safe before taking it.",
	"obesity":           "Mention your full health history when you arrive.",
	"anticoagulant use": "Watch for unusual bruising or bleeding.",
}

// specialistReferrals suggests a follow-up specialty for the heavier
// comorbidities.
var specialistReferrals = map[string]string{
	"heart disease":  "Consider a cardiology follow-up for your heart condition.",
	"copd":           "Consider a pulmonology follow-up for your lung condition.",
	"kidney disease": "Consider a nephrology follow-up for your kidney condition.",
}

// drugInteractions flag medication combinations worth a warning. Both
// patterns must appear across the message and the medication list.
var drugInteractions = []struct {
	first   *regexp.Regexp
	second  *regexp.Regexp
	warning string
}{
	{
		regexp.MustCompile(`warfarin|coumadin`),
		regexp.MustCompile(`\bnsaids?\b|ibuprofen|advil|aleve|naproxen|aspirin`),
		"Warfarin together with NSAIDs raises your bleeding risk. Check with your doctor before taking them.",
	},
	{
		regexp.MustCompile(`lisinopril|enalapril|ramipril|ace\s+inhibitor`),
		regexp.MustCompile(`potassium`),
		"ACE inhibitors with potassium supplements can push potassium to dangerous levels. Ask your doctor first.",
	},
}

const bleedingWarning = "You take a blood thinner and reported an injury. Bleeding may be harder to stop; " +
	"have this evaluated promptly."

// RiskStage layers patient comorbidities on top of the triage result. Like
// triage, it is rule-driven and uses the reasoner only for phrasing.
type RiskStage struct{}

func NewRiskStage() *RiskStage { return &RiskStage{} }

func (s *RiskStage) Name() string { return StageNameRisk }

// Skip reuses the cached assessment when the patient is only picking a slot.
func (s *RiskStage) Skip(tc *TurnContext) bool {
	return tc.Intent == model.IntentFollowUpBooking && tc.Working.Risk != nil
}

func (s *RiskStage) Evaluate(ctx context.Context, tc *TurnContext) (*model.AgentResponse, error) {
	risk := AssessRisk(tc.Message, tc.Working.Patient, tc.Symptoms)
	tc.Working.Risk = risk

	confidence := 0.8
	if len(risk.Factors) > 0 {
		confidence += 0.1
	}

	fallback := riskSummary(risk)
	prompt := fmt.Sprintf("Risk factors: %s. Overall risk: %s. Guidance: %s",
		strings.Join(risk.Factors, ", "), risk.Priority, strings.Join(risk.Recommendations, " "))
	message, confidence := phrase(ctx, tc, StageNameRisk,
		"You are a clinical risk assistant. Restate the risk summary for the patient in two short "+
			"sentences. Keep the risk level and every warning exactly as given.",
		prompt, fallback, confidence)

	resp := model.NewAgentResponse(StageNameRisk, message, confidence).
		WithAction(model.ActionRiskAssessed).
		WithPayload("risk_level", string(risk.Priority)).
		WithPayload("factor_count", len(risk.Factors))
	return &resp, nil
}

// AssessRisk extracts risk factors from the message and the patient profile
// and scores them into a risk tier. symptomTags mark injury complaints,
// which interact with anticoagulant use.
func AssessRisk(message string, patient *model.PatientProfile, symptomTags []string) *model.ComorbidityRisk {
	corpus := strings.ToLower(message)
	age := 0
	if patient != nil {
		age = patient.Age
		if len(patient.Conditions) > 0 {
			corpus += " " + strings.ToLower(strings.Join(patient.Conditions, " "))
		}
		if len(patient.Medications) > 0 {
			corpus += " " + strings.ToLower(strings.Join(patient.Medications, " "))
		}
	}

	var factors []string
	score := 0
	for _, f := range riskFactors {
		matched := f.pattern.MatchString(corpus)
		if f.tag == "elderly" {
			matched = matched || age >= elderlyAge
		}
		if matched {
			factors = append(factors, f.tag)
			score += f.weight
		}
	}
	if len(factors) >= 3 {
		score += 2
	}

	priority := model.PriorityLow
	switch {
	case score >= 6:
		priority = model.PriorityHigh
	case score >= 3:
		priority = model.PriorityMedium
	}

	risk := &model.ComorbidityRisk{
		Factors:  factors,
		Priority: priority,
	}

	for _, tag := range factors {
		if rec, ok := factorRecommendations[tag]; ok {
			risk.Recommendations = append(risk.Recommendations, rec)
		}
	}
	if priority == model.PriorityHigh {
		risk.Recommendations = append(risk.Recommendations,
			"Given your combined risk profile, mention all of these conditions when you are seen.")
	}
	for _, tag := range factors {
		if ref, ok := specialistReferrals[tag]; ok {
			risk.Recommendations = append(risk.Recommendations, ref)
		}
	}

	if hasFactor(factors, "anticoagulant use") && IsInjuryComplaint(symptomTags) {
		if risk.Priority == model.PriorityLow {
			risk.Priority = model.PriorityMedium
		}
		risk.Warnings = append(risk.Warnings, bleedingWarning)
	}
	for _, di := range drugInteractions {
		if di.first.MatchString(corpus) && di.second.MatchString(corpus) {
			risk.Warnings = append(risk.Warnings, di.warning)
		}
	}

	return risk
}

func hasFactor(factors []string, tag string) bool {
	for _, f := range factors {
		if f == tag {
			return true
		}
	}
	return false
}

func riskSummary(r *model.ComorbidityRisk) string {
	if len(r.Factors) == 0 {
		return "I didn't find additional risk factors in what you've shared. Your complaint will be " +
			"handled at the urgency already assessed."
	}
	msg := fmt.Sprintf("I've noted these risk factors: %s. Your overall risk level is %s.",
		strings.Join(r.Factors, ", "), strings.ToLower(string(r.Priority)))
	if len(r.Warnings) > 0 {
		msg += " " + strings.Join(r.Warnings, " ")
	}
	return msg
}
