package agents

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

// symptomPatterns maps canonical symptom tags to the phrasings that
// indicate them. Order is irrelevant; tags are reported in message order.
var symptomPatterns = map[string]*regexp.Regexp{
	"pain":        regexp.MustCompile(`\bpain(s|ful)?\b`),
	"ache":        regexp.MustCompile(`\bach(e|es|ing|y)\b`),
	"hurt":        regexp.MustCompile(`\bhurt(s|ing)?\b`),
	"sore":        regexp.MustCompile(`\bsore(ness)?\b`),
	"fever":       regexp.MustCompile(`\bfever(ish)?\b`),
	"cough":       regexp.MustCompile(`\bcough(s|ing)?\b`),
	"headache":    regexp.MustCompile(`\bheadaches?\b`),
	"migraine":    regexp.MustCompile(`\bmigraines?\b`),
	"nausea":      regexp.MustCompile(`\bnause(a|ous|ated)\b`),
	"dizzy":       regexp.MustCompile(`\bdizz(y|iness)\b`),
	"fatigue":     regexp.MustCompile(`\bfatigued?\b|\bexhausted\b`),
	"swelling":    regexp.MustCompile(`\bswell(ing)?\b|\bswollen\b`),
	"rash":        regexp.MustCompile(`\brash(es)?\b`),
	"bleeding":    regexp.MustCompile(`\bbleed(ing)?\b`),
	"vomiting":    regexp.MustCompile(`\bvomit(ing|ed)?\b|\bthrowing\s+up\b`),
	"breath":      regexp.MustCompile(`\bbreath\w*\b`),
	"chest":       regexp.MustCompile(`\bchest\b`),
	"stomach":     regexp.MustCompile(`\bstomach\b`),
	"back":        regexp.MustCompile(`\bback\b`),
	"injury":      regexp.MustCompile(`\binjur(y|ies|ed)\b`),
	"infection":   regexp.MustCompile(`\binfect(ion|ed)\b`),
	"dehydration": regexp.MustCompile(`\bdehydrat(ion|ed)\b`),
	"numbness":    regexp.MustCompile(`\bnumb(ness)?\b`),
	"seizure":     regexp.MustCompile(`\bseizures?\b`),
	"palpitation": regexp.MustCompile(`\bpalpitations?\b`),
	"asthma":      regexp.MustCompile(`\basthma\b`),
	"wheezing":    regexp.MustCompile(`\bwheez(e|es|ing|y)\b`),
	"cold":        regexp.MustCompile(`\bcold\b|\brunny\s+nose\b`),
	"sick":        regexp.MustCompile(`\bsick\b`),
	"ill":         regexp.MustCompile(`\bill(ness)?\b`),
	"symptom":     regexp.MustCompile(`\bsymptoms?\b`),
	"unconscious": regexp.MustCompile(`\bunconscious\b|\bpassed\s+out\b|\bfainted\b`),
	"overdose":    regexp.MustCompile(`\boverdose\b`),
}

// injuryPatterns are symptom tags in their own right and also mark the
// complaint as injury-related for the risk assessor.
var injuryPatterns = map[string]*regexp.Regexp{
	"cut":      regexp.MustCompile(`\bcuts?\b|\blacerat(ion|ed)\b`),
	"bruise":   regexp.MustCompile(`\bbruis(e|es|ed|ing)\b|\bcontusion\b`),
	"burn":     regexp.MustCompile(`\bburn(s|ed|t)?\b`),
	"sprain":   regexp.MustCompile(`\bsprain(ed)?\b|\bstrain(ed)?\b`),
	"fracture": regexp.MustCompile(`\bfractur(e|ed)\b|\bbroken?\b|\bbroke\b`),
	"fall":     regexp.MustCompile(`\bfell\b|\bfall(en)?\b`),
}

var (
	bookingVerbs = regexp.MustCompile(`\b(book|schedule|confirm|take|choose|pick|select|go\s+with)\b|i'?ll\s+take`)
	drReference  = regexp.MustCompile(`\b(?:dr|doctor)\.?\s*\p{L}+`)
	ordinalRef   = regexp.MustCompile(`\b(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\b|\b(?:option|slot|number)\s*#?\s*\d{1,2}\b`)
	timeRef      = regexp.MustCompile(`\b\d{1,2}:\d{2}\b|\b\d{1,2}\s*(?:am|pm)\b`)
	bareNumber   = regexp.MustCompile(`^\s*\d{1,2}\s*$`)
)

// topicKeywords drives the redirect text for non-medical requests.
var topicKeywords = map[string]*regexp.Regexp{
	"entertainment": regexp.MustCompile(`\bmovies?\b|\bfilms?\b|\bconcerts?\b|\btickets?\b|\bshows?\b|\btheater\b`),
	"dining":        regexp.MustCompile(`\brestaurants?\b|\bdinner\b|\blunch\b|\breservation\b|\bfood\b|\btable\s+for\b`),
	"travel":        regexp.MustCompile(`\bflights?\b|\bhotels?\b|\bvacation\b|\btrip\b|\btravel\b`),
	"shopping":      regexp.MustCompile(`\bbuy\b|\bpurchase\b|\bshopping\b|\bstore\b|\bdeliver(y|ed)\b`),
	"weather":       regexp.MustCompile(`\bweather\b|\bforecast\b|\btemperature\s+outside\b|\brain(ing)?\b|\bsunny\b`),
}

var topicRedirects = map[string]string{
	"entertainment": "I'm a medical appointment assistant, so I can't help with entertainment bookings.",
	"dining":        "I'm a medical appointment assistant, so restaurant reservations are outside what I can do.",
	"travel":        "I'm a medical appointment assistant, so I can't help with travel plans.",
	"shopping":      "I'm a medical appointment assistant, so I can't help with shopping or orders.",
	"weather":       "I'm a medical appointment assistant, so I don't have weather information.",
	"other":         "I'm a medical appointment assistant, so that's outside what I can help with.",
}

const redirectSuffix = " If you have any health concerns or would like to see a doctor, I'm happy to help."

// IntakeStage classifies the turn's intent and extracts symptom tags or
// the doctor reference the scheduling stage needs.
type IntakeStage struct{}

func NewIntakeStage() *IntakeStage { return &IntakeStage{} }

func (s *IntakeStage) Name() string { return StageNameIntake }

func (s *IntakeStage) Skip(tc *TurnContext) bool { return false }

func (s *IntakeStage) Evaluate(ctx context.Context, tc *TurnContext) (*model.AgentResponse, error) {
	lower := strings.ToLower(tc.Message)

	if len(tc.Working.Slots) > 0 && bookingVerbs.MatchString(lower) && hasNameLikeToken(lower) {
		tc.Intent = model.IntentFollowUpBooking
		tc.DoctorRef = extractDoctorRef(lower)
		resp := model.NewAgentResponse(StageNameIntake, "Let me confirm that booking for you.", 0.9)
		return &resp, nil
	}

	if tags := ExtractSymptoms(lower); len(tags) > 0 {
		tc.Intent = model.IntentNewComplaint
		tc.Symptoms = tags
		resp := model.NewAgentResponse(StageNameIntake,
			"I understand you're not feeling well. Let me take a closer look at your symptoms.", 0.85).
			WithPayload("symptoms", tags)
		return &resp, nil
	}

	tc.Intent = model.IntentNonMedical
	tc.Topic = detectTopic(lower)
	tc.Halt()
	resp := model.NewAgentResponse(StageNameIntake, topicRedirects[tc.Topic]+redirectSuffix, 0.8).
		WithAction(model.ActionRedirect).
		WithPayload("topic", tc.Topic)
	return &resp, nil
}

// ExtractSymptoms returns the canonical symptom tags found in the message,
// deduplicated and ordered by first occurrence.
func ExtractSymptoms(lower string) []string {
	type hit struct {
		tag string
		pos int
	}
	var hits []hit
	for tag, re := range symptomPatterns {
		if loc := re.FindStringIndex(lower); loc != nil {
			hits = append(hits, hit{tag, loc[0]})
		}
	}
	for tag, re := range injuryPatterns {
		if loc := re.FindStringIndex(lower); loc != nil {
			hits = append(hits, hit{tag, loc[0]})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].tag < hits[j].tag
	})
	tags := make([]string, 0, len(hits))
	for _, h := range hits {
		tags = append(tags, h.tag)
	}
	return tags
}

// IsInjuryComplaint reports whether any of the tags describes an injury.
func IsInjuryComplaint(tags []string) bool {
	for _, t := range tags {
		if _, ok := injuryPatterns[t]; ok || t == "injury" || t == "bleeding" {
			return true
		}
	}
	return false
}

// hasNameLikeToken reports whether the message carries something that can
// identify a slot: a doctor reference, a roster surname, an ordinal, or a
// time string.
func hasNameLikeToken(lower string) bool {
	if drReference.MatchString(lower) || ordinalRef.MatchString(lower) ||
		timeRef.MatchString(lower) || bareNumber.MatchString(lower) {
		return true
	}
	return rosterSurnameRef.MatchString(lower)
}

// extractDoctorRef pulls the tightest doctor reference out of the message
// for the fuzzy matcher. Empty when the message identifies a slot some
// other way (ordinal, time).
func extractDoctorRef(lower string) string {
	if m := drReference.FindString(lower); m != "" {
		return m
	}
	if m := rosterSurnameRef.FindString(lower); m != "" {
		return m
	}
	return ""
}

func detectTopic(lower string) string {
	for _, topic := range []string{"entertainment", "dining", "travel", "shopping", "weather"} {
		if topicKeywords[topic].MatchString(lower) {
			return topic
		}
	}
	return "other"
}
