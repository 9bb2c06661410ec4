// Package security screens inbound patient messages before they reach the
// clinical pipeline. Detection is entirely data-driven: weighted regex tables
// per abuse category plus a crisis keyword set that outranks every other
// verdict.
package security

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

// Category labels the kind of abuse a pattern detects.
type Category string

const (
	CategoryPromptInjection Category = "prompt_injection"
	CategoryDataExtraction  Category = "data_extraction"
	CategoryMedicalFraud    Category = "medical_fraud"
	CategoryHarassment      Category = "harassment"
)

// Pattern defines a detection pattern with its category and weight.
type Pattern struct {
	Regex       *regexp.Regexp
	Category    Category
	Weight      float64
	Description string
}

// ScreenResult describes the outcome for one message.
type ScreenResult struct {
	Verdict         model.Verdict `json:"verdict"`
	Score           float64       `json:"score"`
	Category        Category      `json:"category,omitempty"`
	MatchedPatterns []string      `json:"matched_patterns,omitempty"`
	Crisis          bool          `json:"crisis"`
}

// MaxMessageSize is the maximum accepted message size (10KB). Longer messages
// are rejected upstream; the screen truncates its input to bound regex cost.
const MaxMessageSize = 10 * 1024

// DefaultBlockThreshold blocks messages scoring at or above it.
const DefaultBlockThreshold = 0.8

// Screen classifies messages as ALLOW, BLOCK, or CRISIS. It is stateless and
// safe for concurrent use.
type Screen struct {
	blockThreshold float64
	patterns       []Pattern
	crisisTerms    []string
}

// NewScreen creates a screen with the given block threshold. Thresholds
// outside (0,1] fall back to DefaultBlockThreshold.
func NewScreen(blockThreshold float64) *Screen {
	if blockThreshold <= 0 || blockThreshold > 1 {
		blockThreshold = DefaultBlockThreshold
	}
	s := &Screen{blockThreshold: blockThreshold}
	s.initPatterns()
	return s
}

func (s *Screen) initPatterns() {
	s.patterns = []Pattern{
		// Prompt injection
		{
			Regex:       regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above)\s+instructions?`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "ignore previous instructions",
		},
		{
			Regex:       regexp.MustCompile(`(?i)disregard\s+(your\s+|all\s+)?instructions?`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "disregard instructions",
		},
		{
			Regex:       regexp.MustCompile(`(?i)forget\s+(everything|all|your\s+instructions?)`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "forget everything",
		},
		{
			Regex:       regexp.MustCompile(`(?i)new\s+instructions?:?\s`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "new instructions",
		},
		{
			Regex:       regexp.MustCompile(`(?i)system\s+prompt`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "system prompt probe",
		},
		{
			Regex:       regexp.MustCompile(`(?i)you\s+are\s+now\s`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "you are now",
		},
		{
			Regex:       regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "pretend to be",
		},
		{
			Regex:       regexp.MustCompile(`(?i)act\s+as\s+(if|though|a|an)\b`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "act as",
		},
		{
			Regex:       regexp.MustCompile(`(?i)developer\s+mode`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "developer mode",
		},
		{
			Regex:       regexp.MustCompile(`(?i)jailbreak`),
			Category:    CategoryPromptInjection,
			Weight:      0.6,
			Description: "jailbreak keyword",
		},

		// Data extraction
		{
			Regex:       regexp.MustCompile(`(?i)(show|repeat|print|reveal)\s+(me\s+)?(your|the)\s+(prompt|instructions?)`),
			Category:    CategoryDataExtraction,
			Weight:      0.8,
			Description: "prompt disclosure request",
		},
		{
			Regex:       regexp.MustCompile(`(?i)other\s+patients?`),
			Category:    CategoryDataExtraction,
			Weight:      0.8,
			Description: "other patients probe",
		},
		{
			Regex:       regexp.MustCompile(`(?i)patient\s+records?`),
			Category:    CategoryDataExtraction,
			Weight:      0.8,
			Description: "patient records probe",
		},
		{
			Regex:       regexp.MustCompile(`(?i)all\s+patients?`),
			Category:    CategoryDataExtraction,
			Weight:      0.8,
			Description: "all patients probe",
		},
		{
			Regex:       regexp.MustCompile(`(?i)everyone'?s\s+appointments?`),
			Category:    CategoryDataExtraction,
			Weight:      0.8,
			Description: "appointment list probe",
		},

		// Medical fraud
		{
			Regex:       regexp.MustCompile(`(?i)prescribe\s+me\b`),
			Category:    CategoryMedicalFraud,
			Weight:      0.9,
			Description: "prescription request",
		},
		{
			Regex:       regexp.MustCompile(`(?i)give\s+me\s+a\s+prescription`),
			Category:    CategoryMedicalFraud,
			Weight:      0.9,
			Description: "prescription request",
		},
		{
			Regex:       regexp.MustCompile(`(?i)prescription\s+without\s+(a\s+)?(seeing|visit|doctor|appointment)`),
			Category:    CategoryMedicalFraud,
			Weight:      0.9,
			Description: "prescription without visit",
		},
		{
			Regex:       regexp.MustCompile(`(?i)controlled\s+substance`),
			Category:    CategoryMedicalFraud,
			Weight:      0.9,
			Description: "controlled substance request",
		},
		{
			Regex:       regexp.MustCompile(`(?i)fake\s+(a\s+)?diagnos[ie]s`),
			Category:    CategoryMedicalFraud,
			Weight:      0.9,
			Description: "fake diagnosis request",
		},
		{
			Regex:       regexp.MustCompile(`(?i)falsify`),
			Category:    CategoryMedicalFraud,
			Weight:      0.9,
			Description: "falsification request",
		},

		// Harassment
		{
			Regex:       regexp.MustCompile(`(?i)(you|this\s+system)\s+(are|is)\s+(stupid|useless|garbage|worthless)`),
			Category:    CategoryHarassment,
			Weight:      0.7,
			Description: "abusive language",
		},
		{
			Regex:       regexp.MustCompile(`(?i)(f+u+c+k+|sh[i1]t+)\s+(you|this|off)`),
			Category:    CategoryHarassment,
			Weight:      0.7,
			Description: "profanity directed at staff",
		},
	}

	s.crisisTerms = []string{
		"suicide",
		"kill myself",
		"end my life",
		"hurt myself",
		"self-harm",
		"self harm",
		"want to die",
		"no reason to live",
		"overdose on purpose",
	}
}

// Evaluate screens one message. Pure function: no stored state is consulted
// or mutated.
func (s *Screen) Evaluate(message string) ScreenResult {
	result := ScreenResult{
		Verdict:         model.VerdictAllow,
		MatchedPatterns: []string{},
	}

	if message == "" {
		return result
	}

	if len(message) > MaxMessageSize {
		message = message[:MaxMessageSize]
	}

	normalized := normalizeInput(message)

	// Crisis detection outranks everything else and never blocks.
	lower := strings.ToLower(normalized)
	for _, term := range s.crisisTerms {
		if strings.Contains(lower, term) {
			result.Verdict = model.VerdictCrisis
			result.Crisis = true
			result.Score = 1.0
			result.MatchedPatterns = append(result.MatchedPatterns, term)
			return result
		}
	}

	for _, p := range s.patterns {
		if p.Regex.MatchString(normalized) {
			result.MatchedPatterns = append(result.MatchedPatterns, p.Description)
			if p.Weight > result.Score {
				result.Score = p.Weight
				result.Category = p.Category
			}
		}
	}

	// Additional distinct matches raise the score.
	if n := len(result.MatchedPatterns); n > 1 {
		result.Score = minFloat(1.0, result.Score+0.1*float64(n-1))
	}

	result.Score = minFloat(1.0, result.Score+suspiciousIndicators(normalized))

	if result.Score >= s.blockThreshold {
		result.Verdict = model.VerdictBlock
	}
	return result
}

// BlockThreshold reports the configured block threshold.
func (s *Screen) BlockThreshold() float64 {
	return s.blockThreshold
}

// suspiciousIndicators scores structural oddities that accompany abuse
// attempts: heavy special characters or sustained shouting.
func suspiciousIndicators(message string) float64 {
	var score float64

	runes := []rune(message)
	if len(runes) == 0 {
		return 0
	}

	special := 0
	letters := 0
	upper := 0
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsDigit(r), unicode.IsSpace(r):
		default:
			special++
		}
	}

	if float64(special)/float64(len(runes)) > 0.35 {
		score += 0.2
	}
	if len(runes) >= 20 && letters > 0 && float64(upper)/float64(letters) > 0.7 {
		score += 0.2
	}
	return score
}

// normalizeInput strips zero-width characters used to evade pattern matching
// and collapses runs of spaces and tabs.
func normalizeInput(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\u200b' || r == '\u200c' || r == '\u200d' ||
			r == '\ufeff' || r == '\u00ad' || r == '\u2060' {
			continue
		}
		b.WriteRune(r)
	}
	return spaceRuns.ReplaceAllString(b.String(), " ")
}

var spaceRuns = regexp.MustCompile(`[ \t]+`)

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
