package agents

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

// Matching thresholds. A candidate below matchThreshold is never accepted;
// two distinct candidates within tieMargin of each other are rejected as
// ambiguous rather than guessed between.
const (
	matchThreshold = 0.75
	tieMargin      = 0.05
)

// AmbiguousMatchError reports that a doctor reference resolved to zero or
// to several candidates. It is a disambiguation outcome, not a failure.
type AmbiguousMatchError struct {
	Reference  string
	Candidates []string
	// Tie is true when several candidates scored too close to choose.
	Tie bool
}

func (e *AmbiguousMatchError) Error() string {
	if e.Tie {
		return fmt.Sprintf("doctor reference %q matches several of: %s", e.Reference, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("doctor reference %q matches none of: %s", e.Reference, strings.Join(e.Candidates, ", "))
}

var titleWords = map[string]bool{"dr": true, "doctor": true}

var nonLetter = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// normalizeDoctorRef lowercases a reference, strips titles and punctuation,
// and collapses whitespace.
func normalizeDoctorRef(s string) string {
	s = strings.ToLower(s)
	s = nonLetter.ReplaceAllString(s, " ")
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if titleWords[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// matchDoctor resolves a free-text reference against candidate doctor
// names. It returns the index and score of the single candidate that wins,
// or an AmbiguousMatchError when zero candidates clear the threshold or
// the top two are too close to call.
func matchDoctor(reference string, candidates []string) (int, float64, error) {
	ref := normalizeDoctorRef(reference)
	scores := make([]float64, len(candidates))
	for i, cand := range candidates {
		scores[i] = scoreCandidate(ref, cand)
	}

	best, second := -1, -1
	for i, s := range scores {
		if best == -1 || s > scores[best] {
			second = best
			best = i
		} else if second == -1 || s > scores[second] {
			second = i
		}
	}

	if best == -1 || scores[best] < matchThreshold {
		return -1, 0, &AmbiguousMatchError{Reference: reference, Candidates: candidates}
	}
	if second != -1 && scores[second] >= matchThreshold && scores[best]-scores[second] < tieMargin {
		return -1, 0, &AmbiguousMatchError{Reference: reference, Candidates: candidates, Tie: true}
	}
	return best, scores[best], nil
}

// scoreCandidate scores a normalized reference against one candidate name:
// exact token containment wins outright, otherwise the better Levenshtein
// similarity against the surname or the full name.
func scoreCandidate(ref, candidate string) float64 {
	cand := normalizeDoctorRef(candidate)
	if ref == "" || cand == "" {
		return 0
	}
	candTokens := strings.Fields(cand)
	for _, rt := range strings.Fields(ref) {
		for _, ct := range candTokens {
			if rt == ct {
				return 1.0
			}
		}
	}
	surname := candTokens[len(candTokens)-1]
	score := similarity(ref, surname)
	if s := similarity(ref, cand); s > score {
		score = s
	}
	return score
}

// similarity is normalized Levenshtein similarity in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein is the classic two-row edit distance.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

var (
	ordinalWords = map[string]int{
		"first": 1, "1st": 1,
		"second": 2, "2nd": 2,
		"third": 3, "3rd": 3,
		"fourth": 4, "4th": 4,
		"fifth": 5, "5th": 5,
	}
	ordinalWordRef = regexp.MustCompile(`\b(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\b`)
	slotNumberRef  = regexp.MustCompile(`\b(?:option|slot|number)\s*#?\s*(\d{1,2})\b`)
	clockTimeRef   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	meridiemRef    = regexp.MustCompile(`\b(\d{1,2})\s*(am|pm)\b`)
)

// selectSlot picks a slot by an explicit cue in the message: an ordinal
// ("option 2", "the first one"), a time ("10:00", "2pm"), or a date word
// ("today", "tomorrow", a weekday). It reports false when the message
// carries no explicit cue; defaulting is the caller's decision.
func selectSlot(slots []model.AppointmentSlot, message string, now time.Time) (int, bool) {
	if len(slots) == 0 {
		return -1, false
	}
	lower := strings.ToLower(message)

	n := 0
	if m := slotNumberRef.FindStringSubmatch(lower); m != nil {
		fmt.Sscanf(m[1], "%d", &n)
	} else if m := ordinalWordRef.FindString(lower); m != "" {
		n = ordinalWords[m]
	} else if bareNumber.MatchString(lower) {
		fmt.Sscanf(strings.TrimSpace(lower), "%d", &n)
	}
	if n >= 1 && n <= len(slots) {
		return n - 1, true
	}

	if hhmm, ok := timeFromMessage(lower); ok {
		for i, s := range slots {
			if strings.HasPrefix(s.Time, hhmm) || s.Time == hhmm+":00" {
				return i, true
			}
		}
	}

	if date, ok := dateFromMessage(lower, now); ok {
		for i, s := range slots {
			if s.Date == date {
				return i, true
			}
		}
	}
	if wd, ok := weekdayFromMessage(lower); ok {
		for i, s := range slots {
			if t, err := time.Parse(time.DateOnly, s.Date); err == nil && t.Weekday() == wd {
				return i, true
			}
		}
	}

	return -1, false
}

// timeFromMessage extracts an "HH" hour prefix ("14") or an exact "HH:MM"
// from the message.
func timeFromMessage(lower string) (string, bool) {
	if m := clockTimeRef.FindStringSubmatch(lower); m != nil {
		hh := m[1]
		if len(hh) == 1 {
			hh = "0" + hh
		}
		return hh + ":" + m[2], true
	}
	if m := meridiemRef.FindStringSubmatch(lower); m != nil {
		h := 0
		fmt.Sscanf(m[1], "%d", &h)
		if m[2] == "pm" && h < 12 {
			h += 12
		}
		if m[2] == "am" && h == 12 {
			h = 0
		}
		return fmt.Sprintf("%02d", h), true
	}
	return "", false
}

func dateFromMessage(lower string, now time.Time) (string, bool) {
	if strings.Contains(lower, "today") {
		return now.Format(time.DateOnly), true
	}
	if strings.Contains(lower, "tomorrow") {
		return now.AddDate(0, 0, 1).Format(time.DateOnly), true
	}
	return "", false
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func weekdayFromMessage(lower string) (time.Weekday, bool) {
	for name, wd := range weekdays {
		if strings.Contains(lower, name) {
			return wd, true
		}
	}
	return 0, false
}
