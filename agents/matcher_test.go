package agents

import (
	"errors"
	"testing"
	"time"

	"github.com/vinodyk/patient-appointments/pkg/model"
)

func TestNormalizeDoctorRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dr. Michael Chen", "michael chen"},
		{"dr chen", "chen"},
		{"DOCTOR Chen!", "chen"},
		{"dr. sarah  johnson", "sarah johnson"},
		{"chen", "chen"},
		{"Dr.", ""},
	}
	for _, tt := range tests {
		if got := normalizeDoctorRef(tt.in); got != tt.want {
			t.Errorf("normalizeDoctorRef(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"chen", "chen", 0},
		{"chn", "chen", 1},
		{"chen", "", 4},
		{"", "chen", 4},
		{"smith", "smyth", 1},
		{"johnson", "chen", 5},
	}
	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMatchDoctor(t *testing.T) {
	candidates := []string{"Dr. Sarah Johnson", "Dr. Michael Chen", "Dr. Emily Rodriguez"}

	tests := []struct {
		name      string
		reference string
		wantIdx   int
		wantScore float64
		wantErr   bool
		wantTie   bool
	}{
		{
			name:      "surname containment",
			reference: "dr chen",
			wantIdx:   1,
			wantScore: 1.0,
		},
		{
			name:      "first name containment",
			reference: "dr sarah",
			wantIdx:   0,
			wantScore: 1.0,
		},
		{
			name:      "misspelling above threshold",
			reference: "dr chn",
			wantIdx:   1,
			wantScore: 0.75,
		},
		{
			name:      "unknown doctor rejected",
			reference: "dr. smith",
			wantErr:   true,
		},
		{
			name:      "empty reference rejected",
			reference: "",
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, score, err := matchDoctor(tt.reference, candidates)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("matchDoctor(%q) error = nil, want AmbiguousMatchError", tt.reference)
				}
				var ambErr *AmbiguousMatchError
				if !errors.As(err, &ambErr) {
					t.Fatalf("matchDoctor(%q) error = %T, want *AmbiguousMatchError", tt.reference, err)
				}
				if ambErr.Tie != tt.wantTie {
					t.Errorf("Tie = %v, want %v", ambErr.Tie, tt.wantTie)
				}
				return
			}
			if err != nil {
				t.Fatalf("matchDoctor(%q) error = %v", tt.reference, err)
			}
			if idx != tt.wantIdx {
				t.Errorf("matchDoctor(%q) idx = %d, want %d", tt.reference, idx, tt.wantIdx)
			}
			if score < tt.wantScore-1e-9 || score > tt.wantScore+1e-9 {
				t.Errorf("matchDoctor(%q) score = %v, want %v", tt.reference, score, tt.wantScore)
			}
		})
	}
}

func TestMatchDoctor_TieRejected(t *testing.T) {
	candidates := []string{"Dr. John Chen", "Dr. Mary Chen"}

	_, _, err := matchDoctor("dr chen", candidates)
	if err == nil {
		t.Fatal("matchDoctor() error = nil, want tie rejection")
	}
	var ambErr *AmbiguousMatchError
	if !errors.As(err, &ambErr) {
		t.Fatalf("matchDoctor() error = %T, want *AmbiguousMatchError", err)
	}
	if !ambErr.Tie {
		t.Error("Tie = false, want true")
	}
}

func TestMatchDoctor_ClearWinnerAmongSimilar(t *testing.T) {
	// Smith wins by containment; Smyth scores 0.8 on similarity but sits
	// well outside the tie margin.
	candidates := []string{"Dr. Jane Smyth", "Dr. John Smith"}

	idx, score, err := matchDoctor("dr smith", candidates)
	if err != nil {
		t.Fatalf("matchDoctor() error = %v", err)
	}
	if idx != 1 {
		t.Errorf("idx = %d, want 1", idx)
	}
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0", score)
	}
}

func TestMatchDoctor_NoCandidates(t *testing.T) {
	_, _, err := matchDoctor("dr chen", nil)
	if err == nil {
		t.Fatal("matchDoctor() error = nil, want AmbiguousMatchError")
	}
}

func testSlots() []model.AppointmentSlot {
	return []model.AppointmentSlot{
		{Date: "2025-03-11", Time: "09:00", Doctor: "Dr. Sarah Johnson", Specialty: "general_practice", Available: true},
		{Date: "2025-03-11", Time: "10:00", Doctor: "Dr. Michael Chen", Specialty: "general_practice", Available: true},
		{Date: "2025-03-12", Time: "14:00", Doctor: "Dr. Michael Chen", Specialty: "general_practice", Available: true},
	}
}

func TestSelectSlot(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		message string
		wantIdx int
		wantOK  bool
	}{
		{"ordinal word", "I'll take the second one", 1, true},
		{"option number", "option 3 please", 2, true},
		{"bare number", "2", 1, true},
		{"clock time", "the 10:00 slot works", 1, true},
		{"meridiem time", "2pm on wednesday", 2, true},
		{"tomorrow", "tomorrow works best", 0, true},
		{"weekday", "wednesday please", 2, true},
		{"out of range ordinal", "option 9", -1, false},
		{"no cue", "book me with dr chen", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := selectSlot(testSlots(), tt.message, now)
			if ok != tt.wantOK {
				t.Fatalf("selectSlot(%q) ok = %v, want %v", tt.message, ok, tt.wantOK)
			}
			if ok && idx != tt.wantIdx {
				t.Errorf("selectSlot(%q) idx = %d, want %d", tt.message, idx, tt.wantIdx)
			}
		})
	}
}

func TestSelectSlot_Empty(t *testing.T) {
	if _, ok := selectSlot(nil, "first", time.Now()); ok {
		t.Error("selectSlot(nil) ok = true, want false")
	}
}
