package clarify

import (
	"strings"
	"testing"

	"github.com/ppiankov/intentguard/internal/model"
)

func token(step int, action model.ActionType, missing ...string) model.IntentToken {
	return model.IntentToken{
		Action:        action,
		StepNumber:    step,
		Description:   "Step description",
		DataComplete:  len(missing) == 0,
		MissingFields: missing,
	}
}

func TestQuestionsPriorityOrder(t *testing.T) {
	tokens := []model.IntentToken{
		token(1, model.BookFlight, "website", "date"),
		token(2, model.BookHotel, "check_in", "date", "room_view"),
	}
	qs := Questions(tokens, nil)

	want := []string{"step_1_date", "step_2_date", "step_2_check_in", "step_1_website", "step_2_room_view"}
	if len(qs) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(qs))
	}
	for i, q := range qs {
		if q.ID != want[i] {
			t.Errorf("question %d: expected %s, got %s", i, want[i], q.ID)
		}
	}
}

func TestQuestionsCapped(t *testing.T) {
	var tokens []model.IntentToken
	for i := 1; i <= 4; i++ {
		tokens = append(tokens, token(i, model.BookTrain, "origin", "destination", "date", "time"))
	}
	qs := Questions(tokens, nil)
	if len(qs) != MaxQuestions {
		t.Fatalf("expected %d questions, got %d", MaxQuestions, len(qs))
	}
	if qs[0].Field != "date" || qs[MaxQuestions-1].Field != "origin" {
		t.Errorf("unexpected ordering: first %s, last %s", qs[0].Field, qs[MaxQuestions-1].Field)
	}
}

func TestQuestionsSkipCompleteTokens(t *testing.T) {
	qs := Questions([]model.IntentToken{token(1, model.BookFlight)}, nil)
	if len(qs) != 0 {
		t.Errorf("expected no questions, got %d", len(qs))
	}
}

func TestNewQuestionTemplate(t *testing.T) {
	q := NewQuestion("time", 3, model.BookRestaurant, strings.Repeat("x", 150), "Typical Budget")
	if q.Question != "For Step 3, is morning time (9:00 AM) suitable?" {
		t.Errorf("unexpected question %q", q.Question)
	}
	if q.Context != "This is for: "+strings.Repeat("x", 100)+"..." {
		t.Errorf("expected truncated context, got %q", q.Context)
	}
	if q.BudgetInfo != "Typical Budget" || q.Action != model.BookRestaurant {
		t.Errorf("unexpected metadata %+v", q)
	}
}

func TestNewQuestionUnknownField(t *testing.T) {
	q := NewQuestion("seat_type", 2, model.BookTrain, "Ride", "")
	if q.Question != "Is the suggested seat_type acceptable for Step 2?" {
		t.Errorf("unexpected question %q", q.Question)
	}
}

func TestNormalizeAnswer(t *testing.T) {
	tests := map[string]string{
		"y":          "yes",
		" YES ":      "yes",
		"n":          "no",
		"No":         "no",
		"2026-03-20": "2026-03-20",
		"  Mumbai ":  "Mumbai",
	}
	for in, want := range tests {
		if got := NormalizeAnswer(in); got != want {
			t.Errorf("NormalizeAnswer(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Book a flight to Goa", KindFlight},
		{"I want to fly and stay in a hotel", KindFlight},
		{"Find a room near the beach", KindHotel},
		{"Plan a weekend in Jaipur", KindGeneric},
	}
	for _, tt := range tests {
		if got := Kind(tt.text); got != tt.want {
			t.Errorf("Kind(%q): expected %s, got %s", tt.text, tt.want, got)
		}
	}
}

func TestFallback(t *testing.T) {
	qs := Fallback("Book a hotel in Mumbai")
	if len(qs) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(qs))
	}
	if qs[0].ID != "q1" || qs[0].Field != "location" || qs[0].Step != 1 {
		t.Errorf("unexpected first question %+v", qs[0])
	}
	if qs[4].ID != "q5" || qs[4].Field != "budget" {
		t.Errorf("unexpected last question %+v", qs[4])
	}
	if qs[0].WhyAsking == "" || qs[0].BudgetInfo == "" {
		t.Error("expected display hints")
	}
}

func TestLoopBounded(t *testing.T) {
	l := NewLoop(nil, 5)
	incomplete := []model.IntentToken{token(1, model.BookFlight, "date")}

	for round := 1; round <= MaxRounds; round++ {
		state, qs := l.Next(incomplete)
		if state != StateNeedInfo || len(qs) != 1 {
			t.Fatalf("round %d: expected NEED_INFO with 1 question, got %s %d", round, state, len(qs))
		}
		l.Answer(qs[0], "n")
	}
	if state, _ := l.Next(incomplete); state != StateReady {
		t.Errorf("expected READY after %d rounds, got %s", MaxRounds, state)
	}
	if l.Round() != MaxRounds {
		t.Errorf("expected %d rounds, got %d", MaxRounds, l.Round())
	}
	answers := l.Answers()
	if len(answers) != 2 || answers[0].Answer != "no" || answers[0].Field != "date" {
		t.Errorf("unexpected answers %+v", answers)
	}
}

func TestLoopReadyWhenComplete(t *testing.T) {
	l := NewLoop(nil, MaxRounds)
	state, qs := l.Next([]model.IntentToken{token(1, model.BookFlight)})
	if state != StateReady || qs != nil {
		t.Errorf("expected READY with no questions, got %s %v", state, qs)
	}
	if l.Round() != 0 {
		t.Errorf("expected no rounds used, got %d", l.Round())
	}
}
