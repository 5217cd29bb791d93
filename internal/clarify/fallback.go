package clarify

import (
	"strconv"
	"strings"
)

// Request kinds for fallback question sets.
const (
	KindFlight  = "flight"
	KindHotel   = "hotel"
	KindGeneric = "generic"
)

const (
	fallbackWhy    = "This helps us find the best options for your trip."
	fallbackBudget = "Typical range: $100 - $800 per person"
)

var (
	flightWords = []string{"flight", "fly", "plane", "airline"}
	hotelWords  = []string{"hotel", "stay", "accommodation", "room"}
)

var fallbackSets = map[string][][2]string{
	KindFlight: {
		{"origin", "Where are you departing from (origin city)?"},
		{"destination", "Where are you flying to (destination city)?"},
		{"departure_date", "What is your departure date?"},
		{"travelers", "How many passengers?"},
		{"budget", "What is your budget per person?"},
	},
	KindHotel: {
		{"location", "Which city or area do you want to stay in?"},
		{"check_in", "What is your check-in date?"},
		{"check_out", "What is your check-out date?"},
		{"travelers", "How many guests?"},
		{"budget", "What is your budget per night?"},
	},
	KindGeneric: {
		{"destination", "Where do you want to travel?"},
		{"dates", "What are your travel dates?"},
		{"budget", "What is your total budget?"},
		{"travelers", "How many people are traveling?"},
		{"preferences", "Any specific preferences?"},
	},
}

// Kind detects whether an utterance asks for a flight, a hotel or
// something else. Flight wins when both appear.
func Kind(utterance string) string {
	lower := strings.ToLower(utterance)
	switch {
	case containsAny(lower, flightWords):
		return KindFlight
	case containsAny(lower, hotelWords):
		return KindHotel
	default:
		return KindGeneric
	}
}

// Fallback returns the fixed question set for an utterance, used when no
// model-generated questions are available.
func Fallback(utterance string) []Question {
	set := fallbackSets[Kind(utterance)]
	out := make([]Question, 0, len(set))
	for i, q := range set {
		out = append(out, Question{
			Question: q[1],
			Field:    q[0],
			Step:     i + 1,
		})
	}
	return Decorate(out)
}

// Decorate fills step numbers and display hints that generated
// questions omit.
func Decorate(qs []Question) []Question {
	for i := range qs {
		if qs[i].Step == 0 {
			qs[i].Step = i + 1
		}
		if qs[i].ID == "" {
			qs[i].ID = "q" + strconv.Itoa(i+1)
		}
		if qs[i].WhyAsking == "" {
			qs[i].WhyAsking = fallbackWhy
		}
		if qs[i].BudgetInfo == "" {
			qs[i].BudgetInfo = fallbackBudget
		}
	}
	return qs
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
