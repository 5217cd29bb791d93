// Package clarify turns incomplete intent tokens into clarification
// questions and bounds how many rounds of them a request may take.
package clarify

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/schema"
)

// MaxQuestions caps the questions asked in one round.
const MaxQuestions = 10

// Question is one clarification prompt tied to a token field.
type Question struct {
	ID              string           `json:"id"`
	Question        string           `json:"question"`
	Field           string           `json:"field"`
	Step            int              `json:"step"`
	Action          model.ActionType `json:"action_type,omitempty"`
	Context         string           `json:"context,omitempty"`
	WhyAsking       string           `json:"why_asking,omitempty"`
	BudgetInfo      string           `json:"budget_info,omitempty"`
	SuggestedAnswer string           `json:"suggested_answer,omitempty"`
}

// FieldPriority orders missing fields; unlisted fields sort last.
var FieldPriority = map[string]int{
	"date":            1,
	"time":            2,
	"price":           3,
	"origin":          4,
	"destination":     5,
	"location":        6,
	"hotel_name":      7,
	"check_in":        8,
	"check_out":       9,
	"restaurant_name": 10,
	"attraction_name": 11,
	"website":         12,
}

const unlistedPriority = 99

func priority(field string) int {
	if p, ok := FieldPriority[field]; ok {
		return p
	}
	return unlistedPriority
}

type template struct {
	question  string // formatted with the step number
	context   string
	why       string
	suggested string
}

var templates = map[string]template{
	"time": {
		"For Step %d, is morning time (9:00 AM) suitable?", "This is for",
		"We need an exact time to create a valid booking token. This ensures proper scheduling and availability checks.",
		"Answer 'yes' to confirm, 'no' to suggest different time, or type your preferred time (e.g., '2:30 PM')",
	},
	"date": {
		"Should Step %d happen on the first day of your trip?", "Activity",
		"Exact dates help avoid conflicts and ensure all bookings are properly sequenced.",
		"Answer 'yes' to confirm, 'no' for different date, or type the specific date (e.g., 'December 15, 2026')",
	},
	"price": {
		"Is a budget of $100 reasonable for Step %d?", "For",
		"Budget information helps filter options and ensures we stay within your spending limits.",
		"Answer 'yes' to confirm, 'no' for different budget, or type your budget (e.g., '$250' or '€150')",
	},
	"website": {
		"Should we use Booking.com for Step %d?", "Booking",
		"Knowing the exact platform helps generate the correct booking URL and ensures compatibility.",
		"Answer 'yes' to use this site, 'no' to skip, or type preferred website (e.g., 'Expedia.com')",
	},
	"origin": {
		"Will Step %d start from your hotel location?", "Travel details",
		"The departure point is essential for accurate travel time and route planning.",
		"Answer 'yes' to confirm, 'no' for different origin, or type the location (e.g., 'Tokyo Narita Airport')",
	},
	"destination": {
		"Is the destination for Step %d the city center?", "Travel destination",
		"The arrival location is needed to complete transportation booking and estimate costs.",
		"Answer 'yes' to confirm, 'no' for different destination, or type the location",
	},
	"location": {
		"Do you want Step %d in the city center?", "Location details",
		"A precise location ensures accurate directions and helps with making reservations.",
		"Answer 'yes' to confirm, or provide the exact address/location name",
	},
	"hotel_name": {
		"Should we look for mid-range hotels for Step %d?", "Hotel details",
		"The specific hotel name is required for making a reservation.",
		"Answer 'yes' for this hotel, 'no' to skip, or type the hotel name",
	},
	"restaurant_name": {
		"Do you want to dine at a popular local restaurant for Step %d?", "Dining at",
		"Restaurant name is needed for reservation systems and availability checks.",
		"Answer 'yes' to confirm, or type the restaurant name you prefer",
	},
	"attraction_name": {
		"Do you want to visit the most popular attraction for Step %d?", "Visiting",
		"The specific attraction name helps us find ticket booking information.",
		"Answer 'yes' to confirm, or type the attraction name",
	},
	"check_in": {
		"Will you check in on the first day for Step %d?", "Hotel check-in",
		"Check-in date is required for hotel reservations.",
		"Answer 'yes' to confirm, or type the check-in date",
	},
	"check_out": {
		"Will you check out on the final day for Step %d?", "Hotel check-out",
		"Check-out date is required to complete hotel reservation.",
		"Answer 'yes' to confirm, or type the check-out date",
	},
}

// NewQuestion builds the question for one missing field of one step.
func NewQuestion(field string, step int, action model.ActionType, description, budgetInfo string) Question {
	t, ok := templates[field]
	if !ok {
		t = template{
			question:  "Is the suggested " + field + " acceptable for Step %d?",
			context:   "Details",
			why:       fmt.Sprintf("This %s is required to generate a complete intent token.", field),
			suggested: "Answer 'yes', 'no', or provide specific details",
		}
	}
	return Question{
		ID:              fmt.Sprintf("step_%d_%s", step, field),
		Question:        fmt.Sprintf(t.question, step),
		Field:           field,
		Step:            step,
		Action:          action,
		Context:         t.context + ": " + truncate(description, 100) + "...",
		WhyAsking:       t.why,
		BudgetInfo:      budgetInfo,
		SuggestedAnswer: t.suggested,
	}
}

// Questions lists questions for every missing field of every incomplete
// token, ordered by field priority then step, capped at MaxQuestions.
func Questions(tokens []model.IntentToken, reg *schema.Registry) []Question {
	if reg == nil {
		reg = schema.Default()
	}
	type missing struct {
		tok   *model.IntentToken
		field string
	}
	var all []missing
	for i := range tokens {
		tok := &tokens[i]
		if tok.DataComplete {
			continue
		}
		for _, f := range tok.MissingFields {
			all = append(all, missing{tok: tok, field: f})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		pi, pj := priority(all[i].field), priority(all[j].field)
		if pi != pj {
			return pi < pj
		}
		return all[i].tok.StepNumber < all[j].tok.StepNumber
	})
	if len(all) > MaxQuestions {
		all = all[:MaxQuestions]
	}

	out := make([]Question, 0, len(all))
	for _, m := range all {
		out = append(out, NewQuestion(m.field, m.tok.StepNumber, m.tok.Action, m.tok.Description, reg.BudgetDisplay(m.tok.Action)))
	}
	return out
}

// NormalizeAnswer trims an answer and expands y/n to yes/no.
func NormalizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	switch strings.ToLower(answer) {
	case "yes", "y":
		return "yes"
	case "no", "n":
		return "no"
	}
	return answer
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
