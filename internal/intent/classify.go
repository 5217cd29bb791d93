// Package intent turns plan steps into schema-checked intent tokens.
package intent

import (
	"regexp"
	"strings"

	"github.com/ppiankov/intentguard/internal/model"
)

// Rule pairs a keyword pattern with the action it selects.
type Rule struct {
	Action model.ActionType
	Match  *regexp.Regexp
}

func keywords(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

// Rules is the ordered step classification table. First match wins.
// Keywords match whole words with their inflections, so "business"
// never reads as "bus" and "display" never reads as "pay".
var Rules = []Rule{
	{model.BookFlight, keywords(`flights?`, `fly`, `flying`, `flies`, `flown`, `airplanes?`)},
	{model.BookTrain, keywords(`trains?`, `rail\w*`, `shinkansen`)},
	{model.BookHotel, keywords(`hotels?`, `accommodations?`, `check(?:ing)?[- ]in`)},
	{model.BookRestaurant, keywords(`restaurants?`, `din(?:e|ed|es|ing)`, `dinners?`, `lunch\w*`, `breakfasts?`, `cafes?`)},
	{model.BookAttraction, keywords(`ticket\w*`, `attractions?`, `museums?`, `tour\w*`, `temples?`, `shrines?`)},
	{model.BookTransport, keywords(`taxis?`, `uber`, `transport\w*`, `bus`, `buses`)},
	{model.MakePayment, keywords(`pay`, `pays`, `paying`, `paid`, `payments?`)},
}

// Classify maps a step description to an action type. Steps matching no
// rule are GENERAL_ACTION.
func Classify(description string) model.ActionType {
	for _, r := range Rules {
		if r.Match.MatchString(description) {
			return r.Action
		}
	}
	return model.GeneralAction
}

// PrimaryRules detects the request-level action from the user's own words.
var PrimaryRules = []Rule{
	{model.BookFlight, keywords(`flights?`, `fly`, `flying`, `airplanes?`, `planes?`, `airlines?`)},
	{model.BookHotel, keywords(`hotels?`, `accommodations?`, `stay`, `rooms?`)},
	{model.BookTrain, keywords(`trains?`, `rail\w*`)},
	{model.BookRestaurant, keywords(`restaurants?`, `dinner`, `lunch`)},
}

// PrimaryAction returns the action named by an utterance, if any. When
// present it overrides per-step classification.
func PrimaryAction(utterance string) (model.ActionType, bool) {
	for _, r := range PrimaryRules {
		if r.Match.MatchString(utterance) {
			return r.Action, true
		}
	}
	return "", false
}
