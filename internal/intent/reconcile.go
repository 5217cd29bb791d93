package intent

import (
	"strings"

	"github.com/ppiankov/intentguard/internal/model"
)

// canonical maps answer field names to canonical token fields. Checked in
// order; an answer fills at most one canonical field.
var canonical = []struct {
	field   string
	needles []string
}{
	{"date", []string{"date", "when", "check_in", "check_out", "checkin", "checkout"}},
	{"origin", []string{"origin", "departure", "departing", "from"}},
	{"destination", []string{"destination", "location", "where", "city"}},
	{"budget", []string{"budget", "cost"}},
	{"travelers", []string{"traveler", "people", "guest", "person", "pax"}},
	{"preferences", []string{"preference", "requirement", "special", "note"}},
}

// CanonicalField returns the canonical field an answer's field name maps to.
func CanonicalField(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, c := range canonical {
		for _, n := range c.needles {
			if strings.Contains(lower, n) {
				return c.field, true
			}
		}
	}
	return "", false
}

// Reconcile merges clarification answers and model-recommended booking
// details into a copy of tok, then rescores it.
//
// Answers never override a populated field and are also kept under their
// own name. Booking details only fill absent fields, except price, which
// always wins.
func (g *Generator) Reconcile(tok model.IntentToken, answers []model.UserAnswer, booking map[string]string) model.IntentToken {
	tok.Fields = cloneFields(tok.Fields)

	for _, a := range collapseAnswers(answers) {
		if _, ok := tok.Fields[a.Field]; ok {
			continue
		}
		if c, ok := CanonicalField(a.Field); ok && tok.Fields[c] == "" {
			tok.Fields[c] = a.Answer
		}
		tok.Fields[a.Field] = a.Answer
	}

	for k, v := range booking {
		if v == "" {
			continue
		}
		if k == "price" || tok.Fields[k] == "" {
			tok.Fields[k] = v
		}
	}

	g.Score(&tok)
	return tok
}

// collapseAnswers keeps the last non-empty value per field, in first-seen
// field order. Bare yes/no confirmations carry no field value and are dropped.
func collapseAnswers(answers []model.UserAnswer) []model.UserAnswer {
	idx := make(map[string]int)
	var out []model.UserAnswer
	for _, a := range answers {
		a.Field = strings.TrimSpace(a.Field)
		a.Answer = strings.TrimSpace(a.Answer)
		if a.Field == "" || a.Answer == "" || isConfirmation(a.Answer) {
			continue
		}
		if i, ok := idx[a.Field]; ok {
			out[i] = a
			continue
		}
		idx[a.Field] = len(out)
		out = append(out, a)
	}
	return out
}

func isConfirmation(answer string) bool {
	switch strings.ToLower(answer) {
	case "yes", "no", "y", "n":
		return true
	}
	return false
}
