package redact

import (
	"strings"

	"github.com/ppiankov/intentguard/internal/model"
)

// fieldKinds marks booking and payment fields whose answers are always
// sensitive, whatever they look like.
var fieldKinds = map[string]PatternType{
	"email":          PatternEmail,
	"contact_email":  PatternEmail,
	"phone":          PatternPhone,
	"mobile":         PatternPhone,
	"contact":        PatternPhone,
	"card":           PatternCard,
	"card_number":    PatternCard,
	"cvv":            PatternCred,
	"pin":            PatternCred,
	"otp":            PatternCred,
	"upi":            PatternUPI,
	"upi_id":         PatternUPI,
	"account":        PatternAccount,
	"account_number": PatternAccount,
	"passport":       PatternPassport,
	"passport_no":    PatternPassport,
}

// Redact tokenizes every sensitive value found in text.
func Redact(text string, tm *TokenMap) string {
	for _, m := range Scan(text) {
		tm.Token(m.Type, m.Value)
	}
	if tm.Len() == 0 {
		return text
	}
	return tm.hider().Replace(text)
}

// Field tokenizes one booking or payment field value. Known sensitive
// field names are tokenized whole; other values are scanned like text.
func Field(name, value string, tm *TokenMap) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	kind, sensitive := fieldKinds[strings.ToLower(strings.TrimSpace(name))]
	if !sensitive {
		return Redact(value, tm)
	}
	if detected := Classify(value); detected != "" {
		kind = detected
	}
	return tm.Token(kind, value)
}

// Fields returns a copy of booking details with sensitive values tokenized.
func Fields(fields map[string]string, tm *TokenMap) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = Field(k, v, tm)
	}
	return out
}

// Answers returns a copy of clarification answers with sensitive values
// tokenized.
func Answers(answers []model.UserAnswer, tm *TokenMap) []model.UserAnswer {
	out := make([]model.UserAnswer, len(answers))
	for i, a := range answers {
		a.Answer = Field(a.Field, a.Answer, tm)
		out[i] = a
	}
	return out
}

// Detoken restores every token in text to its original value.
func Detoken(text string, tm *TokenMap) string {
	if tm.Len() == 0 {
		return text
	}
	return tm.restorer().Replace(text)
}

// CheckLeaks returns the sensitive values that appear verbatim in a model
// reply. Empty means nothing leaked.
func CheckLeaks(reply string, tm *TokenMap) []string {
	var leaks []string
	for v := range tm.byValue {
		if strings.Contains(reply, v) {
			leaks = append(leaks, v)
		}
	}
	return leaks
}
