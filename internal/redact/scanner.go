// Package redact replaces personal and payment data in outbound model
// prompts with stable tokens and restores it in the reply.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// PatternType identifies the category of sensitive data.
type PatternType string

const (
	PatternCred     PatternType = "CRED"
	PatternEmail    PatternType = "EMAIL"
	PatternCard     PatternType = "CARD"
	PatternPhone    PatternType = "PHONE"
	PatternPassport PatternType = "PASSPORT"
	PatternUPI      PatternType = "UPI"
	PatternAccount  PatternType = "ACCOUNT"
)

// Match is a single occurrence of sensitive data in text.
type Match struct {
	Type  PatternType
	Value string
	Start int
	End   int
}

// detector finds one category. group selects the capture holding the
// value; keep, when set, filters candidates.
type detector struct {
	typ   PatternType
	re    *regexp.Regexp
	group int
	keep  func(text string, start, end int) bool
}

var detectors = []detector{
	{typ: PatternCred, re: regexp.MustCompile(`(?i)\b((?:password|passwd|secret|token|api_key|apikey|pin|cvv|otp)[ \t]*[=:][ \t]*\S+)`), group: 1},
	{typ: PatternEmail, re: regexp.MustCompile(`\b([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})\b`), group: 1},
	// UPI handles look like emails without a dotted domain.
	{typ: PatternUPI, re: regexp.MustCompile(`\b([a-zA-Z0-9._\-]{2,}@[a-zA-Z]{2,})\b`), group: 1, keep: notFollowedByDot},
	{typ: PatternCard, re: regexp.MustCompile(`\b(\d(?:[ -]?\d){12,18})\b`), group: 1, keep: luhnSpan},
	// International numbers only; bare digit runs are usually prices.
	{typ: PatternPhone, re: regexp.MustCompile(`(\+\d{1,3}[ -]?\d(?:[ -]?\d){7,12})\b`), group: 1},
	{typ: PatternPassport, re: regexp.MustCompile(`(?i)\bpassport(?:\s+(?:no\.?|number|#))?[ \t]*[:#]?[ \t]*([A-Z][0-9]{7,8})\b`), group: 1},
	{typ: PatternAccount, re: regexp.MustCompile(`(?i)\b(?:a/c|account)(?:\s+(?:no\.?|number|#))?[ \t]*[:#]?[ \t]*(\d{9,18})\b`), group: 1},
}

// Scan finds all sensitive values in text, deduplicated and sorted by
// first position.
func Scan(text string) []Match {
	seen := make(map[string]bool)
	var matches []Match
	for _, d := range detectors {
		for _, loc := range d.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*d.group], loc[2*d.group+1]
			if start < 0 {
				continue
			}
			if d.keep != nil && !d.keep(text, start, end) {
				continue
			}
			value := strings.TrimRight(text[start:end], ".,;:\"'`)}]")
			if value == "" || seen[value] {
				continue
			}
			seen[value] = true
			matches = append(matches, Match{Type: d.typ, Value: value, Start: start, End: start + len(value)})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Start < matches[j].Start
	})
	return matches
}

// Classify returns the category of a value that is sensitive in its
// entirety, or "" when no detector covers the whole value.
func Classify(value string) PatternType {
	value = strings.TrimSpace(value)
	for _, m := range Scan(value) {
		if m.Start == 0 && m.End == len(value) {
			return m.Type
		}
	}
	return ""
}

func notFollowedByDot(text string, _, end int) bool {
	return end >= len(text) || text[end] != '.'
}

func luhnSpan(text string, start, end int) bool {
	return luhn(text[start:end])
}

// luhn reports whether the digits in s pass the Luhn checksum.
func luhn(s string) bool {
	sum, n := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if n%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		n++
	}
	return n >= 13 && sum%10 == 0
}
