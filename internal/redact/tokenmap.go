package redact

import (
	"fmt"
	"sort"
	"strings"
)

// describe is the legend wording per category. Values never appear in it.
var describe = map[PatternType]string{
	PatternCred:     "credential",
	PatternEmail:    "email address",
	PatternCard:     "payment card number",
	PatternPhone:    "phone number",
	PatternPassport: "passport number",
	PatternUPI:      "UPI handle",
	PatternAccount:  "bank account number",
}

// TokenMap holds the tokens issued for one prompt/reply exchange.
// Not goroutine-safe.
type TokenMap struct {
	byValue  map[string]string
	byToken  map[string]string
	kinds    map[string]PatternType
	counters map[PatternType]int
}

// NewTokenMap creates an empty token map.
func NewTokenMap() *TokenMap {
	return &TokenMap{
		byValue:  make(map[string]string),
		byToken:  make(map[string]string),
		kinds:    make(map[string]PatternType),
		counters: make(map[PatternType]int),
	}
}

// Token returns "<<TYPE_N>>" for value, issuing a new one on first use.
func (tm *TokenMap) Token(typ PatternType, value string) string {
	if tok, ok := tm.byValue[value]; ok {
		return tok
	}
	tm.counters[typ]++
	tok := fmt.Sprintf("<<%s_%d>>", typ, tm.counters[typ])
	tm.byValue[value] = tok
	tm.byToken[tok] = value
	tm.kinds[tok] = typ
	return tok
}

// Resolve returns the original value for a token.
func (tm *TokenMap) Resolve(token string) (string, bool) {
	v, ok := tm.byToken[token]
	return v, ok
}

// Len returns the number of tokens issued.
func (tm *TokenMap) Len() int { return len(tm.byValue) }

// Legend returns a note for the system prompt naming each token's
// category. Empty when nothing was redacted.
func (tm *TokenMap) Legend() string {
	if len(tm.byToken) == 0 {
		return ""
	}
	toks := make([]string, 0, len(tm.byToken))
	for t := range tm.byToken {
		toks = append(toks, t)
	}
	sort.Strings(toks)

	var b strings.Builder
	b.WriteString("Personal and payment details in the request are replaced with tokens.\n")
	b.WriteString("Repeat these tokens exactly where needed. Never invent values for them.\n\n")
	for _, tok := range toks {
		fmt.Fprintf(&b, "  %s = %s\n", tok, describe[tm.kinds[tok]])
	}
	return b.String()
}

// hider replaces values with tokens, longest value first so a card number
// is never split by a shorter overlapping value.
func (tm *TokenMap) hider() *strings.Replacer {
	vals := make([]string, 0, len(tm.byValue))
	for v := range tm.byValue {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool { return len(vals[i]) > len(vals[j]) })
	pairs := make([]string, 0, 2*len(vals))
	for _, v := range vals {
		pairs = append(pairs, v, tm.byValue[v])
	}
	return strings.NewReplacer(pairs...)
}

func (tm *TokenMap) restorer() *strings.Replacer {
	pairs := make([]string, 0, 2*len(tm.byToken))
	for tok, v := range tm.byToken {
		pairs = append(pairs, tok, v)
	}
	return strings.NewReplacer(pairs...)
}
