// Package policy evaluates intent tokens against the travel policy rule tables.
package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/ppiankov/intentguard/internal/model"
)

// Failure categories.
const (
	CategoryInputValidation    = "INPUT_VALIDATION"
	CategoryRestricted         = "POLICY_RESTRICTED"
	CategoryTime               = "POLICY_TIME"
	CategoryBudgetExceeded     = "BUDGET_EXCEEDED"
	CategoryBudgetClose        = "BUDGET_CLOSE"
	CategoryClassJustification = "CLASS_JUSTIFICATION"
	CategoryInvalidOccupancy   = "INVALID_OCCUPANCY"
	CategoryExcessiveStay      = "EXCESSIVE_STAY_LENGTH"
	CategoryBudgetNotFeasible  = "BUDGET_NOT_FEASIBLE_FOR_LOCATION"
	CategoryMissingData        = "MISSING_DATA"
)

// Validator applies a Config to intent tokens. It holds no mutable state
// and is safe for concurrent use.
type Validator struct {
	cfg *Config
	now func() time.Time
}

// NewValidator returns a Validator. A nil clock uses time.Now.
func NewValidator(cfg *Config, now func() time.Time) *Validator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{cfg: cfg, now: now}
}

// Config returns the rule tables in use.
func (v *Validator) Config() *Config {
	return v.cfg
}

func (v *Validator) today() time.Time {
	return v.now().UTC()
}

// Validate runs every rule category over every token and returns the
// failures in evaluation order.
func (v *Validator) Validate(tokens []model.IntentToken) []model.PolicyFailure {
	var out []model.PolicyFailure
	for i := range tokens {
		out = append(out, v.ValidateToken(&tokens[i])...)
	}
	return out
}

// tokenFacts holds the parsed values shared by the rule categories.
type tokenFacts struct {
	tok         *model.IntentToken
	origin      string
	destination string
	location    string
	budget      float64
	price       float64
	travelers   int
	date        time.Time
	hasDate     bool
}

// ValidateToken evaluates one token. Unparseable values skip the checks
// that depend on them.
func (v *Validator) ValidateToken(tok *model.IntentToken) []model.PolicyFailure {
	f := tokenFacts{
		tok:         tok,
		origin:      normalize(tok.Field("origin")),
		destination: normalize(tok.Field("destination")),
		location:    normalize(tok.Field("location")),
		travelers:   1,
	}
	f.budget, _ = parseNumber(tok.Field("budget"))
	f.price, _ = parseNumber(tok.Field("price"))
	if n, ok := parseNumber(tok.Field("travelers")); ok {
		f.travelers = int(n)
	}
	f.date, f.hasDate = parseDate(firstNonEmpty(tok.Field("date"), tok.Field("departure_date"), tok.Field("check_in")))

	var out []model.PolicyFailure
	out = append(out, v.inputRules(f)...)
	out = append(out, v.scopeRules(f)...)
	out = append(out, v.budgetRules(f)...)
	out = append(out, v.classRules(f)...)
	if tok.Action == model.BookHotel {
		out = append(out, v.hotelRules(f)...)
	}
	return out
}

func failure(tok *model.IntentToken, category, reason string, sev model.Severity) model.PolicyFailure {
	return model.PolicyFailure{Action: tok.Action, Category: category, Reason: reason, Severity: sev}
}

func (v *Validator) inputRules(f tokenFacts) []model.PolicyFailure {
	var out []model.PolicyFailure
	if f.origin != "" && f.destination != "" && f.origin == f.destination {
		out = append(out, failure(f.tok, CategoryInputValidation,
			"Origin and destination cannot be the same location", model.SeverityBlock))
	}
	if f.hasDate && daysBetween(v.today(), f.date) < 0 {
		out = append(out, failure(f.tok, CategoryInputValidation,
			"Booking date is in the past", model.SeverityBlock))
	}
	if f.travelers <= 0 {
		out = append(out, failure(f.tok, CategoryInputValidation,
			"Number of travelers must be at least 1", model.SeverityBlock))
	}
	if f.budget <= 0 {
		out = append(out, failure(f.tok, CategoryInputValidation,
			"Budget must be greater than zero", model.SeverityBlock))
	}
	return out
}

func (v *Validator) scopeRules(f tokenFacts) []model.PolicyFailure {
	var out []model.PolicyFailure
	if place, ok := v.restricted(f); ok {
		out = append(out, failure(f.tok, CategoryRestricted,
			fmt.Sprintf("Travel to %s is restricted by corporate policy", place), model.SeverityBlockAndLog))
	}
	if f.tok.Action == model.BookFlight && f.hasDate && !contains(v.cfg.DomesticFlags, f.destination) {
		days := daysBetween(v.today(), f.date)
		if days < v.cfg.AdvanceNoticeDays {
			out = append(out, failure(f.tok, CategoryTime,
				fmt.Sprintf("International flight booking requires %d hours advance notice (currently %d days)",
					v.cfg.AdvanceNoticeDays*24, days), model.SeverityRequireApproval))
		}
	}
	return out
}

// restricted reports the destination or location that falls in a
// restricted region, matching either the whole value or one of its
// comma-separated parts.
func (v *Validator) restricted(f tokenFacts) (string, bool) {
	for _, field := range []string{"destination", "location"} {
		raw := strings.TrimSpace(f.tok.Field(field))
		if raw == "" {
			continue
		}
		if contains(v.cfg.RestrictedRegions, normalize(raw)) {
			return raw, true
		}
		for _, part := range strings.Split(raw, ",") {
			if contains(v.cfg.RestrictedRegions, normalize(part)) {
				return raw, true
			}
		}
	}
	return "", false
}

func (v *Validator) budgetRules(f tokenFacts) []model.PolicyFailure {
	var out []model.PolicyFailure
	b := v.cfg.Budget
	if f.budget > 0 && f.price > 0 {
		ratio := f.price / f.budget
		overage := int((ratio - 1) * 100)
		priceStr, budgetStr := f.tok.Field("price"), f.tok.Field("budget")
		switch {
		case ratio > b.BlockAbove:
			out = append(out, failure(f.tok, CategoryBudgetExceeded,
				fmt.Sprintf("Recommended price (%s) exceeds budget (%s) by %d%% - not approved", priceStr, budgetStr, overage),
				model.SeverityBlock))
		case ratio > b.ApprovalAbove:
			out = append(out, failure(f.tok, CategoryBudgetClose,
				fmt.Sprintf("Recommended price (%s) is %d%% over budget (%s) - requires approval", priceStr, overage, budgetStr),
				model.SeverityRequireApproval))
		}
	}
	if total := f.budget * float64(f.travelers); b.GroupCap > 0 && total > b.GroupCap {
		out = append(out, failure(f.tok, CategoryBudgetExceeded,
			fmt.Sprintf("Total group budget (%s%d) exceeds organizational cap (%s%d)",
				v.cfg.CurrencySymbol, int(total), v.cfg.CurrencySymbol, int(b.GroupCap)),
			model.SeverityRequireApproval))
	}
	return out
}

func (v *Validator) classRules(f tokenFacts) []model.PolicyFailure {
	desc := strings.ToLower(f.tok.Description)
	if !strings.Contains(desc, "business class") && !strings.Contains(desc, "first class") {
		return nil
	}
	if f.origin == "" || f.destination == "" {
		return nil
	}
	if v.domesticCity(f.origin) && v.domesticCity(f.destination) {
		return []model.PolicyFailure{failure(f.tok, CategoryClassJustification,
			"Business class not justified for domestic short-haul flights", model.SeverityRequireApproval)}
	}
	return nil
}

func (v *Validator) domesticCity(place string) bool {
	for _, c := range v.cfg.DomesticCities {
		if c != "" && strings.Contains(place, c) {
			return true
		}
	}
	return false
}

func (v *Validator) hotelRules(f tokenFacts) []model.PolicyFailure {
	var out []model.PolicyFailure
	h := v.cfg.Hotel

	guests := 0
	if n, ok := parseNumber(firstNonEmpty(f.tok.Field("guests"), f.tok.Field("travelers"))); ok {
		guests = int(n)
	}
	switch {
	case guests <= 0:
		out = append(out, failure(f.tok, CategoryInvalidOccupancy,
			"Number of guests must be at least 1", model.SeverityBlock))
	case guests > h.MaxGuests:
		out = append(out, failure(f.tok, CategoryInvalidOccupancy,
			fmt.Sprintf("Number of guests (%d) exceeds maximum per room (%d)", guests, h.MaxGuests), model.SeverityBlock))
	}

	checkIn, okIn := parseDate(f.tok.Field("check_in"))
	checkOut, okOut := parseDate(f.tok.Field("check_out"))
	if !okIn || !okOut {
		return out
	}
	nights := daysBetween(checkIn, checkOut)
	if nights > h.MaxStayNights {
		out = append(out, failure(f.tok, CategoryExcessiveStay,
			fmt.Sprintf("Stay duration (%d nights) exceeds maximum (%d nights) - requires approval", nights, h.MaxStayNights),
			model.SeverityRequireApproval))
	}
	if nights > 0 && f.budget > 0 {
		perNight := f.budget / float64(nights)
		minimum := v.cityMinimum(f.location)
		if perNight < minimum {
			where := f.tok.Field("location")
			if where == "" {
				where = "this location"
			}
			out = append(out, failure(f.tok, CategoryBudgetNotFeasible,
				fmt.Sprintf("Budget per night (%s%d) is below minimum for %s (%s%d) - may not find suitable accommodation",
					v.cfg.CurrencySymbol, int(perNight), where, v.cfg.CurrencySymbol, int(minimum)),
				model.SeverityRequireApproval))
		}
	}
	return out
}

// cityMinimum looks up the per-night floor for a location: exact city
// first, then any listed city named in the location, then the default.
func (v *Validator) cityMinimum(location string) float64 {
	mins := v.cfg.Hotel.CityMinimums
	if m, ok := mins[location]; ok {
		return m
	}
	best, found := "", false
	for city := range mins {
		if city != "" && strings.Contains(location, city) && len(city) > len(best) {
			best, found = city, true
		}
	}
	if found {
		return mins[best]
	}
	return v.cfg.Hotel.DefaultMinimum
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseNumber returns the first number in s, ignoring thousands separators.
func parseNumber(s string) (float64, bool) {
	m := numberPattern.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// dayFirstLayouts covers day-first forms that month-first parsing rejects.
var dayFirstLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "02/01/06", "2 January 2006", "2 Jan 2006"}

// parseDate parses a loosely formatted date. Ambiguous numeric dates are
// read month-first; day-first layouts are tried when that fails.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t, true
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// daysBetween returns the whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contains(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
