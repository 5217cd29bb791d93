// Package extract pulls structured fields out of free-form plan step text.
//
// Extraction is table driven: each Matcher owns one category of fields and
// tries its patterns in priority order, stopping at the first hit. Matchers
// are pure and independently testable.
package extract

import (
	"regexp"
	"strings"
)

// Matcher extracts one category of fields from a text span.
type Matcher struct {
	Category string
	Match    func(text string) map[string]string
}

// Matchers is the ordered extraction table applied by Fields.
var Matchers = []Matcher{
	{Category: "date", Match: Date},
	{Category: "time", Match: Time},
	{Category: "price", Match: Price},
	{Category: "website", Match: Website},
	{Category: "location", Match: Location},
	{Category: "entity", Match: Entity},
	{Category: "stay", Match: Stay},
}

// Fields runs every matcher over text and merges the results.
// Later categories never overwrite a field set by an earlier one.
func Fields(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range Matchers {
		for k, v := range m.Match(text) {
			if _, ok := out[k]; ok || v == "" {
				continue
			}
			out[k] = v
		}
	}
	return out
}

const dateAlt = `\d{4}-\d{2}-\d{2}|\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|` +
	`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}`

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(` + dateAlt + `|Day\s+\d+)\b`),
	}

	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*(?:am|pm))\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}\s*(?:am|pm))\b`),
		regexp.MustCompile(`(?i)\bat\s+(\d{1,2}:\d{2})\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}h\d{2})\b`),
		regexp.MustCompile(`\b((?:[01]?\d|2[0-3]):[0-5]\d)\b`),
	}

	timeFallbacks = []struct {
		re   *regexp.Regexp
		time string
	}{
		{regexp.MustCompile(`(?i)\b(?:morning|breakfast)\b`), "09:00"},
		{regexp.MustCompile(`(?i)\b(?:afternoon|lunch)\b`), "13:00"},
		{regexp.MustCompile(`(?i)\b(?:evening|dinner)\b`), "19:00"},
	}

	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:¥|\bJPY)\s*(\d+(?:,\d{3})*)`),
		regexp.MustCompile(`(?i)(?:\$|\bUSD)\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)(?:€|\bEUR)\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)(?:₹|\bINR|\bRs\.?)\s*(\d+(?:,\d{2,3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)\b(\d+(?:,\d{2,3})*)\s*(?:JPY|USD|EUR|INR|yen|dollars|rupees)\b`),
	}

	websitePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?\b([a-z0-9-]+\.(?:com|net|org|co\.uk|co\.jp|co\.in|io))\b`),
		regexp.MustCompile(`(?i)\b(?:on|via)\s+([a-z][a-z0-9]+\.(?:jp|in))\b`),
	}

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bfrom\s+([A-Z][a-zA-Z\s]+?(?:Airport|Station|Terminal))`),
		regexp.MustCompile(`\bto\s+([A-Z][a-zA-Z\s]+?(?:Airport|Station|Terminal))`),
		regexp.MustCompile(`\bat\s+([A-Z][a-zA-Z\s&'-]+?)(?:\s*\(|,|\.|$)`),
		regexp.MustCompile(`Location:\s*([A-Z][^(\n]+?)(?:\(|\n|$)`),
		regexp.MustCompile(`\bin\s+([A-Z][a-zA-Z\s]+?)(?:\s+area|,|\.|$)`),
	}

	hasFrom   = regexp.MustCompile(`(?i)\bfrom\b`)
	hasTo     = regexp.MustCompile(`(?i)\bto\b`)
	fromPlace = regexp.MustCompile(`\bfrom\s+([A-Z][a-zA-Z\s]+?)(?:\s+to\b|\s*\()`)
	toPlace   = regexp.MustCompile(`\bto\s+([A-Z][a-zA-Z\s]+?)(?:\s+(?:on|at|via|for|in|by|departing|leaving)\b|\s*\(|,|\.|\s+\d|\s*$)`)

	entityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:hotel|stay at)\s+([a-z][a-z\s&'-]+?)(?:\s*\(|,|\.|\s+in\b)`),
		regexp.MustCompile(`(?i)\b(?:restaurant|cafe|dine at)\s+([a-z][a-z\s&'-]+?)(?:\s*\(|,|\.)`),
		regexp.MustCompile(`(?i)\b(?:visit|explore)\s+([a-z][a-z\s&'-]+?)(?:\s*\(|,|\.)`),
	}

	hotelWords      = regexp.MustCompile(`(?i)\b(?:hotel|stay)`)
	restaurantWords = regexp.MustCompile(`(?i)\b(?:restaurant|cafe|dine)`)

	checkInPattern  = regexp.MustCompile(`(?is)\bcheck[- ]?in\b.*?(` + dateAlt + `)`)
	checkOutPattern = regexp.MustCompile(`(?is)\bcheck[- ]?out\b.*?(` + dateAlt + `)`)
)

// firstMatch returns the first capture of the first pattern that matches.
func firstMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

func single(field, value string, ok bool) map[string]string {
	if !ok || value == "" {
		return nil
	}
	return map[string]string{field: value}
}

// Date extracts the first calendar date or "Day N" reference.
func Date(text string) map[string]string {
	v, ok := firstMatch(datePatterns, text)
	return single("date", v, ok)
}

// Time extracts an explicit clock time, falling back to a meal or
// part-of-day keyword when none is present.
func Time(text string) map[string]string {
	if v, ok := firstMatch(timePatterns, text); ok {
		return single("time", v, ok)
	}
	for _, fb := range timeFallbacks {
		if fb.re.MatchString(text) {
			return map[string]string{"time": fb.time}
		}
	}
	return nil
}

// Price extracts a currency amount without thousands separators.
func Price(text string) map[string]string {
	v, ok := firstMatch(pricePatterns, text)
	return single("price", strings.ReplaceAll(v, ",", ""), ok)
}

// Website extracts a booking domain, lower-cased.
func Website(text string) map[string]string {
	v, ok := firstMatch(websitePatterns, text)
	if ok && !strings.Contains(v, ".") {
		v += ".com"
	}
	return single("website", strings.ToLower(v), ok)
}

// Location extracts origin and destination when the span reads
// "from X to Y", otherwise a single location.
func Location(text string) map[string]string {
	if hasFrom.MatchString(text) && hasTo.MatchString(text) {
		out := make(map[string]string)
		if m := fromPlace.FindStringSubmatch(text); m != nil {
			out["origin"] = strings.TrimSpace(m[1])
		}
		if m := toPlace.FindStringSubmatch(text); m != nil {
			out["destination"] = strings.TrimSpace(m[1])
		}
		if len(out) > 0 {
			return out
		}
	}
	v, ok := firstMatch(locationPatterns, text)
	return single("location", v, ok)
}

// Entity extracts a named hotel, restaurant or attraction.
func Entity(text string) map[string]string {
	v, ok := firstMatch(entityPatterns, text)
	if !ok {
		return nil
	}
	switch {
	case hotelWords.MatchString(text):
		return single("hotel_name", v, ok)
	case restaurantWords.MatchString(text):
		return single("restaurant_name", v, ok)
	default:
		return single("attraction_name", v, ok)
	}
}

// Stay extracts hotel check-in and check-out dates.
func Stay(text string) map[string]string {
	out := make(map[string]string)
	if m := checkInPattern.FindStringSubmatch(text); m != nil {
		out["check_in"] = m[1]
	}
	if m := checkOutPattern.FindStringSubmatch(text); m != nil {
		out["check_out"] = m[1]
	}
	return out
}
