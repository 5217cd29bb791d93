package plan

import (
	"regexp"
	"strings"
)

// Default section text used when a model response omits a section.
const (
	DefaultReasoning = "Analyzing your request..."
	DefaultPlanLine  = "Preparing your booking recommendation..."
)

var (
	reasoningSection = regexp.MustCompile(`(?s)<Reasoning>(.*?)</Reasoning>`)
	planSection      = regexp.MustCompile(`(?s)<Plan>(.*?)</Plan>`)
	sectionTag       = regexp.MustCompile(`</?(?:Reasoning|Plan)>`)

	// Plan bodies are trimmed to start at the first recommendation marker
	// so reasoning echoed into the plan is not segmented twice.
	planStarts = []string{"**Recommended", "**Hotel Name:**", "**Airline:**"}
)

// SplitResponse separates a raw model response into reasoning and plan text.
func SplitResponse(raw string) (reasoning, plan string) {
	reasoning = DefaultReasoning
	rm := reasoningSection.FindStringSubmatch(raw)
	if rm != nil {
		reasoning = strings.TrimSpace(rm[1])
	}

	switch pm := planSection.FindStringSubmatch(raw); {
	case pm != nil:
		plan = pm[1]
	case rm != nil:
		if _, after, ok := strings.Cut(raw, "</Reasoning>"); ok {
			plan = after
		} else {
			plan = raw
		}
	default:
		plan = raw
	}

	plan = strings.TrimSpace(sectionTag.ReplaceAllString(plan, ""))
	for _, marker := range planStarts {
		if i := strings.Index(plan, marker); i >= 0 {
			plan = plan[i:]
			break
		}
	}
	return reasoning, plan
}

// DisplayLines returns the non-empty plan lines shown in a trace's PLAN stage.
func DisplayLines(plan string) []string {
	var lines []string
	for _, line := range strings.Split(plan, "\n") {
		line = strings.TrimSpace(line)
		if strings.TrimSpace(sectionTag.ReplaceAllString(line, "")) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return []string{DefaultPlanLine}
	}
	return lines
}

var (
	bookingName    = regexp.MustCompile(`\*\*(?:Hotel Name|Airline):\*\*\s*(.+)`)
	bookingWebsite = regexp.MustCompile(`\*\*Booking (?:Website|Platform):\*\*\s*(.+)`)
	bookingPrice   = regexp.MustCompile(`\*\*(?:Estimated )?Price:\*\*\s*(.+)`)
	bookingAddress = regexp.MustCompile(`\*\*Address:\*\*\s*(.+)`)
	bookingRoute   = regexp.MustCompile(`\*\*Route:\*\*\s*(.+)`)
	routeSplit     = regexp.MustCompile(`(?i)\s+to\s+`)
)

// BookingDetails extracts the merchant-confirmed fields a model recommends
// in a structured plan: name, website, price, address and route.
func BookingDetails(plan string) map[string]string {
	out := make(map[string]string)
	set := func(re *regexp.Regexp, field string) {
		if m := re.FindStringSubmatch(plan); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				out[field] = v
			}
		}
	}
	set(bookingName, "hotel_name")
	set(bookingWebsite, "website")
	set(bookingPrice, "price")
	set(bookingAddress, "location")

	if m := bookingRoute.FindStringSubmatch(plan); m != nil {
		parts := routeSplit.Split(strings.TrimSpace(m[1]), -1)
		if len(parts) == 2 {
			out["origin"] = strings.TrimSpace(parts[0])
			out["destination"] = strings.TrimSpace(parts[1])
		}
	}
	return out
}
