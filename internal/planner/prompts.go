package planner

import (
	"fmt"
	"strings"

	"github.com/ppiankov/intentguard/internal/clarify"
	"github.com/ppiankov/intentguard/internal/model"
)

const (
	planSystem     = "You are a professional travel research assistant. Research real options and provide specific recommendations."
	questionSystem = "You are a helpful travel planning assistant. Always respond with valid JSON."
)

const flightPrompt = `You are an intelligent flight booking agent researching real-world options.
IMPORTANT: You are providing ESTIMATES based on typical market prices. You do not have real-time pricing data.

Your job is to:
1. Use your knowledge of airlines that operate on the requested route
2. Provide a REALISTIC price estimate for the route
3. Recommend a specific flight option with typical departure times
4. Be honest about the estimate nature

CRITICAL PRICING GUIDELINES:
- Domestic Indian flights (< 2 hours): ₹3,000 - ₹8,000
- Domestic Indian flights (2-4 hours): ₹4,000 - ₹12,000
- Short international flights (India to nearby): $80 - $300
- International long-haul: $400+
- If user's budget is unrealistic, RECOMMEND a realistic price and explain why

Structure your response as:
<Reasoning>
Explain what airlines operate this route and provide a realistic price estimate based on typical market rates.
</Reasoning>

<Plan>
**Recommended Flight:**

**Airline:** [Actual airline name]
**Route:** [Origin to Destination]
**Departure Date:** [Date]
**Departure Time:** [Typical time]
**Arrival Time:** [Typical time]
**Estimated Price:** [Realistic amount per person - DO NOT match unrealistic budgets]
**Booking Website:** [Airline website or booking platform]
**Why this flight:** [Brief explanation]

**Next Step:** Review the details above. If everything looks good, click 'Proceed to Book' to confirm your reservation.
</Plan>

`

const hotelPrompt = `You are an intelligent hotel booking agent. Your job is to:
1. Research REAL hotels based on the user's requirements
2. Analyze which options best match their budget, dates, and preferences
3. Recommend ONE specific hotel you've researched
4. Provide complete booking details so they can proceed

CRITICAL: Use your knowledge of real hotels and booking platforms. Recommend actual properties that exist, not hypothetical examples.

Structure your response as:
<Reasoning>
Explain what you researched, what options you considered, and why you're recommending this specific choice.
</Reasoning>

<Plan>
**Recommended Hotel:**

**Hotel Name:** [Actual hotel name]
**Address:** [Complete address]
**Check-in:** [Date and time]
**Check-out:** [Date and time]
**Price:** [Amount per night in user's currency]
**Booking Website:** [Booking.com or other platform]
**Why this hotel:** [Brief explanation of why it meets safety, budget, and location requirements]

**Next Step:** Review the details above. If everything looks good, click 'Proceed to Book' to confirm your reservation.
</Plan>

`

const questionPrompt = `You are a friendly travel assistant. The user asked: "%s"

Analyze what they're asking for and generate EXACTLY 5 essential questions to help complete their request.

For FLIGHT bookings:
1. Ask for ORIGIN city/airport (where flying FROM) - field: "origin"
2. Ask for DESTINATION city/airport (where flying TO) - field: "destination"
3. Ask for DEPARTURE date - field: "departure_date"
4. Ask for NUMBER of passengers - field: "travelers"
5. Ask for BUDGET per person or class preference - field: "budget" or "flight_class"

For HOTEL bookings:
1. Ask for LOCATION/city - field: "location"
2. Ask for CHECK-IN date - field: "check_in"
3. Ask for CHECK-OUT date - field: "check_out"
4. Ask for NUMBER of guests - field: "travelers"
5. Ask for BUDGET per night or room type - field: "budget"

Format as JSON array:
[
  {"id": "q1", "question": "Where are you flying from?", "field": "origin"},
  {"id": "q2", "question": "Where are you flying to?", "field": "destination"}
]

IMPORTANT:
- For flights, ALWAYS ask origin and destination as SEPARATE questions
- Use simple field names: origin, destination, departure_date, check_in, check_out, location, budget, travelers
- Output ONLY the JSON array, no other text`

// PlanPrompt builds the plan-generation prompt: the flight or hotel
// template, the user's answers, then the request itself.
func PlanPrompt(utterance string, answers []model.UserAnswer) string {
	var b strings.Builder
	if clarify.Kind(utterance) == clarify.KindFlight {
		b.WriteString(flightPrompt)
	} else {
		b.WriteString(hotelPrompt)
	}
	b.WriteString(AnswersBlock(answers))
	b.WriteString("User Request: ")
	b.WriteString(utterance)
	return b.String()
}

// AnswersBlock lists answers as "For <field>: <answer>" lines. Yes/no
// confirmations carry no data and are left out.
func AnswersBlock(answers []model.UserAnswer) string {
	if len(answers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nUser answers:\n")
	for _, a := range answers {
		switch strings.ToLower(strings.TrimSpace(a.Answer)) {
		case "yes", "no":
			continue
		}
		fmt.Fprintf(&b, "For %s: %s\n", a.Field, a.Answer)
	}
	b.WriteString("\n")
	return b.String()
}

// QuestionPrompt builds the clarification-question prompt.
func QuestionPrompt(utterance string) string {
	return fmt.Sprintf(questionPrompt, utterance)
}
