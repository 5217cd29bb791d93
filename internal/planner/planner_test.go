package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intentguard/internal/model"
)

func TestPlanPromptFlightTemplate(t *testing.T) {
	p := PlanPrompt("Book a flight to Goa", nil)
	assert.Contains(t, p, "flight booking agent")
	assert.True(t, strings.HasSuffix(p, "User Request: Book a flight to Goa"))
	assert.NotContains(t, p, "User answers:")
}

func TestPlanPromptHotelTemplateWithAnswers(t *testing.T) {
	answers := []model.UserAnswer{
		{Field: "location", Answer: "Mumbai"},
		{Field: "confirm", Answer: "yes"},
		{Field: "budget", Answer: "₹8000"},
	}
	p := PlanPrompt("Find me a hotel", answers)
	assert.Contains(t, p, "hotel booking agent")
	assert.Contains(t, p, "For location: Mumbai\n")
	assert.Contains(t, p, "For budget: ₹8000\n")
	assert.NotContains(t, p, "For confirm")
}

func TestQuestionPromptQuotesUtterance(t *testing.T) {
	assert.Contains(t, QuestionPrompt("Fly to Paris"), `The user asked: "Fly to Paris"`)
}

func TestParseQuestionsFenced(t *testing.T) {
	text := "```json\n[{\"id\":\"q1\",\"question\":\"Where from?\",\"field\":\"origin\"},{\"question\":\"Where to?\",\"field\":\"destination\"}]\n```"
	qs, err := ParseQuestions(text)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "q1", qs[0].ID)
	assert.Equal(t, "q2", qs[1].ID)
	assert.Equal(t, 2, qs[1].Step)
	assert.NotEmpty(t, qs[1].WhyAsking)
}

func TestParseQuestionsRejectsGarbage(t *testing.T) {
	_, err := ParseQuestions("Sure! Here are some questions.")
	assert.Error(t, err)

	_, err = ParseQuestions(`[{"question":"","field":"origin"}]`)
	assert.Error(t, err)
}

func TestQuestionsFallbackWithoutGenerator(t *testing.T) {
	p := New(nil, Config{})
	qs := p.Questions(context.Background(), "I want to fly to Tokyo")
	require.Len(t, qs, 5)
	assert.Equal(t, "origin", qs[0].Field)
	assert.False(t, p.Available())
}

func TestQuestionsFallbackOnError(t *testing.T) {
	p := New(Static{Err: errors.New("quota")}, Config{})
	qs := p.Questions(context.Background(), "Book a hotel in Goa")
	require.Len(t, qs, 5)
	assert.Equal(t, "location", qs[0].Field)
}

func TestQuestionsGenerated(t *testing.T) {
	var got Request
	gen := GeneratorFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return `[{"id":"q1","question":"Which airport?","field":"origin"}]`, nil
	})
	qs := New(gen, Config{}).Questions(context.Background(), "fly to Paris")
	require.Len(t, qs, 1)
	assert.Equal(t, "Which airport?", qs[0].Question)
	assert.True(t, got.JSON)
	assert.Equal(t, float32(0.7), got.Temperature)
}

func TestPlanSplitsResponse(t *testing.T) {
	raw := "<Reasoning>IndiGo flies daily.</Reasoning>\n<Plan>**Recommended Flight:**\n**Airline:** IndiGo</Plan>"
	resp, err := New(Static{Text: raw}, Config{}).Plan(context.Background(), "fly to Goa", nil)
	require.NoError(t, err)
	assert.Equal(t, "IndiGo flies daily.", resp.Reasoning)
	assert.Equal(t, "**Recommended Flight:**\n**Airline:** IndiGo", resp.Plan)
	assert.Equal(t, raw, resp.Raw)
}

func TestPlanUnavailable(t *testing.T) {
	_, err := New(nil, Config{}).Plan(context.Background(), "fly", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestPlanRedactsPersonalData(t *testing.T) {
	var got Request
	gen := GeneratorFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return "<Plan>**Hotel Name:** Taj\n**Contact:** <<EMAIL_1>></Plan>", nil
	})
	answers := []model.UserAnswer{{Field: "contact", Answer: "meera@mail.com"}}
	resp, err := New(gen, Config{}).Plan(context.Background(), "hotel in Goa", answers)
	require.NoError(t, err)

	assert.NotContains(t, got.Prompt, "meera@mail.com")
	assert.Contains(t, got.Prompt, "<<EMAIL_1>>")
	assert.Contains(t, got.System, "<<EMAIL_1>> = email address")
	assert.Contains(t, resp.Plan, "meera@mail.com")
}

func TestPlanRedactsPaymentAnswers(t *testing.T) {
	var got Request
	gen := GeneratorFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return "<Plan>**Biller:** BESCOM\n**Pay From:** <<UPI_1>></Plan>", nil
	})
	answers := []model.UserAnswer{
		{Field: "biller", Answer: "BESCOM"},
		{Field: "upi_id", Answer: "9876543210@ybl"},
		{Field: "pin", Answer: "2468"},
	}
	resp, err := New(gen, Config{}).Plan(context.Background(), "pay my electricity bill", answers)
	require.NoError(t, err)

	assert.NotContains(t, got.Prompt, "9876543210@ybl")
	assert.NotContains(t, got.Prompt, "2468")
	assert.Contains(t, got.Prompt, "BESCOM")
	assert.Contains(t, got.System, "<<UPI_1>> = UPI handle")
	assert.Contains(t, resp.Plan, "9876543210@ybl")
}
