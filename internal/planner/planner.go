// Package planner asks a text-generation model for clarification
// questions and travel plans.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/intentguard/internal/clarify"
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/plan"
	"github.com/ppiankov/intentguard/internal/redact"
)

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	JSON        bool
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrUnavailable is returned when no generator is configured.
var ErrUnavailable = errors.New("planner: no text generator configured")

const (
	DefaultQuestionTimeout = 10 * time.Second
	DefaultPlanTimeout     = 30 * time.Second
)

// Config configures a Planner. Zero timeouts use the defaults.
type Config struct {
	QuestionTimeout time.Duration
	PlanTimeout     time.Duration
}

// Planner wraps a Generator with prompts, timeouts and parsing.
type Planner struct {
	gen Generator
	cfg Config
}

// New returns a planner. gen may be nil, in which case questions come
// from the fallback sets and Plan returns ErrUnavailable.
func New(gen Generator, cfg Config) *Planner {
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = DefaultQuestionTimeout
	}
	if cfg.PlanTimeout <= 0 {
		cfg.PlanTimeout = DefaultPlanTimeout
	}
	return &Planner{gen: gen, cfg: cfg}
}

// Available reports whether a generator is configured.
func (p *Planner) Available() bool { return p.gen != nil }

// Questions asks the model for clarification questions. Any failure
// falls back to the fixed set for the request kind.
func (p *Planner) Questions(ctx context.Context, utterance string) []clarify.Question {
	if p.gen == nil {
		return clarify.Fallback(utterance)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.QuestionTimeout)
	defer cancel()

	tm := redact.NewTokenMap()
	prompt := redact.Redact(QuestionPrompt(utterance), tm)
	text, err := p.gen.Generate(ctx, Request{
		System:      withLegend(questionSystem, tm),
		Prompt:      prompt,
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("question generation failed, using fallback")
		return clarify.Fallback(utterance)
	}
	qs, err := ParseQuestions(redact.Detoken(text, tm))
	if err != nil {
		log.Warn().Err(err).Msg("question parsing failed, using fallback")
		return clarify.Fallback(utterance)
	}
	log.Debug().Int("count", len(qs)).Msg("using generated questions")
	return qs
}

// Response is a parsed plan response.
type Response struct {
	Raw       string
	Reasoning string
	Plan      string
}

// Plan asks the model for a plan and splits the reply into reasoning and
// plan text.
func (p *Planner) Plan(ctx context.Context, utterance string, answers []model.UserAnswer) (*Response, error) {
	if p.gen == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PlanTimeout)
	defer cancel()

	tm := redact.NewTokenMap()
	prompt := redact.Redact(PlanPrompt(utterance, redact.Answers(answers, tm)), tm)
	if tm.Len() > 0 {
		log.Debug().Int("redacted", tm.Len()).Msg("redacted personal data from plan prompt")
	}
	raw, err := p.gen.Generate(ctx, Request{
		System:      withLegend(planSystem, tm),
		Prompt:      prompt,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}
	if leaks := redact.CheckLeaks(raw, tm); len(leaks) > 0 {
		log.Warn().Int("count", len(leaks)).Msg("model reply echoed redacted values")
	}
	raw = redact.Detoken(raw, tm)
	reasoning, planText := plan.SplitResponse(raw)
	return &Response{Raw: raw, Reasoning: reasoning, Plan: planText}, nil
}

func withLegend(system string, tm *redact.TokenMap) string {
	if legend := tm.Legend(); legend != "" {
		return system + "\n\n" + legend
	}
	return system
}

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```\\s*$")
)

// ParseQuestions decodes a JSON array of questions, tolerating a fenced
// code block around it.
func ParseQuestions(text string) ([]clarify.Question, error) {
	text = strings.TrimSpace(text)
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceClose.ReplaceAllString(text, "")

	var qs []clarify.Question
	if err := json.Unmarshal([]byte(text), &qs); err != nil {
		return nil, fmt.Errorf("planner: decode questions: %w", err)
	}
	out := qs[:0]
	for _, q := range qs {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Field) == "" {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, errors.New("planner: no usable questions")
	}
	if len(out) > clarify.MaxQuestions {
		out = out[:clarify.MaxQuestions]
	}
	return clarify.Decorate(out), nil
}

// Static returns the same text for every request. It backs offline runs
// and tests.
type Static struct {
	Text string
	Err  error
}

// Generate implements Generator.
func (s Static) Generate(context.Context, Request) (string, error) {
	return s.Text, s.Err
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
