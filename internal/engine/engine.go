// Package engine wires the deterministic pipeline: segmentation,
// classification, token generation, reconciliation, validation and
// trace building.
package engine

import (
	"strings"
	"time"

	"github.com/ppiankov/intentguard/internal/intent"
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/plan"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/schema"
	"github.com/ppiankov/intentguard/internal/trace"
)

// Config holds the engine dependencies. Nil fields select defaults.
type Config struct {
	Registry       *schema.Registry
	Policy         *policy.Config
	PaymentBaseURL string
	Now            func() time.Time
	NewID          func() string
}

// Engine evaluates plans. It is immutable once built; rebuild it to pick
// up new rule tables.
type Engine struct {
	gen     *intent.Generator
	builder *trace.Builder
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	v := policy.NewValidator(cfg.Policy, cfg.Now)
	return &Engine{
		gen: intent.NewGenerator(cfg.Registry),
		builder: trace.NewBuilder(v, trace.Config{
			PaymentBaseURL: cfg.PaymentBaseURL,
			NewID:          cfg.NewID,
			Now:            cfg.Now,
		}),
	}
}

// Request is one evaluation input.
type Request struct {
	Utterance string
	Reasoning string
	Plan      string
	Answers   []model.UserAnswer
	// Booking overrides the details parsed from Plan when non-nil.
	Booking map[string]string
}

// Registry returns the schema registry in use.
func (e *Engine) Registry() *schema.Registry {
	return e.gen.Registry()
}

// Policy returns the policy rule tables in use.
func (e *Engine) Policy() *policy.Config {
	return e.builder.Validator().Config()
}

// PaymentURL returns the payment link for an execution id.
func (e *Engine) PaymentURL(executionID string) string {
	return e.builder.PaymentURL(executionID)
}

// Steps segments the plan, falling back to a single placeholder step.
func Steps(planText string) []model.PlanStep {
	steps := plan.Segment(planText)
	if len(steps) == 0 {
		steps = []model.PlanStep{plan.Placeholder(planText)}
	}
	return steps
}

// Tokens runs segmentation through reconciliation without validating.
func (e *Engine) Tokens(req Request) []model.IntentToken {
	primary, hasPrimary := intent.PrimaryAction(req.Utterance)
	booking := req.Booking
	if booking == nil {
		booking = plan.BookingDetails(req.Plan)
	}

	steps := Steps(req.Plan)
	tokens := make([]model.IntentToken, 0, len(steps))
	for _, step := range steps {
		action := intent.Classify(step.Description)
		if hasPrimary {
			action = primary
		}
		tok := e.gen.Generate(step, action)
		tok = e.gen.Reconcile(tok, req.Answers, booking)
		tokens = append(tokens, tok)
	}
	return tokens
}

// Evaluate runs the whole pipeline and returns the trace.
func (e *Engine) Evaluate(req Request) *model.ExecutionTrace {
	return e.builder.Build(trace.Input{
		Utterance: req.Utterance,
		Reasoning: strings.TrimSpace(req.Reasoning),
		Plan:      req.Plan,
		Tokens:    e.Tokens(req),
	})
}
